// Package queue holds the persistent queue of catalog entries waiting to be
// removed from the advertising platform.
//
// Rows are appended by the product-removal flow and consumed by the delete
// reconciler. A row is never updated in place: it is either left for the
// next run or deleted by id.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by DeleteByID when no row has the given id.
// Callers that treat deletion as best-effort may ignore it.
var ErrNotFound = errors.New("queue record not found")

// Record is one pending deletion.
type Record struct {
	QueueID    string    `dynamodbav:"QueueId" json:"queueId"`
	ExternalID string    `dynamodbav:"ExternalId" json:"externalId"`
	ProductID  string    `dynamodbav:"ProductId,omitempty" json:"productId,omitempty"`
	EnqueuedAt time.Time `dynamodbav:"EnqueuedAt" json:"enqueuedAt"`
}

// Store is the persistent queue. ListPending gives no ordering guarantee
// and returns an empty slice, not an error, when nothing is pending.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]Record, error)
	DeleteByID(ctx context.Context, queueID string) error
	Enqueue(ctx context.Context, externalID, productID string) (Record, error)
}
