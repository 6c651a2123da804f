package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps the queue in a DynamoDB table keyed by QueueId.
type DynamoStore struct {
	ddb   DynamoAPI
	table string
	now   func() time.Time
}

func NewDynamoStore(ddb DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{ddb: ddb, table: table, now: time.Now}
}

// ListPending scans up to limit rows. Scan pages are followed until the
// limit is reached or the table is exhausted.
func (s *DynamoStore) ListPending(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	out := make([]Record, 0, limit)
	var startKey map[string]types.AttributeValue

	for len(out) < limit {
		page, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			Limit:             aws.Int32(int32(limit - len(out))),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan %s: %w", s.table, err)
		}

		var recs []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal queue rows: %w", err)
		}
		for _, r := range recs {
			// rows without both ids can never be processed; leave them for an operator
			if strings.TrimSpace(r.QueueID) == "" || strings.TrimSpace(r.ExternalID) == "" {
				continue
			}
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}

		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	return out, nil
}

func (s *DynamoStore) DeleteByID(ctx context.Context, queueID string) error {
	_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"QueueId": &types.AttributeValueMemberS{Value: queueID},
		},
		ConditionExpression: aws.String("attribute_exists(QueueId)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotFound
		}
		return fmt.Errorf("dynamodb delete %s: %w", queueID, err)
	}
	return nil
}

func (s *DynamoStore) Enqueue(ctx context.Context, externalID, productID string) (Record, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Record{}, errors.New("missing external id")
	}

	rec := Record{
		QueueID:    uuid.NewString(),
		ExternalID: externalID,
		ProductID:  strings.TrimSpace(productID),
		EnqueuedAt: s.now().UTC(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal queue row: %w", err)
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(QueueId)"),
	})
	if err != nil {
		return Record{}, fmt.Errorf("dynamodb put queue row: %w", err)
	}
	return rec, nil
}

var _ Store = (*DynamoStore)(nil)
