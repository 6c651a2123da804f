package adcatalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Deleter is anything that can delete one catalog item.
type Deleter interface {
	Delete(ctx context.Context, externalID string) (Response, error)
}

var errServerStatus = errors.New("catalog api server error")

// BreakerClient trips after consecutive transport failures or 5xx replies
// and fails fast while open. 4xx replies never count against it.
type BreakerClient struct {
	next Deleter
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerClient(next Deleter, failures int, cooldown time.Duration, logger *zap.Logger) *BreakerClient {
	if failures < 1 {
		failures = 1
	}
	st := gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerClient{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Delete forwards to the wrapped deleter. A 5xx reply is returned as a
// normal Response even though it counts as a breaker failure.
func (b *BreakerClient) Delete(ctx context.Context, externalID string) (Response, error) {
	var resp Response
	_, err := b.cb.Execute(func() (interface{}, error) {
		r, err := b.next.Delete(ctx, externalID)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= 500 {
			return nil, errServerStatus
		}
		return nil, nil
	})

	switch {
	case err == nil, errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Response{}, fmt.Errorf("delete %s: %w", externalID, err)
	default:
		return Response{}, err
	}
}

// State exposes the breaker state for logging and tests.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

var (
	_ Deleter = (*Client)(nil)
	_ Deleter = (*BreakerClient)(nil)
)
