package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/gymtrack/internal/model"
)

// DefaultRetryAttempts bounds Retry.
const DefaultRetryAttempts = 4

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Only STORE_UNAVAILABLE is retried; user errors come
// back immediately. Waits grow exponentially from 50ms.
func Retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(b, DefaultRetryAttempts), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !model.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
