package tx

import (
	"context"
	"time"

	"stockkeeper/internal/core/apperror"
)

// RetryBaseDelay is the first backoff between attempts. It doubles each retry.
var RetryBaseDelay = 20 * time.Millisecond

// Retry runs fn up to attempts times while it fails with a concurrent
// modification error. Any other error, or success, returns immediately.
// fn must run the whole operation from scratch, including its transaction.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	delay := RetryBaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !apperror.IsConcurrentModification(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
