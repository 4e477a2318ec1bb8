package download

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times, sleeping backoff before the second
// attempt and doubling it after each. Only retryable NetworkErrors are
// retried; any other error is returned at once.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !IsRetryable(err) || attempt == attempts {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}
