package worker

import (
	"context"
	"errors"
	"time"

	"github.com/voxloom/voxloom/pkg/pipeline"
)

// retryAttempts bounds in-place retries of store and blob calls.
const retryAttempts = 3

// RetryBackoff holds the delays between in-place retry attempts.
// Replaceable in tests.
var RetryBackoff = []time.Duration{2 * time.Second, 4 * time.Second}

// retryTransient runs op up to retryAttempts times. Plain errors and
// transient-classified pipeline errors are retried after a backoff;
// validation, fatal, and deferrable classifications return immediately,
// as does context cancellation.
func retryTransient(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			var delay time.Duration
			if n := len(RetryBackoff); n > 0 {
				delay = RetryBackoff[min(attempt-1, n-1)]
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = op()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var pe *pipeline.Error
		if errors.As(err, &pe) && !pe.Retriable() {
			return err
		}
	}
	return err
}
