package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxloom/voxloom/pkg/pipeline"
)

func shrinkBackoff(t *testing.T) {
	t.Helper()
	saved := RetryBackoff
	RetryBackoff = []time.Duration{time.Millisecond}
	t.Cleanup(func() { RetryBackoff = saved })
}

func TestRetryTransientRecovers(t *testing.T) {
	shrinkBackoff(t)

	calls := 0
	err := retryTransient(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryTransient: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryTransientExhausts(t *testing.T) {
	shrinkBackoff(t)

	calls := 0
	err := retryTransient(context.Background(), func() error {
		calls++
		return pipeline.Transient(errors.New("blob 503"), "upload")
	})
	if err == nil {
		t.Fatal("expected the last error back")
	}
	if calls != retryAttempts {
		t.Fatalf("calls = %d, want %d", calls, retryAttempts)
	}
	if !pipeline.IsRetriable(err) {
		t.Fatalf("classification lost: %v", err)
	}
}

func TestRetryTransientStopsOnFatal(t *testing.T) {
	shrinkBackoff(t)

	calls := 0
	err := retryTransient(context.Background(), func() error {
		calls++
		return pipeline.Fatal(nil, "broken input")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("fatal error retried %d times", calls)
	}
}

func TestRetryTransientStopsOnCancel(t *testing.T) {
	saved := RetryBackoff
	RetryBackoff = []time.Duration{time.Hour}
	t.Cleanup(func() { RetryBackoff = saved })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryTransient(ctx, func() error {
		calls++
		return errors.New("connection reset")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
