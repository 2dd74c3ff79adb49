package pipeline_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/voxloom/voxloom/pkg/pipeline"
)

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        *pipeline.Error
		retriable  bool
		deferrable bool
	}{
		{"validation", pipeline.Validation("missing episode id"), false, false},
		{"transient", pipeline.Transient(errors.New("503"), "blob upload"), true, false},
		{"deferrable", pipeline.Defer(30*time.Second, "rate limited"), false, true},
		{"fatal", pipeline.Fatal(errors.New("boom"), "chunk failed"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retriable(); got != tt.retriable {
				t.Errorf("Retriable() = %v, want %v", got, tt.retriable)
			}
			if got := tt.err.Deferrable(); got != tt.deferrable {
				t.Errorf("Deferrable() = %v, want %v", got, tt.deferrable)
			}
		})
	}
}

func TestIsDeferrableThroughWrapping(t *testing.T) {
	inner := pipeline.Defer(10*time.Second, "tts quota exhausted")
	wrapped := fmt.Errorf("synthesize chunk 3: %w", inner)

	if !pipeline.IsDeferrable(wrapped) {
		t.Fatal("IsDeferrable should see through fmt.Errorf wrapping")
	}
	if got := pipeline.RetryAfter(wrapped); got != 10*time.Second {
		t.Fatalf("RetryAfter = %v, want 10s", got)
	}
}

func TestAsWrapsUnknownAsFatal(t *testing.T) {
	pe := pipeline.As(errors.New("mystery"))
	if pe.Kind != pipeline.KindFatal {
		t.Fatalf("Kind = %v, want fatal", pe.Kind)
	}
	if pe.Err == nil {
		t.Fatal("underlying error must be preserved")
	}
}

func TestAsPreservesPipelineError(t *testing.T) {
	orig := pipeline.Transient(nil, "db reconnect")
	got := pipeline.As(fmt.Errorf("store: %w", orig))
	if got != orig {
		t.Fatalf("As should return the original *Error, got %+v", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := pipeline.Transient(cause, "db")
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find the cause through Unwrap")
	}
}
