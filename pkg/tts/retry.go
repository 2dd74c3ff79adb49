package tts

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxloom/voxloom/pkg/pipeline"
)

// BackoffSchedule paces in-place retries of transient failures and
// validation rejections. Exposed for tuning and tests.
var BackoffSchedule = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

func backoffFor(attempt int) time.Duration {
	if attempt >= len(BackoffSchedule) {
		return BackoffSchedule[len(BackoffSchedule)-1]
	}
	return BackoffSchedule[attempt]
}

// SynthesizeFunc performs one synthesis attempt.
type SynthesizeFunc func(ctx context.Context) (*Result, error)

// ValidateFunc checks a rendered result; a non-nil error rejects it.
type ValidateFunc func(r *Result) error

// SynthesizeChunkWithRetry drives one chunk to a validated result within a
// retry budget.
//
//   - Transient failures and validation rejections retry in place with
//     exponential backoff.
//   - A deferrable failure (rate limit, timeout) returns immediately; the
//     caller's circuit breaker decides whether to abort the whole run.
//   - Exhausting the budget on transient failures converts to deferrable;
//     exhausting it on validation rejections is fatal, because a chunk
//     that keeps rendering silence will not heal via redelivery.
func SynthesizeChunkWithRetry(ctx context.Context, synthesize SynthesizeFunc,
	chunkIndex, maxRetries int, validate ValidateFunc) (*Result, error) {

	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	lastWasValidation := false
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffFor(attempt-1)); err != nil {
				return nil, err
			}
		}

		res, err := synthesize(ctx)
		if err != nil {
			pe := pipeline.As(err)
			switch {
			case pe.Deferrable():
				return nil, pe
			case pe.Retriable():
				slog.Warn("chunk synthesis transient failure",
					"chunk", chunkIndex, "attempt", attempt, "error", pe)
				lastErr, lastWasValidation = pe, false
				continue
			default:
				return nil, pe
			}
		}

		if validate != nil {
			if verr := validate(res); verr != nil {
				slog.Warn("chunk rejected by validation",
					"chunk", chunkIndex, "attempt", attempt, "error", verr)
				lastErr, lastWasValidation = verr, true
				continue
			}
		}
		return res, nil
	}

	if lastWasValidation {
		return nil, pipeline.Fatal(lastErr, "chunk %d failed validation after %d attempts", chunkIndex, maxRetries)
	}
	return nil, pipeline.DeferWrap(lastErr, 0, "chunk %d exhausted transient retry budget", chunkIndex)
}
