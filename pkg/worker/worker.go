// Package worker contains the three pipeline workers and the queue
// runner that drives them. Workers classify every failure through the
// pipeline error taxonomy; the runner turns that classification into
// queue behavior: acknowledged, or left for redelivery.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/queue"
)

// Handler processes one queue message. A nil return (or a warning)
// acknowledges the message; any other error leaves it for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg queue.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg queue.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg queue.Message) error { return f(ctx, msg) }

// Runner polls one queue and dispatches messages to a Handler.
type Runner struct {
	Queue   queue.Queue
	Handler Handler

	// BatchSize is the max messages per receive. Defaults to 10.
	BatchSize int
	// Wait is the long-poll window. Defaults to 20s.
	Wait time.Duration
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	batch := r.BatchSize
	if batch < 1 {
		batch = 10
	}
	wait := r.Wait
	if wait <= 0 {
		wait = 20 * time.Second
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs, err := r.Queue.Receive(ctx, batch, wait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Error("queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		r.ProcessBatch(ctx, msgs)
	}
}

// ProcessBatch handles each message and acknowledges the ones that
// finished. Failed items stay on the queue for redelivery; their count is
// the batch failure list.
func (r *Runner) ProcessBatch(ctx context.Context, msgs []queue.Message) (failed int) {
	for _, msg := range msgs {
		err := r.Handler.Handle(ctx, msg)
		if err != nil {
			pe := pipeline.As(err)
			if pe.Kind == pipeline.KindWarning {
				slog.Warn("message completed with warning", "message", msg.ID, "warning", pe.Message)
			} else {
				slog.Error("message failed, left for redelivery",
					"message", msg.ID, "kind", pe.Kind, "error", err)
				failed++
				continue
			}
		}
		if err := r.Queue.Ack(ctx, msg); err != nil {
			slog.Error("ack failed", "message", msg.ID, "error", err)
			failed++
		}
	}
	return failed
}

// closeAttempt finalizes a started stage row to match err's
// classification: fatal and validation mark the episode failed, anything
// else closes the row as interrupted and leaves the message for
// redelivery. Returns err so callers can pass the failure straight up.
func closeAttempt(ctx context.Context, tr *episode.Tracker, episodeID string, stage episode.Stage, err error) error {
	pe := pipeline.As(err)
	switch pe.Kind {
	case pipeline.KindFatal, pipeline.KindValidation:
		if terr := tr.StageFailure(ctx, episodeID, stage, err, pe.Details); terr != nil {
			slog.Error("recording stage failure failed", "episode", episodeID, "error", terr)
		}
	default:
		if terr := tr.StageInterrupted(ctx, episodeID, stage, err); terr != nil {
			slog.Error("closing stage attempt failed", "episode", episodeID, "error", terr)
		}
	}
	return err
}

// noBudget stands in for "no deadline on the context".
const noBudget = time.Duration(1<<62 - 1)

// remainingBudget is the time left before the invocation's deadline.
func remainingBudget(ctx context.Context) time.Duration {
	dl, ok := ctx.Deadline()
	if !ok {
		return noBudget
	}
	return time.Until(dl)
}
