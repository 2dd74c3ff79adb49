package episode

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracker writes the durable stage log and keeps the episode record's
// current_stage and stage_history in sync. Durations are computed from an
// in-process cache of stage start times; when a stage completes in a
// different process than it started in (queue redelivery), duration_ms is
// simply omitted.
type Tracker struct {
	store Store

	mu     sync.Mutex
	starts map[startKey]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

type startKey struct {
	episodeID string
	stage     Stage
}

// NewTracker creates a Tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{
		store:  store,
		starts: make(map[startKey]time.Time),
		now:    time.Now,
	}
}

// StageStart records the start of a stage attempt: one started log row,
// the episode's current_stage, and (for the first stage of the pipeline)
// processing_started_at.
func (t *Tracker) StageStart(ctx context.Context, episodeID string, stage Stage, metadata map[string]any) error {
	started := t.now().UTC()

	t.mu.Lock()
	t.starts[startKey{episodeID, stage}] = started
	t.mu.Unlock()

	if _, err := t.store.InsertLog(ctx, &ProcessingLog{
		EpisodeID: episodeID,
		Stage:     stage,
		Status:    LogStarted,
		StartedAt: started,
		Metadata:  metadata,
	}); err != nil {
		return err
	}

	first := stage == StageTelegramQueued || stage == StageTelegramProcessing
	if err := t.store.UpdateStage(ctx, episodeID, stage, first); err != nil {
		return err
	}
	slog.Info("stage started", "episode", episodeID, "stage", stage)
	return nil
}

// StageComplete finalizes the stage's started row as completed and appends
// the event to the episode's stage history.
func (t *Tracker) StageComplete(ctx context.Context, episodeID string, stage Stage, metadata map[string]any) error {
	dur := t.takeDuration(episodeID, stage)

	if err := t.store.CloseLog(ctx, episodeID, stage, LogCompleted, dur, "", metadata); err != nil {
		return err
	}
	if err := t.store.AppendStageHistory(ctx, episodeID, StageEvent{
		Stage:      stage,
		Status:     LogCompleted,
		Timestamp:  t.now().UTC(),
		DurationMS: dur,
	}); err != nil {
		return err
	}
	slog.Info("stage completed", "episode", episodeID, "stage", stage, "duration_ms", dur)
	return nil
}

// StageFailure finalizes the stage's started row as failed, marks the
// episode failed, and moves current_stage to the stage's failure variant.
//
// Deferrals do not come through here; a deferred episode keeps a non-failed
// status and records its log row via StageDeferred.
func (t *Tracker) StageFailure(ctx context.Context, episodeID string, stage Stage, cause error, details map[string]any) error {
	dur := t.takeDuration(episodeID, stage)

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.store.CloseLog(ctx, episodeID, stage, LogFailed, dur, msg, details); err != nil {
		return err
	}
	if err := t.store.AppendStageHistory(ctx, episodeID, StageEvent{
		Stage:      stage.FailureVariant(),
		Status:     LogFailed,
		Timestamp:  t.now().UTC(),
		DurationMS: dur,
	}); err != nil {
		return err
	}
	if err := t.store.UpdateStage(ctx, episodeID, stage.FailureVariant(), false); err != nil {
		return err
	}
	if err := t.store.MarkFailed(ctx, episodeID, msg); err != nil {
		return err
	}
	slog.Error("stage failed", "episode", episodeID, "stage", stage, "error", msg)
	return nil
}

// StageInterrupted finalizes the stage's started row as failed without
// touching the episode record. Used when an attempt dies on a transient
// error: the unacked message redelivers and the next attempt opens its
// own started row.
func (t *Tracker) StageInterrupted(ctx context.Context, episodeID string, stage Stage, cause error) error {
	dur := t.takeDuration(episodeID, stage)

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	details := map[string]any{"will_retry": true}
	if err := t.store.CloseLog(ctx, episodeID, stage, LogFailed, dur, msg, details); err != nil {
		return err
	}
	slog.Warn("stage interrupted, awaiting redelivery",
		"episode", episodeID, "stage", stage, "error", msg)
	return nil
}

// StageDeferred records a deferral: a failed log row flagged deferred=true,
// without marking the episode failed. The caller resets episode status to
// the stage the queue will redeliver into.
func (t *Tracker) StageDeferred(ctx context.Context, episodeID string, stage Stage, cause error, retryAfter time.Duration) error {
	dur := t.takeDuration(episodeID, stage)

	details := map[string]any{"deferred": true}
	if retryAfter > 0 {
		details["retry_after_seconds"] = int(retryAfter.Seconds())
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.store.CloseLog(ctx, episodeID, stage, LogFailed, dur, msg, details); err != nil {
		return err
	}
	slog.Warn("stage deferred", "episode", episodeID, "stage", stage, "error", msg, "retry_after", retryAfter)
	return nil
}

func (t *Tracker) takeDuration(episodeID string, stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := startKey{episodeID, stage}
	started, ok := t.starts[key]
	if !ok {
		return 0
	}
	delete(t.starts, key)
	return t.now().Sub(started).Milliseconds()
}
