package episode_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/episode/episodetest"
)

func newTracked(t *testing.T) (*episodetest.Store, *episode.Tracker, *episode.Episode) {
	t.Helper()
	store := episodetest.New()
	ep := &episode.Episode{
		ID:           "ep-1",
		PodcastID:    "pod-1",
		Status:       episode.StatusScriptReady,
		CurrentStage: episode.StageScriptCompleted,
	}
	store.Add(ep)
	return store, episode.NewTracker(store), ep
}

func TestStageStartThenComplete(t *testing.T) {
	ctx := context.Background()
	store, tr, _ := newTracked(t)

	if err := tr.StageStart(ctx, "ep-1", episode.StageAudioProcessing, nil); err != nil {
		t.Fatalf("StageStart: %v", err)
	}
	if err := tr.StageComplete(ctx, "ep-1", episode.StageAudioProcessing, nil); err != nil {
		t.Fatalf("StageComplete: %v", err)
	}

	logs := store.LogsFor("ep-1")
	if len(logs) != 1 {
		t.Fatalf("want exactly one log row, got %d", len(logs))
	}
	if logs[0].Status != episode.LogCompleted {
		t.Fatalf("log status = %s, want completed", logs[0].Status)
	}
	if logs[0].CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	ep := store.Episodes["ep-1"]
	if ep.CurrentStage != episode.StageAudioProcessing {
		t.Fatalf("current_stage = %s", ep.CurrentStage)
	}
	if len(ep.StageHistory) != 1 || ep.StageHistory[0].Stage != episode.StageAudioProcessing {
		t.Fatalf("stage history = %+v", ep.StageHistory)
	}
}

func TestStageFailureMarksEpisode(t *testing.T) {
	ctx := context.Background()
	store, tr, _ := newTracked(t)

	if err := tr.StageStart(ctx, "ep-1", episode.StageAudioProcessing, nil); err != nil {
		t.Fatalf("StageStart: %v", err)
	}
	cause := errors.New("chunk 2 failed after retries")
	if err := tr.StageFailure(ctx, "ep-1", episode.StageAudioProcessing, cause, nil); err != nil {
		t.Fatalf("StageFailure: %v", err)
	}

	ep := store.Episodes["ep-1"]
	if ep.Status != episode.StatusFailed {
		t.Fatalf("status = %s, want failed", ep.Status)
	}
	if ep.CurrentStage != episode.StageAudioFailed {
		t.Fatalf("current_stage = %s, want audio_failed", ep.CurrentStage)
	}
	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogFailed {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].ErrorMsg == "" {
		t.Fatal("error message missing from failed log row")
	}
}

func TestStageDeferredKeepsStatus(t *testing.T) {
	ctx := context.Background()
	store, tr, _ := newTracked(t)

	if err := tr.StageStart(ctx, "ep-1", episode.StageAudioProcessing, nil); err != nil {
		t.Fatalf("StageStart: %v", err)
	}
	if err := tr.StageDeferred(ctx, "ep-1", episode.StageAudioProcessing,
		errors.New("rate limited"), 30*time.Second); err != nil {
		t.Fatalf("StageDeferred: %v", err)
	}

	ep := store.Episodes["ep-1"]
	if ep.Status == episode.StatusFailed {
		t.Fatal("deferral must not mark the episode failed")
	}
	logs := store.LogsFor("ep-1")
	if len(logs) != 1 {
		t.Fatalf("want one log row, got %d", len(logs))
	}
	if logs[0].Status != episode.LogFailed {
		t.Fatalf("deferred log status = %s, want failed", logs[0].Status)
	}
	if v, ok := logs[0].ErrorDetail["deferred"].(bool); !ok || !v {
		t.Fatalf("deferred flag missing: %+v", logs[0].ErrorDetail)
	}
	if logs[0].ErrorDetail["retry_after_seconds"] != 30 {
		t.Fatalf("retry_after_seconds = %v", logs[0].ErrorDetail["retry_after_seconds"])
	}
}

func TestStageInterruptedClosesRowOnly(t *testing.T) {
	ctx := context.Background()
	store, tr, _ := newTracked(t)

	if err := tr.StageStart(ctx, "ep-1", episode.StageAudioProcessing, nil); err != nil {
		t.Fatalf("StageStart: %v", err)
	}
	if err := tr.StageInterrupted(ctx, "ep-1", episode.StageAudioProcessing,
		errors.New("blob 503")); err != nil {
		t.Fatalf("StageInterrupted: %v", err)
	}

	ep := store.Episodes["ep-1"]
	if ep.Status == episode.StatusFailed {
		t.Fatal("interruption must not mark the episode failed")
	}
	if ep.CurrentStage != episode.StageAudioProcessing {
		t.Fatalf("current_stage = %s, want audio_processing kept", ep.CurrentStage)
	}
	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogFailed {
		t.Fatalf("logs = %+v", logs)
	}
	if v, ok := logs[0].ErrorDetail["will_retry"].(bool); !ok || !v {
		t.Fatalf("will_retry flag missing: %+v", logs[0].ErrorDetail)
	}
}

func TestEveryStartedRowGetsOneTerminalRow(t *testing.T) {
	ctx := context.Background()
	store, tr, _ := newTracked(t)

	stages := []episode.Stage{
		episode.StageTelegramProcessing,
		episode.StageScriptProcessing,
		episode.StageAudioProcessing,
	}
	for _, st := range stages {
		if err := tr.StageStart(ctx, "ep-1", st, nil); err != nil {
			t.Fatalf("StageStart(%s): %v", st, err)
		}
		if err := tr.StageComplete(ctx, "ep-1", st, nil); err != nil {
			t.Fatalf("StageComplete(%s): %v", st, err)
		}
	}
	for _, l := range store.LogsFor("ep-1") {
		if l.Status == episode.LogStarted {
			t.Fatalf("log row left open: %+v", l)
		}
	}
}
