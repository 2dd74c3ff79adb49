package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/episode/episodetest"
	"github.com/voxloom/voxloom/pkg/notify"
	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/tts"
	"github.com/voxloom/voxloom/pkg/wav"
	"github.com/voxloom/voxloom/pkg/worker"
)

type fakeNotifier struct {
	completions []notify.Completion
}

func (n *fakeNotifier) EpisodeCompleted(_ context.Context, c notify.Completion) error {
	n.completions = append(n.completions, c)
	return nil
}

func synthSetup(t *testing.T, speech *fakeSpeech) (*episodetest.Store, *storage.Artifacts, *worker.Synthesizer) {
	t.Helper()
	store := episodetest.New()
	ep := addEpisode(store, episode.StageScriptCompleted, episode.StatusScriptReady)
	ep.Metadata = episode.Metadata{
		Speaker1Voice: "Alnilam", Speaker2Voice: "Aoede",
		Speaker1Role: "Host", Speaker2Role: "Analyst",
		Speaker1Gender: "male", Speaker2Gender: "female",
		LanguageCode: "he", PodcastFormat: episode.FormatMultiSpeaker,
	}
	addConfig(store, episode.FormatMultiSpeaker)

	artifacts := newArtifacts(t)
	scriptKey := "podcasts/pod-1/ep-1/transcripts/script_20260801_120000.txt"
	scriptText := "Host: שָׁלוֹם לכולם.\nAnalyst: עֶרֶב טוב." // carries niqqud already
	if err := artifacts.PutBytes(context.Background(), scriptKey, []byte(scriptText)); err != nil {
		t.Fatal(err)
	}

	s := worker.NewSynthesizer(store, episode.NewTracker(store), speech, artifacts)
	return store, artifacts, s
}

func synthMsg(t *testing.T, dc queue.DynamicConfig) queue.Message {
	t.Helper()
	body, err := queue.Encode(queue.SynthesizeRequest{
		PodcastConfigID: "cfg-1",
		PodcastID:       "pod-1",
		EpisodeID:       "ep-1",
		ScriptURL:       "podcasts/pod-1/ep-1/transcripts/script_20260801_120000.txt",
		DynamicConfig:   dc,
	})
	if err != nil {
		t.Fatal(err)
	}
	return queue.Message{ID: "m-3", Body: body}
}

func fullDynamicConfig() queue.DynamicConfig {
	return queue.DynamicConfig{
		LanguageCode: "he", Language: "Hebrew",
		PodcastFormat:  string(episode.FormatMultiSpeaker),
		Speaker1Role:   "Host",
		Speaker1Gender: "male",
		Speaker1Voice:  "Alnilam",
		Speaker2Role:   "Analyst",
		Speaker2Gender: "female",
		Speaker2Voice:  "Aoede",
	}
}

func TestSynthesizerHappyPath(t *testing.T) {
	sp := &fakeSpeech{next: func(int) (*tts.Result, error) { return speech(t, 3), nil }}
	store, artifacts, s := synthSetup(t, sp)
	notifier := &fakeNotifier{}
	s.Notifier = notifier

	if err := s.Handle(context.Background(), synthMsg(t, fullDynamicConfig())); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusCompleted {
		t.Errorf("status = %s", ep.Status)
	}
	if ep.CurrentStage != episode.StageAudioCompleted {
		t.Errorf("stage = %s", ep.CurrentStage)
	}
	if ep.AudioURL != "podcasts/pod-1/ep-1/audio/podcast.wav" {
		t.Errorf("audio_url = %q", ep.AudioURL)
	}
	if ep.Duration != 3 {
		t.Errorf("duration = %d, want 3", ep.Duration)
	}

	audio, err := artifacts.GetBytes(context.Background(), ep.AudioURL)
	if err != nil {
		t.Fatal(err)
	}
	if err := wav.CheckMagic(audio); err != nil {
		t.Errorf("final audio is not a WAV: %v", err)
	}

	if sp.lastMulti == nil || sp.lastMulti.Voice1 != "Alnilam" || sp.lastMulti.Voice2 != "Aoede" {
		t.Errorf("synthesis request = %+v", sp.lastMulti)
	}

	if len(notifier.completions) != 1 || notifier.completions[0].Duration != 3 {
		t.Errorf("webhook completions = %+v", notifier.completions)
	}

	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogCompleted {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestSynthesizerRateLimitDefers(t *testing.T) {
	sp := &fakeSpeech{next: func(int) (*tts.Result, error) {
		return nil, pipeline.Defer(30*time.Second, "tts rate limited")
	}}
	store, artifacts, s := synthSetup(t, sp)

	err := s.Handle(context.Background(), synthMsg(t, fullDynamicConfig()))
	if err == nil {
		t.Fatal("deferral must keep the message on the queue")
	}
	if !pipeline.IsDeferrable(err) {
		t.Fatalf("error kind = %v, want deferrable", err)
	}

	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusScriptReady {
		t.Errorf("status = %s, want script_ready after deferral", ep.Status)
	}
	if ep.AudioURL != "" {
		t.Error("deferral wrote an audio URL")
	}
	if ok, _ := artifacts.Exists(context.Background(), "podcasts/pod-1/ep-1/audio/podcast.wav"); ok {
		t.Error("deferral uploaded audio")
	}

	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogFailed {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].ErrorDetail["deferred"] != true {
		t.Errorf("log details = %+v, want deferred=true", logs[0].ErrorDetail)
	}
}

func TestSynthesizerEntryBudgetGuard(t *testing.T) {
	sp := &fakeSpeech{next: func(int) (*tts.Result, error) { return speech(t, 3), nil }}
	store, _, s := synthSetup(t, sp)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Handle(ctx, synthMsg(t, fullDynamicConfig()))
	if !pipeline.IsDeferrable(err) {
		t.Fatalf("err = %v, want deferrable", err)
	}
	if sp.calls != 0 {
		t.Errorf("TTS called %d times under exhausted budget", sp.calls)
	}
	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusScriptReady {
		t.Errorf("status = %s", ep.Status)
	}
}

func TestSynthesizerScriptLoadFailureStaysRetriable(t *testing.T) {
	fastRetries(t)
	sp := &fakeSpeech{next: func(int) (*tts.Result, error) { return speech(t, 3), nil }}
	store, _, s := synthSetup(t, sp)

	body, err := queue.Encode(queue.SynthesizeRequest{
		PodcastConfigID: "cfg-1",
		PodcastID:       "pod-1",
		EpisodeID:       "ep-1",
		ScriptURL:       "podcasts/pod-1/ep-1/transcripts/absent.txt",
		DynamicConfig:   fullDynamicConfig(),
	})
	if err != nil {
		t.Fatal(err)
	}

	herr := s.Handle(context.Background(), queue.Message{ID: "m-7", Body: body})
	if herr == nil {
		t.Fatal("expected error for missing script artifact")
	}
	if !pipeline.IsRetriable(herr) {
		t.Fatalf("err = %v, want transient", herr)
	}
	if sp.calls != 0 {
		t.Errorf("TTS called %d times without a script", sp.calls)
	}

	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status == episode.StatusFailed {
		t.Error("transient failure marked the episode failed")
	}

	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogFailed {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].ErrorDetail["will_retry"] != true {
		t.Errorf("log details = %+v, want will_retry=true", logs[0].ErrorDetail)
	}
}

func TestSynthesizerReconstructsVoices(t *testing.T) {
	sp := &fakeSpeech{next: func(int) (*tts.Result, error) { return speech(t, 2), nil }}
	store, _, s := synthSetup(t, sp)

	// Legacy message and a record with no voice assignment.
	store.Add(&episode.Episode{
		ID: "ep-1", PodcastID: "pod-1", ConfigID: "cfg-1",
		Status: episode.StatusScriptReady, CurrentStage: episode.StageScriptCompleted,
		Metadata: episode.Metadata{LanguageCode: "he", PodcastFormat: episode.FormatMultiSpeaker},
	})

	dc := queue.DynamicConfig{
		LanguageCode:   "he",
		PodcastFormat:  string(episode.FormatMultiSpeaker),
		Speaker1Role:   "Host",
		Speaker1Gender: "male",
		Speaker2Role:   "Analyst",
		Speaker2Gender: "female",
		// No voices.
	}
	if err := s.Handle(context.Background(), synthMsg(t, dc)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := store.Get(context.Background(), "ep-1")
	if got.Metadata.Speaker1Voice != "Alnilam" {
		t.Errorf("persisted speaker1 = %q", got.Metadata.Speaker1Voice)
	}
	if got.Metadata.Speaker2Voice == "" {
		t.Error("speaker2 voice not persisted")
	}
	if sp.lastMulti.Voice1 != got.Metadata.Speaker1Voice || sp.lastMulti.Voice2 != got.Metadata.Speaker2Voice {
		t.Errorf("synthesis used %q/%q but persisted %q/%q",
			sp.lastMulti.Voice1, sp.lastMulti.Voice2,
			got.Metadata.Speaker1Voice, got.Metadata.Speaker2Voice)
	}
}

func TestSynthesizerDropsReplay(t *testing.T) {
	sp := &fakeSpeech{next: func(int) (*tts.Result, error) { return speech(t, 2), nil }}
	store, _, s := synthSetup(t, sp)
	store.UpdateStage(context.Background(), "ep-1", episode.StageAudioCompleted, false)

	if err := s.Handle(context.Background(), synthMsg(t, fullDynamicConfig())); err != nil {
		t.Fatalf("replay should ack cleanly: %v", err)
	}
	if sp.calls != 0 {
		t.Errorf("replay called TTS %d times", sp.calls)
	}
}
