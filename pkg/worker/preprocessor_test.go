package worker_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxloom/voxloom/pkg/collect"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/episode/episodetest"
	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/script"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/worker"
)

const classifyJSON = `{
	"content_type": "news",
	"specific_role": "Political Correspondent",
	"role_description": "covers elections",
	"confidence": 0.9
}`

const topicsJSON = `{
	"topics": ["election results", "coalition talks"],
	"conversation_structure": "linear",
	"transition_style": "seamless"
}`

func preprocessSetup(t *testing.T, gen *cannedGenerator) (*episodetest.Store, *storage.Artifacts, *fakeQueue, *worker.Preprocessor) {
	t.Helper()
	store := episodetest.New()
	addEpisode(store, episode.StageTelegramCompleted, episode.StatusContentCollected)
	addConfig(store, episode.FormatMultiSpeaker)

	artifacts := newArtifacts(t)
	content := collect.Content{
		Channel: "newsroom",
		Messages: []collect.ContentMessage{
			{ID: 1, Text: "תוצאות הבחירות פורסמו הערב", Date: time.Now().UTC().Add(-time.Hour), Channel: "newsroom"},
			{ID: 2, Text: "שיחות הקואליציה יחלו מחר בבוקר", Date: time.Now().UTC(), Channel: "newsroom"},
		},
	}
	if err := artifacts.PutJSON(context.Background(), "podcasts/pod-1/ep-1/content.json", content); err != nil {
		t.Fatal(err)
	}

	next := &fakeQueue{}
	p := worker.NewPreprocessor(store, episode.NewTracker(store),
		script.NewAnalyzer(gen), script.NewDrafter(gen), artifacts, next)
	return store, artifacts, next, p
}

func preprocessMsg(t *testing.T) queue.Message {
	t.Helper()
	body, err := queue.Encode(queue.PreprocessRequest{
		PodcastConfigID: "cfg-1",
		PodcastID:       "pod-1",
		EpisodeID:       "ep-1",
		S3Path:          "podcasts/pod-1/ep-1/content.json",
	})
	if err != nil {
		t.Fatal(err)
	}
	return queue.Message{ID: "m-2", Body: body}
}

func TestPreprocessorHappyPath(t *testing.T) {
	gen := &cannedGenerator{
		jsonQueue: []string{classifyJSON, topicsJSON},
		text: "Host: ערב טוב, תוצאות הבחירות פורסמו הערב.\n" +
			"Political Correspondent: נכון, ושיחות הקואליציה יחלו מחר בבוקר.",
	}
	store, artifacts, next, p := preprocessSetup(t, gen)

	if err := p.Handle(context.Background(), preprocessMsg(t)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusScriptReady {
		t.Errorf("status = %s", ep.Status)
	}
	if ep.CurrentStage != episode.StageScriptCompleted {
		t.Errorf("stage = %s", ep.CurrentStage)
	}
	if ep.ScriptURL == "" || !strings.Contains(ep.ScriptURL, "transcripts/script_") {
		t.Errorf("script_url = %q", ep.ScriptURL)
	}
	if ep.Analysis == nil || ep.Analysis.ContentType != "news" || len(ep.Analysis.Topics) != 2 {
		t.Errorf("analysis = %+v", ep.Analysis)
	}

	// Voices: Hebrew host default plus a seeded female expert (news role).
	md := ep.Metadata
	if md.Speaker1Voice != "Alnilam" {
		t.Errorf("speaker1 voice = %q", md.Speaker1Voice)
	}
	if md.Speaker2Voice == "" || md.Speaker2Voice == md.Speaker1Voice {
		t.Errorf("speaker2 voice = %q", md.Speaker2Voice)
	}
	if md.Speaker2Role != "Political Correspondent" || md.Speaker2Gender != "female" {
		t.Errorf("speaker2 = %s/%s", md.Speaker2Role, md.Speaker2Gender)
	}

	scriptBytes, err := artifacts.GetBytes(context.Background(), ep.ScriptURL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(scriptBytes), "Host:") {
		t.Errorf("stored script = %q", scriptBytes[:20])
	}

	var req queue.SynthesizeRequest
	next.lastSent(t, &req)
	if req.ScriptURL != ep.ScriptURL {
		t.Errorf("synthesize script_url = %q", req.ScriptURL)
	}
	dc := req.DynamicConfig
	if dc.Speaker1Voice != md.Speaker1Voice || dc.Speaker2Voice != md.Speaker2Voice {
		t.Errorf("dynamic config voices = %q/%q", dc.Speaker1Voice, dc.Speaker2Voice)
	}
	if dc.LanguageCode != "he" || dc.Language != "Hebrew" {
		t.Errorf("dynamic config language = %s/%s", dc.LanguageCode, dc.Language)
	}

	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogCompleted {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].Metadata["quality_score"] == nil {
		t.Error("quality report not attached to stage log")
	}
}

func TestPreprocessorRejectsPlaceholders(t *testing.T) {
	gen := &cannedGenerator{
		jsonQueue: []string{classifyJSON, topicsJSON},
		text:      "Host: welcome [name], tonight we discuss the election.",
	}
	store, _, next, p := preprocessSetup(t, gen)

	if err := p.Handle(context.Background(), preprocessMsg(t)); err == nil {
		t.Fatal("expected placeholder rejection")
	}
	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusFailed || ep.CurrentStage != episode.StageScriptFailed {
		t.Errorf("episode = %s/%s", ep.Status, ep.CurrentStage)
	}
	if next.sentCount() != 0 {
		t.Error("rejected script was still enqueued")
	}
}

func TestPreprocessorMissingConfigMarksFailed(t *testing.T) {
	store := episodetest.New()
	addEpisode(store, episode.StageTelegramCompleted, episode.StatusContentCollected)
	// No config registered for cfg-1 or pod-1.
	gen := &cannedGenerator{}
	p := worker.NewPreprocessor(store, episode.NewTracker(store),
		script.NewAnalyzer(gen), script.NewDrafter(gen), newArtifacts(t), &fakeQueue{})

	err := p.Handle(context.Background(), preprocessMsg(t))
	if err == nil {
		t.Fatal("expected failure for missing config")
	}
	if pipeline.IsRetriable(err) || pipeline.IsDeferrable(err) {
		t.Fatalf("missing config must never be retried: %v", err)
	}

	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusFailed || ep.CurrentStage != episode.StageScriptFailed {
		t.Errorf("episode = %s/%s", ep.Status, ep.CurrentStage)
	}

	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogFailed {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestPreprocessorContentLoadFailureStaysRetriable(t *testing.T) {
	fastRetries(t)
	gen := &cannedGenerator{jsonQueue: []string{classifyJSON, topicsJSON}}
	store, _, next, p := preprocessSetup(t, gen)

	// Point the message at an artifact that was never uploaded.
	body, err := queue.Encode(queue.PreprocessRequest{
		PodcastConfigID: "cfg-1",
		PodcastID:       "pod-1",
		EpisodeID:       "ep-1",
		S3Path:          "podcasts/pod-1/ep-1/absent.json",
	})
	if err != nil {
		t.Fatal(err)
	}

	herr := p.Handle(context.Background(), queue.Message{ID: "m-8", Body: body})
	if herr == nil {
		t.Fatal("expected error for missing content artifact")
	}
	if !pipeline.IsRetriable(herr) {
		t.Fatalf("err = %v, want transient", herr)
	}

	// The attempt's row is closed, but the episode stays alive for the
	// queue redelivery.
	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Status != episode.StatusContentCollected {
		t.Errorf("status = %s, want content_collected", ep.Status)
	}
	logs := store.LogsFor("ep-1")
	if len(logs) != 1 || logs[0].Status != episode.LogFailed {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].ErrorDetail["will_retry"] != true {
		t.Errorf("log details = %+v, want will_retry=true", logs[0].ErrorDetail)
	}
	if next.sentCount() != 0 {
		t.Error("failed attempt enqueued work")
	}
}

func TestPreprocessorDropsReplay(t *testing.T) {
	gen := &cannedGenerator{}
	store, _, next, p := preprocessSetup(t, gen)
	store.UpdateStage(context.Background(), "ep-1", episode.StageScriptCompleted, false)

	if err := p.Handle(context.Background(), preprocessMsg(t)); err != nil {
		t.Fatalf("replay should ack cleanly: %v", err)
	}
	if next.sentCount() != 0 {
		t.Error("replay enqueued a second synthesize message")
	}
}

func TestPreprocessorSingleSpeaker(t *testing.T) {
	gen := &cannedGenerator{
		jsonQueue: []string{classifyJSON, topicsJSON},
		text:      "Host: ערב טוב, אלו תוצאות הבחירות והקואליציה.",
	}
	store, _, next, p := preprocessSetup(t, gen)
	store.AddConfig(&episode.Config{
		ID: "cfg-1", PodcastID: "pod-1", PodcastName: "Solo",
		Speaker1Role: "Narrator", Speaker1Gender: "female",
		Language: "he", DurationMinutes: 5, TelegramChannel: "newsroom",
		PodcastFormat: episode.FormatSingleSpeaker,
	})

	if err := p.Handle(context.Background(), preprocessMsg(t)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	ep, _ := store.Get(context.Background(), "ep-1")
	if ep.Metadata.Speaker1Voice != "Aoede" {
		t.Errorf("voice = %q, want Hebrew female default", ep.Metadata.Speaker1Voice)
	}
	if ep.Metadata.Speaker2Voice != "" {
		t.Errorf("speaker2 voice = %q, want empty for single speaker", ep.Metadata.Speaker2Voice)
	}
	var req queue.SynthesizeRequest
	next.lastSent(t, &req)
	if req.DynamicConfig.PodcastFormat != string(episode.FormatSingleSpeaker) {
		t.Errorf("format = %q", req.DynamicConfig.PodcastFormat)
	}
}
