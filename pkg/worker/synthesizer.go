package worker

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/voxloom/voxloom/pkg/chunk"
	"github.com/voxloom/voxloom/pkg/diacritics"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/notify"
	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/tts"
	"github.com/voxloom/voxloom/pkg/voice"
)

// Invocation budget floors. Below the entry floor no work starts; below
// the synthesis floor chunk rendering is not attempted. Both raise a
// deferral so the episode re-queues instead of being killed mid-render.
const (
	entryBudgetFloor     = 600 * time.Second
	synthesisBudgetFloor = 540 * time.Second
)

// SpeechClient is the synthesis surface the worker needs. *tts.Client
// satisfies it.
type SpeechClient interface {
	SynthesizeMulti(ctx context.Context, req tts.MultiRequest) (*tts.Result, error)
	SynthesizeSingle(ctx context.Context, req tts.SingleRequest) (*tts.Result, error)
}

// Synthesizer renders a prepared script into the final episode audio.
type Synthesizer struct {
	Store     episode.Store
	Tracker   *episode.Tracker
	TTS       SpeechClient
	Artifacts *storage.Artifacts

	// Diacritics is optional; nil skips Hebrew preprocessing.
	Diacritics diacritics.Client
	// Notifier is optional; nil skips the completion webhook.
	Notifier notify.Notifier

	MaxWorkers int
	MaxRetries int

	now func() time.Time
}

// NewSynthesizer wires a synthesizer worker.
func NewSynthesizer(store episode.Store, tracker *episode.Tracker, speech SpeechClient,
	artifacts *storage.Artifacts) *Synthesizer {
	return &Synthesizer{
		Store:      store,
		Tracker:    tracker,
		TTS:        speech,
		Artifacts:  artifacts,
		MaxWorkers: chunk.DefaultMaxWorkers,
		MaxRetries: chunk.DefaultMaxRetries,
		now:        time.Now,
	}
}

// Handle processes one synthesize message.
func (s *Synthesizer) Handle(ctx context.Context, msg queue.Message) error {
	var req queue.SynthesizeRequest
	if err := queue.Decode(msg.Body, &req); err != nil {
		return pipeline.Validation("synthesizer: %v", err)
	}
	if req.EpisodeID == "" || req.ScriptURL == "" {
		return pipeline.Validation("synthesizer: message missing episode_id or script_url")
	}

	ep, err := s.Store.Get(ctx, req.EpisodeID)
	if err != nil {
		return pipeline.Transient(err, "synthesizer: load episode %s", req.EpisodeID)
	}
	if ep.Status == episode.StatusCompleted ||
		ep.CurrentStage.Rank() >= episode.StageAudioCompleted.Rank() {
		slog.Info("episode already rendered, dropping replay",
			"episode", ep.ID, "stage", ep.CurrentStage)
		return nil
	}

	if err := s.Tracker.StageStart(ctx, ep.ID, episode.StageAudioProcessing, nil); err != nil {
		return pipeline.Transient(err, "synthesizer: log stage start")
	}

	if budget := remainingBudget(ctx); budget < entryBudgetFloor {
		return s.deferEpisode(ctx, ep.ID,
			pipeline.Defer(0, "synthesizer: %s of invocation budget left, need %s", budget, entryBudgetFloor))
	}

	if err := retryTransient(ctx, func() error {
		return s.Store.UpdateStatus(ctx, ep.ID, episode.StatusProcessing)
	}); err != nil {
		return closeAttempt(ctx, s.Tracker, ep.ID, episode.StageAudioProcessing,
			pipeline.Transient(err, "synthesizer: set processing status"))
	}

	stageMeta, err := s.render(ctx, ep, &req)
	if err != nil {
		if pipeline.IsDeferrable(err) {
			return s.deferEpisode(ctx, ep.ID, err)
		}
		return closeAttempt(ctx, s.Tracker, ep.ID, episode.StageAudioProcessing, err)
	}

	if err := s.Tracker.StageComplete(ctx, ep.ID, episode.StageAudioProcessing, stageMeta); err != nil {
		return pipeline.Transient(err, "synthesizer: log stage complete")
	}
	if err := s.Store.UpdateStage(ctx, ep.ID, episode.StageAudioCompleted, false); err != nil {
		return pipeline.Transient(err, "synthesizer: advance stage")
	}
	return nil
}

// deferEpisode records the deferral and returns the episode to
// script_ready so queue redelivery retries it. The returned error keeps
// the message on the queue.
func (s *Synthesizer) deferEpisode(ctx context.Context, episodeID string, cause error) error {
	retryAfter := pipeline.RetryAfter(cause)
	if err := s.Tracker.StageDeferred(ctx, episodeID, episode.StageAudioProcessing, cause, retryAfter); err != nil {
		slog.Error("recording deferral failed", "episode", episodeID, "error", err)
	}
	if err := s.Store.UpdateStatus(ctx, episodeID, episode.StatusScriptReady); err != nil {
		slog.Error("returning episode to script_ready failed", "episode", episodeID, "error", err)
	}
	return cause
}

func (s *Synthesizer) render(ctx context.Context, ep *episode.Episode,
	req *queue.SynthesizeRequest) (map[string]any, error) {

	dc, err := s.ensureVoices(ctx, ep, req.DynamicConfig)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := retryTransient(ctx, func() error {
		var gerr error
		raw, gerr = s.Artifacts.GetBytes(ctx, req.ScriptURL)
		return gerr
	}); err != nil {
		return nil, pipeline.Transient(err, "synthesizer: load script")
	}
	text := string(raw)

	keys := storage.Keys{PodcastID: ep.PodcastID, EpisodeID: ep.ID}
	diacritized := false
	if dc.LanguageCode == "he" && s.Diacritics != nil && !hasNiqqud(text) {
		processed, derr := s.Diacritics.Diacritize(ctx, text)
		if derr != nil {
			slog.Warn("diacritization failed, synthesizing plain text",
				"episode", ep.ID, "error", derr)
		} else {
			text = processed
			diacritized = true
		}
	}

	if budget := remainingBudget(ctx); budget < synthesisBudgetFloor {
		return nil, pipeline.Defer(0,
			"synthesizer: %s of invocation budget left before synthesis, need %s",
			budget, synthesisBudgetFloor)
	}

	chunks := chunk.Split(text, chunk.MaxCharsPerChunk)
	mgr := chunk.NewManager(s.synthesizeFunc(dc), s.MaxWorkers, s.MaxRetries)
	rendered, err := mgr.Run(ctx, chunks)
	if err != nil {
		return nil, err
	}

	audio, durationSec, err := chunk.Stitch(rendered)
	if err != nil {
		return nil, pipeline.Fatal(err, "synthesizer: stitch chunks")
	}

	audioKey := keys.Audio()
	if err := retryTransient(ctx, func() error {
		return s.Artifacts.PutBytes(ctx, audioKey, audio)
	}); err != nil {
		return nil, pipeline.Transient(err, "synthesizer: upload audio")
	}
	duration := int(math.Round(durationSec))
	if err := retryTransient(ctx, func() error {
		return s.Store.UpdateAudio(ctx, ep.ID, audioKey, episode.StatusCompleted, duration)
	}); err != nil {
		return nil, pipeline.Transient(err, "synthesizer: publish episode")
	}

	if diacritized {
		if err := s.Artifacts.PutBytes(ctx, keys.ScriptDiacritized(s.now().UTC()), []byte(text)); err != nil {
			slog.Warn("uploading diacritized transcript failed", "episode", ep.ID, "error", err)
		}
	}

	if s.Notifier != nil {
		if err := s.Notifier.EpisodeCompleted(ctx, notify.Completion{
			EpisodeID: ep.ID,
			PodcastID: ep.PodcastID,
			Status:    string(episode.StatusCompleted),
			AudioURL:  audioKey,
			Duration:  duration,
		}); err != nil {
			slog.Warn("completion webhook failed", "episode", ep.ID, "error", err)
		}
	}

	return map[string]any{
		"chunks":           len(chunks),
		"duration_seconds": duration,
		"diacritized":      diacritized,
	}, nil
}

// ensureVoices guarantees the dynamic config carries pre-selected voices.
// A replayed legacy message reconstructs them from episode metadata, or
// re-selects deterministically and persists them back.
func (s *Synthesizer) ensureVoices(ctx context.Context, ep *episode.Episode,
	dc queue.DynamicConfig) (queue.DynamicConfig, error) {

	if dc.LanguageCode == "" {
		dc.LanguageCode = ep.Metadata.LanguageCode
	}
	if dc.PodcastFormat == "" {
		dc.PodcastFormat = string(ep.Metadata.PodcastFormat)
	}
	multi := dc.PodcastFormat != string(episode.FormatSingleSpeaker)

	if dc.Speaker1Voice != "" && (!multi || dc.Speaker2Voice != "") {
		return dc, nil
	}

	md := ep.Metadata
	if dc.Speaker1Role == "" {
		dc.Speaker1Role = md.Speaker1Role
	}
	if dc.Speaker1Gender == "" {
		dc.Speaker1Gender = md.Speaker1Gender
	}
	if dc.Speaker2Role == "" {
		dc.Speaker2Role = md.Speaker2Role
	}
	if dc.Speaker2Gender == "" {
		dc.Speaker2Gender = md.Speaker2Gender
	}
	if dc.Speaker1Voice == "" {
		dc.Speaker1Voice = md.Speaker1Voice
	}
	if dc.Speaker2Voice == "" {
		dc.Speaker2Voice = md.Speaker2Voice
	}
	if dc.Speaker1Voice != "" && (!multi || dc.Speaker2Voice != "") {
		return dc, nil
	}

	// Legacy message and legacy record: re-select deterministically and
	// persist, so every later replay renders with the same voices.
	if dc.Speaker1Role == "" {
		dc.Speaker1Role = "Host"
	}
	if multi {
		if dc.Speaker2Role == "" {
			dc.Speaker2Role = "Expert"
		}
		pair := voice.SelectPair(ep.ID, dc.LanguageCode, dc.Speaker2Role,
			dc.Speaker1Gender, dc.Speaker2Gender, voice.Options{RandomizeSpeaker2: true})
		dc.Speaker1Voice, dc.Speaker2Voice = pair.Voice1, pair.Voice2
	} else {
		dc.Speaker1Voice = voice.SelectSingle(dc.LanguageCode, dc.Speaker1Gender).Voice1
	}
	slog.Info("reconstructed voices for legacy message",
		"episode", ep.ID, "voice1", dc.Speaker1Voice, "voice2", dc.Speaker2Voice)

	err := retryTransient(ctx, func() error {
		return s.Store.SetMetadata(ctx, ep.ID, episode.Metadata{
			Speaker1Voice:  dc.Speaker1Voice,
			Speaker2Voice:  dc.Speaker2Voice,
			Speaker1Role:   dc.Speaker1Role,
			Speaker2Role:   dc.Speaker2Role,
			Speaker1Gender: dc.Speaker1Gender,
			Speaker2Gender: dc.Speaker2Gender,
			LanguageCode:   dc.LanguageCode,
			PodcastFormat:  episode.Format(dc.PodcastFormat),
		})
	})
	if err != nil {
		return dc, pipeline.Transient(err, "synthesizer: persist reconstructed voices")
	}
	return dc, nil
}

// synthesizeFunc adapts the dynamic config to a per-chunk render call.
func (s *Synthesizer) synthesizeFunc(dc queue.DynamicConfig) chunk.SynthesizeFunc {
	contentType := ""
	if dc.ContentAnalysis != nil {
		contentType = dc.ContentAnalysis.ContentType
	}
	if dc.PodcastFormat == string(episode.FormatSingleSpeaker) {
		return func(ctx context.Context, text string) (*tts.Result, error) {
			return s.TTS.SynthesizeSingle(ctx, tts.SingleRequest{
				Script:      text,
				Language:    dc.LanguageCode,
				Role:        dc.Speaker1Role,
				Gender:      dc.Speaker1Gender,
				Voice:       dc.Speaker1Voice,
				ContentType: contentType,
			})
		}
	}
	return func(ctx context.Context, text string) (*tts.Result, error) {
		return s.TTS.SynthesizeMulti(ctx, tts.MultiRequest{
			Script:      text,
			Language:    dc.LanguageCode,
			Role1:       dc.Speaker1Role,
			Role2:       dc.Speaker2Role,
			Gender1:     dc.Speaker1Gender,
			Gender2:     dc.Speaker2Gender,
			Voice1:      dc.Speaker1Voice,
			Voice2:      dc.Speaker2Voice,
			ContentType: contentType,
		})
	}
}

// hasNiqqud reports whether the text already carries Hebrew vowel marks.
func hasNiqqud(text string) bool {
	for _, r := range text {
		if r >= 0x05B0 && r <= 0x05C7 {
			return true
		}
	}
	return false
}

var _ Handler = (*Synthesizer)(nil)
