package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxloom/voxloom/pkg/collect"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/script"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/voice"
)

// Preprocessor turns collected content into a validated script with
// pre-selected voices.
type Preprocessor struct {
	Store     episode.Store
	Tracker   *episode.Tracker
	Analyzer  *script.Analyzer
	Drafter   *script.Drafter
	Artifacts *storage.Artifacts
	Next      queue.Queue // synthesize queue

	now func() time.Time
}

// NewPreprocessor wires a preprocessor worker.
func NewPreprocessor(store episode.Store, tracker *episode.Tracker,
	analyzer *script.Analyzer, drafter *script.Drafter,
	artifacts *storage.Artifacts, next queue.Queue) *Preprocessor {
	return &Preprocessor{
		Store:     store,
		Tracker:   tracker,
		Analyzer:  analyzer,
		Drafter:   drafter,
		Artifacts: artifacts,
		Next:      next,
		now:       time.Now,
	}
}

// Handle processes one preprocess message.
func (p *Preprocessor) Handle(ctx context.Context, msg queue.Message) error {
	var req queue.PreprocessRequest
	if err := queue.Decode(msg.Body, &req); err != nil {
		return pipeline.Validation("preprocessor: %v", err)
	}
	if req.EpisodeID == "" || req.S3Path == "" {
		return pipeline.Validation("preprocessor: message missing episode_id or s3_path")
	}

	ep, err := p.Store.Get(ctx, req.EpisodeID)
	if err != nil {
		return pipeline.Transient(err, "preprocessor: load episode %s", req.EpisodeID)
	}
	if ep.CurrentStage.Rank() >= episode.StageScriptCompleted.Rank() {
		slog.Info("script already generated, dropping replay",
			"episode", ep.ID, "stage", ep.CurrentStage)
		return nil
	}

	if err := p.Tracker.StageStart(ctx, ep.ID, episode.StageScriptProcessing, nil); err != nil {
		return pipeline.Transient(err, "preprocessor: log stage start")
	}

	// Resolved after StageStart so a missing config still produces a
	// failed log row and a failed episode.
	cfg, err := p.resolveConfig(ctx, req.PodcastConfigID, ep.PodcastID)
	if err != nil {
		return closeAttempt(ctx, p.Tracker, ep.ID, episode.StageScriptProcessing, err)
	}

	stageMeta, err := p.process(ctx, ep, cfg, &req)
	if err != nil {
		return closeAttempt(ctx, p.Tracker, ep.ID, episode.StageScriptProcessing, err)
	}

	if err := p.Tracker.StageComplete(ctx, ep.ID, episode.StageScriptProcessing, stageMeta); err != nil {
		return pipeline.Transient(err, "preprocessor: log stage complete")
	}
	if err := p.Store.UpdateStage(ctx, ep.ID, episode.StageScriptCompleted, false); err != nil {
		return pipeline.Transient(err, "preprocessor: advance stage")
	}
	return nil
}

func (p *Preprocessor) resolveConfig(ctx context.Context, configID, podcastID string) (*episode.Config, error) {
	if configID != "" {
		cfg, err := p.Store.ConfigByID(ctx, configID)
		if err == nil {
			return cfg, nil
		}
	}
	cfg, err := p.Store.ConfigByPodcastID(ctx, podcastID)
	if err != nil {
		return nil, pipeline.Fatal(err, "preprocessor: no podcast config for %s", podcastID)
	}
	return cfg, nil
}

// process runs the preprocessing pipeline and returns the metadata to
// attach to the stage's completed log row.
func (p *Preprocessor) process(ctx context.Context, ep *episode.Episode, cfg *episode.Config,
	req *queue.PreprocessRequest) (map[string]any, error) {

	var content collect.Content
	if err := retryTransient(ctx, func() error {
		return p.Artifacts.GetJSON(ctx, req.S3Path, &content)
	}); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: load content")
	}
	messages := collect.CleanMessages(content)
	if len(messages) == 0 {
		return nil, pipeline.Fatal(nil, "preprocessor: content %s has no text messages", req.S3Path)
	}

	analysis, err := p.Analyzer.Classify(ctx, messages)
	if err != nil {
		return nil, pipeline.Transient(err, "preprocessor: content analysis")
	}
	topics, err := p.Analyzer.Topics(ctx, messages)
	if err != nil {
		return nil, pipeline.Transient(err, "preprocessor: topic analysis")
	}
	analysis.Topics = topics.Topics
	analysis.Structure = topics.Structure
	analysis.TransitionStyle = topics.TransitionStyle

	metrics := script.ComputeMetrics(messages)
	prompted := messages
	if metrics.Strategy == script.StrategyCompression {
		prompted = script.Prioritize(messages)
	}

	md := p.selectVoices(ep, cfg, analysis)

	text, err := p.Drafter.Draft(ctx, script.DraftInput{
		PodcastName:            cfg.PodcastName,
		Language:               voice.LanguageName(cfg.Language),
		DurationMinutes:        cfg.DurationMinutes,
		Format:                 cfg.PodcastFormat,
		Speaker1Role:           md.Speaker1Role,
		Speaker2Role:           md.Speaker2Role,
		Analysis:               analysis,
		Topics:                 topics,
		Metrics:                metrics,
		AdditionalInstructions: cfg.AdditionalInstructions,
		Messages:               prompted,
	})
	if err != nil {
		return nil, pipeline.Transient(err, "preprocessor: draft script")
	}
	if err := script.CheckPlaceholders(text); err != nil {
		return nil, pipeline.Fatal(err, "preprocessor: script rejected")
	}
	report := script.Evaluate(text, messages, metrics)
	if !report.Passed {
		slog.Warn("script quality below gate, publishing anyway",
			"episode", ep.ID, "score", report.Score, "recommendations", report.Recommendations)
	}

	now := p.now().UTC()
	keys := storage.Keys{PodcastID: ep.PodcastID, EpisodeID: ep.ID}
	if err := retryTransient(ctx, func() error {
		return p.Artifacts.PutJSON(ctx, keys.CleanContent(now), messages)
	}); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: upload clean content")
	}
	if err := retryTransient(ctx, func() error {
		return p.Artifacts.PutJSON(ctx, keys.Analysis(now), analysis)
	}); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: upload analysis")
	}
	scriptKey := keys.Script(now)
	if err := retryTransient(ctx, func() error {
		return p.Artifacts.PutBytes(ctx, scriptKey, []byte(text))
	}); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: upload script")
	}

	if err := retryTransient(ctx, func() error {
		return p.Store.SetMetadata(ctx, ep.ID, md)
	}); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: persist metadata")
	}
	if err := retryTransient(ctx, func() error {
		return p.Store.UpdateScript(ctx, ep.ID, scriptKey, episode.StatusScriptReady, analysis)
	}); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: update episode")
	}

	body, err := queue.Encode(queue.SynthesizeRequest{
		PodcastConfigID: cfg.ID,
		PodcastID:       ep.PodcastID,
		EpisodeID:       ep.ID,
		ScriptURL:       scriptKey,
		DynamicConfig: queue.DynamicConfig{
			LanguageCode:    cfg.Language,
			Language:        voice.LanguageName(cfg.Language),
			PodcastFormat:   string(cfg.PodcastFormat),
			Speaker1Role:    md.Speaker1Role,
			Speaker1Gender:  md.Speaker1Gender,
			Speaker1Voice:   md.Speaker1Voice,
			Speaker2Role:    md.Speaker2Role,
			Speaker2Gender:  md.Speaker2Gender,
			Speaker2Voice:   md.Speaker2Voice,
			ContentAnalysis: analysis,
			TopicAnalysis:   topics,
		},
	})
	if err != nil {
		return nil, pipeline.Fatal(err, "preprocessor: encode synthesize message")
	}
	if err := retryTransient(ctx, func() error { return p.Next.Send(ctx, body) }); err != nil {
		return nil, pipeline.Transient(err, "preprocessor: enqueue synthesize")
	}

	return map[string]any{
		"quality_score":     report.Score,
		"quality_passed":    report.Passed,
		"ratio_match":       report.RatioMatch,
		"topic_coverage":    report.TopicCoverage,
		"hallucination":     report.HallucinationRisk,
		"recommendations":   report.Recommendations,
		"sizing_strategy":   string(metrics.Strategy),
		"messages_prompted": len(prompted),
	}, nil
}

// selectVoices derives the episode's immutable voice assignment. Speaker 1
// is the configured host; speaker 2's role and gender come from the config
// when pinned, else from the content analysis.
func (p *Preprocessor) selectVoices(ep *episode.Episode, cfg *episode.Config,
	analysis *episode.Analysis) episode.Metadata {

	md := episode.Metadata{
		Speaker1Role:   cfg.Speaker1Role,
		Speaker1Gender: cfg.Speaker1Gender,
		LanguageCode:   cfg.Language,
		PodcastFormat:  cfg.PodcastFormat,
	}
	if md.Speaker1Role == "" {
		md.Speaker1Role = "Host"
	}

	if !cfg.IsMultiSpeaker() {
		md.Speaker1Voice = voice.SelectSingle(cfg.Language, md.Speaker1Gender).Voice1
		md.PodcastFormat = episode.FormatSingleSpeaker
		return md
	}

	md.Speaker2Role = cfg.Speaker2Role
	md.Speaker2Gender = cfg.Speaker2Gender
	if md.Speaker2Role == "" && analysis != nil {
		md.Speaker2Role = analysis.SpecificRole
	}
	if md.Speaker2Role == "" {
		md.Speaker2Role = "Expert"
	}
	if md.Speaker2Gender == "" && analysis != nil {
		md.Speaker2Gender = analysis.RoleGender
	}

	pair := voice.SelectPair(ep.ID, cfg.Language, md.Speaker2Role,
		md.Speaker1Gender, md.Speaker2Gender, voice.Options{RandomizeSpeaker2: true})
	md.Speaker1Voice = pair.Voice1
	md.Speaker2Voice = pair.Voice2
	md.PodcastFormat = episode.FormatMultiSpeaker
	return md
}

var _ Handler = (*Preprocessor)(nil)
