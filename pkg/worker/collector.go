package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/voxloom/voxloom/pkg/collect"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/telegram"
)

// defaultLookbackHours applies when the config carries neither an
// explicit date range nor a look-back window.
const defaultLookbackHours = 24

// Collector harvests channel content for one episode.
type Collector struct {
	Store     episode.Store
	Tracker   *episode.Tracker
	Chat      telegram.Client
	Artifacts *storage.Artifacts
	Next      queue.Queue // preprocess queue

	// now is replaceable in tests.
	now func() time.Time
}

// NewCollector wires a collector worker.
func NewCollector(store episode.Store, tracker *episode.Tracker, chat telegram.Client,
	artifacts *storage.Artifacts, next queue.Queue) *Collector {
	return &Collector{
		Store:     store,
		Tracker:   tracker,
		Chat:      chat,
		Artifacts: artifacts,
		Next:      next,
		now:       time.Now,
	}
}

// Handle processes one collect message.
func (c *Collector) Handle(ctx context.Context, msg queue.Message) error {
	var req queue.CollectRequest
	if err := queue.Decode(msg.Body, &req); err != nil {
		return pipeline.Validation("collector: %v", err)
	}
	if req.EpisodeID == "" {
		return pipeline.Validation("collector: message missing episode_id")
	}

	ep, err := c.Store.Get(ctx, req.EpisodeID)
	if err != nil {
		return pipeline.Transient(err, "collector: load episode %s", req.EpisodeID)
	}
	if ep.CurrentStage.After(episode.StageTelegramProcessing) {
		slog.Info("episode already collected, dropping replay",
			"episode", ep.ID, "stage", ep.CurrentStage)
		return nil
	}

	if err := c.Tracker.StageStart(ctx, ep.ID, episode.StageTelegramProcessing, nil); err != nil {
		return pipeline.Transient(err, "collector: log stage start")
	}

	// Resolved after StageStart so a missing config still produces a
	// failed log row and a failed episode.
	cfg, err := c.resolveConfig(ctx, req.PodcastConfigID, ep.PodcastID)
	if err != nil {
		return closeAttempt(ctx, c.Tracker, ep.ID, episode.StageTelegramProcessing, err)
	}

	content, err := c.collect(ctx, ep, cfg, &req)
	if err != nil {
		return closeAttempt(ctx, c.Tracker, ep.ID, episode.StageTelegramProcessing, err)
	}

	if err := c.Tracker.StageComplete(ctx, ep.ID, episode.StageTelegramProcessing, map[string]any{
		"messages":        len(content.Messages),
		"dropped":         content.Dropped,
		"media_download":  content.Media.Downloaded,
		"blocked_domains": content.URLs.Blocked,
	}); err != nil {
		return pipeline.Transient(err, "collector: log stage complete")
	}
	if err := c.Store.UpdateStage(ctx, ep.ID, episode.StageTelegramCompleted, false); err != nil {
		return pipeline.Transient(err, "collector: advance stage")
	}
	return nil
}

func (c *Collector) resolveConfig(ctx context.Context, configID, podcastID string) (*episode.Config, error) {
	if configID != "" {
		cfg, err := c.Store.ConfigByID(ctx, configID)
		if err == nil {
			return cfg, nil
		}
	}
	cfg, err := c.Store.ConfigByPodcastID(ctx, podcastID)
	if err != nil {
		return nil, pipeline.Fatal(err, "collector: no podcast config for %s", podcastID)
	}
	return cfg, nil
}

// window derives the harvest interval: explicit message range, then
// config dates, then the look-back window.
func (c *Collector) window(cfg *episode.Config, req *queue.CollectRequest) (time.Time, time.Time) {
	if req.DateRange != nil {
		return req.DateRange.From, req.DateRange.To
	}
	if cfg.StartDate != nil && cfg.EndDate != nil {
		return *cfg.StartDate, *cfg.EndDate
	}
	hours := cfg.TelegramHours
	if hours <= 0 {
		hours = defaultLookbackHours
	}
	now := c.now().UTC()
	return now.Add(-time.Duration(hours) * time.Hour), now
}

func (c *Collector) collect(ctx context.Context, ep *episode.Episode, cfg *episode.Config,
	req *queue.CollectRequest) (*collect.Content, error) {

	channel := req.TelegramChannel
	if channel == "" {
		channel = cfg.TelegramChannel
	}
	if channel == "" {
		return nil, pipeline.Validation("collector: episode %s has no source channel", ep.ID)
	}

	from, to := c.window(cfg, req)
	raw, err := c.Chat.ChannelMessages(ctx, channel, from, to)
	if err != nil {
		return nil, pipeline.Transient(err, "collector: fetch %s", channel)
	}

	keys := storage.Keys{PodcastID: ep.PodcastID, EpisodeID: ep.ID}
	mediaKeys := make(map[int64]string)
	var media collect.MediaStats
	for _, m := range raw {
		if m.Media == nil {
			continue
		}
		media.Found++
		if !collect.MediaAllowed(m.Media.Type, cfg.MediaTypes) {
			media.Skipped++
			continue
		}
		key := keys.Media(collect.MediaDir(m.Media.Type), m.Media.Filename)
		if err := c.downloadMedia(ctx, channel, m.ID, key); err != nil {
			slog.Warn("media download failed, skipping attachment",
				"episode", ep.ID, "message", m.ID, "error", err)
			media.Skipped++
			continue
		}
		mediaKeys[m.ID] = key
		media.Downloaded++
	}

	content := collect.Assemble(raw, collect.FilterOptions{BlockedDomains: cfg.FilteredDomains}, mediaKeys)
	content.Channel = channel
	content.From, content.To = from, to
	content.CollectedAt = c.now().UTC()
	content.Media = media

	if len(content.Messages) == 0 {
		return nil, pipeline.Fatal(nil, "collector: no usable messages in %s between %s and %s",
			channel, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	contentKey := keys.Content()
	if err := retryTransient(ctx, func() error {
		return c.Artifacts.PutJSON(ctx, contentKey, content)
	}); err != nil {
		return nil, pipeline.Transient(err, "collector: upload content")
	}
	if err := retryTransient(ctx, func() error {
		return c.Store.UpdateContent(ctx, ep.ID, contentKey, episode.StatusContentCollected)
	}); err != nil {
		return nil, pipeline.Transient(err, "collector: update episode")
	}

	body, err := queue.Encode(queue.PreprocessRequest{
		PodcastConfigID: cfg.ID,
		PodcastID:       ep.PodcastID,
		EpisodeID:       ep.ID,
		S3Path:          contentKey,
	})
	if err != nil {
		return nil, pipeline.Fatal(err, "collector: encode preprocess message")
	}
	if err := retryTransient(ctx, func() error { return c.Next.Send(ctx, body) }); err != nil {
		return nil, pipeline.Transient(err, "collector: enqueue preprocess")
	}
	return &content, nil
}

func (c *Collector) downloadMedia(ctx context.Context, channel string, messageID int64, key string) error {
	r, err := c.Chat.DownloadMedia(ctx, channel, messageID)
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read media: %w", err)
	}
	return c.Artifacts.PutBytes(ctx, key, data)
}

var _ Handler = (*Collector)(nil)
