package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxloom/voxloom/pkg/config"
	"github.com/voxloom/voxloom/pkg/diacritics"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/notify"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/tts"
	"github.com/voxloom/voxloom/pkg/worker"
)

var synthesizerCmd = &cobra.Command{
	Use:   "synthesizer",
	Short: "Run the audio synthesis worker",
	Long: `Run the synthesizer, which polls the audio queue, renders the
episode script through the Gemini speech API chunk by chunk, stitches
the result and publishes the finished episode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkerCmd("synthesizer")
	},
}

func init() {
	rootCmd.AddCommand(synthesizerCmd)
}

func buildSynthesizer(ctx context.Context, cfg *config.Config, store episode.Store,
	tracker *episode.Tracker, artifacts *storage.Artifacts) (*worker.Synthesizer, error) {

	gc, err := newGenAI(ctx, cfg)
	if err != nil {
		return nil, err
	}
	speech := tts.NewClient(gc, cfg.Gemini.TTSModel,
		tts.WithLimiter(tts.NewLimiter(cfg.TTS.RequestsPerMinute, time.Minute)))

	s := worker.NewSynthesizer(store, tracker, speech, artifacts)
	s.MaxWorkers = cfg.TTS.MaxWorkers
	s.MaxRetries = cfg.TTS.MaxRetries
	if cfg.Diacritics.Endpoint != "" {
		s.Diacritics = diacritics.NewHTTP(cfg.Diacritics.Endpoint, httpClient())
	}
	if cfg.Callback.BaseURL != "" {
		s.Notifier = notify.NewWebhook(cfg.Callback.BaseURL, cfg.Callback.Secret, httpClient())
	}
	return s, nil
}
