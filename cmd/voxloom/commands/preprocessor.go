package commands

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/voxloom/voxloom/pkg/config"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/llm"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/script"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/worker"
)

var preprocessorCmd = &cobra.Command{
	Use:   "preprocessor",
	Short: "Run the script generation worker",
	Long: `Run the preprocessor, which polls the script queue, analyzes the
collected content, drafts the episode script, selects voices and
enqueues audio synthesis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkerCmd("preprocessor")
	},
}

func init() {
	rootCmd.AddCommand(preprocessorCmd)
}

func buildPreprocessor(ctx context.Context, cfg *config.Config, store episode.Store,
	tracker *episode.Tracker, artifacts *storage.Artifacts, next queue.Queue) (*worker.Preprocessor, error) {

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return worker.NewPreprocessor(store, tracker,
		script.NewAnalyzer(gen), script.NewDrafter(gen), artifacts, next), nil
}

// newGenerator picks the text generation provider. An OpenAI key selects
// the OpenAI-compatible endpoint; Gemini otherwise.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	if cfg.OpenAI.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		client := openai.NewClient(opts...)
		return &llm.OpenAI{Client: &client, Model: cfg.OpenAI.Model}, nil
	}
	gc, err := newGenAI(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &llm.Gemini{Client: gc, Model: cfg.Gemini.Model}, nil
}
