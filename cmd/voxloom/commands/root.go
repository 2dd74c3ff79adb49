package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "voxloom",
	Short: "Telegram-to-podcast pipeline workers",
	Long: `voxloom runs the episode production pipeline.

An episode moves through three workers connected by queues:

  collector     reads a Telegram channel and stores cleaned content
  preprocessor  analyzes content and generates the episode script
  synthesizer   renders the script into the final audio

Configuration comes from a YAML file plus environment overrides
(environment wins). Queue URLs select SQS; setting queues.local_dir
switches all stages to an embedded on-disk queue for development.

Examples:
  # Run a worker against config.yaml
  voxloom collector --config config.yaml

  # Kick off an episode by hand
  voxloom enqueue --episode ep-123 --podcast pod-9 --podcast-config cfg-9

  # Inspect where an episode is stuck
  voxloom status ep-123`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}

// setupLogging installs the process-wide slog handler.
func setupLogging() {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
}
