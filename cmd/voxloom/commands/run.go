package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all three workers in one process",
	Long: `Run the collector, preprocessor and synthesizer together in one
process. Intended for development with the embedded local queue, which
cannot be shared across processes.

Example:
  QUEUE_LOCAL_DIR=./queues STORAGE_LOCAL_DIR=./artifacts voxloom run`,
	RunE: runAll,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	setupLogging()
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	for _, role := range []string{"collector", "preprocessor", "synthesizer"} {
		if err := cfg.ValidateFor(role); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	pool, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	artifacts, err := openArtifacts(ctx, cfg)
	if err != nil {
		return err
	}

	defer closeLocalQueues()
	g, gctx := errgroup.WithContext(ctx)
	for _, role := range []string{"collector", "preprocessor", "synthesizer"} {
		runner, cleanup, err := buildRunner(gctx, cfg, role, store, artifacts)
		if err != nil {
			return err
		}
		defer cleanup()
		g.Go(func() error {
			slog.Info("worker started", "role", role)
			return runner.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("all workers stopped")
	return nil
}
