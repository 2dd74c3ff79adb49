package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxloom/voxloom/pkg/config"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/storage"
	"github.com/voxloom/voxloom/pkg/telegram"
	"github.com/voxloom/voxloom/pkg/worker"
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the content collection worker",
	Long: `Run the collector, which polls the collection queue, reads the
configured Telegram channel through the gateway, filters and stores the
content, and enqueues script generation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkerCmd("collector")
	},
}

func init() {
	rootCmd.AddCommand(collectorCmd)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()
	return ctx, cancel
}

// runWorkerCmd runs one worker role until interrupted.
func runWorkerCmd(role string) error {
	setupLogging()
	cfg, err := loadConfig(role)
	if err != nil {
		return err
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

	runner, cleanup, err := buildRunner(ctx, cfg, role, store, artifacts)
	if err != nil {
		return err
	}
	defer cleanup()
	defer closeLocalQueues()

	slog.Info("worker started", "role", role)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("worker stopped", "role", role)
	return nil
}

// buildRunner wires one role's handler and its queues.
func buildRunner(ctx context.Context, cfg *config.Config, role string,
	store episode.Store, artifacts *storage.Artifacts) (*worker.Runner, func(), error) {

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	tracker := episode.NewTracker(store)

	switch role {
	case "collector":
		in, closeIn, err := openQueue(ctx, cfg, cfg.Queues.Collect, "collect")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeIn)
		next, closeNext, err := openQueue(ctx, cfg, cfg.Queues.Preprocess, "preprocess")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeNext)

		chat := telegram.NewHTTP(cfg.Telegram.GatewayURL,
			cfg.Telegram.APIID, cfg.Telegram.APIHash, cfg.Telegram.Session, httpClient())
		c := worker.NewCollector(store, tracker, chat, artifacts, next)
		return &worker.Runner{Queue: in, Handler: c}, cleanup, nil

	case "preprocessor":
		in, closeIn, err := openQueue(ctx, cfg, cfg.Queues.Preprocess, "preprocess")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeIn)
		next, closeNext, err := openQueue(ctx, cfg, cfg.Queues.Synthesize, "synthesize")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeNext)

		p, err := buildPreprocessor(ctx, cfg, store, tracker, artifacts, next)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return &worker.Runner{Queue: in, Handler: p}, cleanup, nil

	case "synthesizer":
		in, closeIn, err := openQueue(ctx, cfg, cfg.Queues.Synthesize, "synthesize")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeIn)

		s, err := buildSynthesizer(ctx, cfg, store, tracker, artifacts)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		// Audio rendering holds a message for minutes; one at a time.
		return &worker.Runner{Queue: in, Handler: s, BatchSize: 1}, cleanup, nil
	}
	cleanup()
	return nil, nil, errors.New("unknown worker role " + role)
}
