package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxloom/voxloom/pkg/queue"
)

var (
	flagEnqueueChannel string
	flagEnqueueFrom    string
	flagEnqueueTo      string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <episode-id>",
	Short: "Enqueue a collection request for an episode",
	Long: `Enqueue a collection request for an existing episode record. The
podcast and config IDs come from the episode itself; the channel and
date range default to the podcast configuration.

Example:
  voxloom enqueue ep-123 --from 2026-08-20T00:00:00Z --to 2026-08-21T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&flagEnqueueChannel, "channel", "", "override the configured Telegram channel")
	enqueueCmd.Flags().StringVar(&flagEnqueueFrom, "from", "", "collection window start (RFC 3339)")
	enqueueCmd.Flags().StringVar(&flagEnqueueTo, "to", "", "collection window end (RFC 3339)")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	setupLogging()
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ep, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	req := queue.CollectRequest{
		PodcastConfigID: ep.ConfigID,
		PodcastID:       ep.PodcastID,
		EpisodeID:       ep.ID,
		TelegramChannel: flagEnqueueChannel,
	}
	if flagEnqueueFrom != "" || flagEnqueueTo != "" {
		if flagEnqueueFrom == "" || flagEnqueueTo == "" {
			return fmt.Errorf("--from and --to must be given together")
		}
		from, err := time.Parse(time.RFC3339, flagEnqueueFrom)
		if err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
		to, err := time.Parse(time.RFC3339, flagEnqueueTo)
		if err != nil {
			return fmt.Errorf("parse --to: %w", err)
		}
		req.DateRange = &queue.DateRange{From: from, To: to}
	}

	body, err := queue.Encode(req)
	if err != nil {
		return err
	}
	q, cleanup, err := openQueue(ctx, cfg, cfg.Queues.Collect, "collect")
	if err != nil {
		return err
	}
	defer cleanup()
	defer closeLocalQueues()

	if err := q.Send(ctx, body); err != nil {
		return err
	}
	fmt.Printf("enqueued collection for episode %s (podcast %s)\n", ep.ID, ep.PodcastID)
	return nil
}
