package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxloom/voxloom/pkg/cli"
	"github.com/voxloom/voxloom/pkg/episode"
)

var flagStatusOutput string

var statusCmd = &cobra.Command{
	Use:   "status <episode-id>",
	Short: "Show an episode's pipeline state and logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&flagStatusOutput, "output", "o", "", "output format (yaml, json)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	logs, err := store.ListLogs(ctx, ep.ID)
	if err != nil {
		return err
	}

	if flagStatusOutput != "" {
		return cli.Output(struct {
			Episode *episode.Episode         `json:"episode" yaml:"episode"`
			Logs    []*episode.ProcessingLog `json:"logs" yaml:"logs"`
		}{ep, logs}, cli.OutputOptions{Format: cli.OutputFormat(flagStatusOutput)})
	}

	printStatus(ep, logs)
	return nil
}

func printStatus(ep *episode.Episode, logs []*episode.ProcessingLog) {
	styles := cli.NewStyles(cli.DefaultTheme)
	label := func(s string) string { return styles.Label.Render(s) }

	fmt.Println(styles.Title.Render("Episode " + ep.ID))
	fmt.Printf("%s %s\n", label("Podcast:"), ep.PodcastID)
	fmt.Printf("%s %s\n", label("Status: "), ep.Status)
	fmt.Printf("%s %s\n", label("Stage:  "), ep.CurrentStage)
	if ep.ContentURL != "" {
		fmt.Printf("%s %s\n", label("Content:"), ep.ContentURL)
	}
	if ep.ScriptURL != "" {
		fmt.Printf("%s %s\n", label("Script: "), ep.ScriptURL)
	}
	if ep.AudioURL != "" {
		fmt.Printf("%s %s (%ds)\n", label("Audio:  "), ep.AudioURL, ep.Duration)
	}
	if md := ep.Metadata; md.Speaker1Voice != "" {
		voices := md.Speaker1Voice
		if md.Speaker2Voice != "" {
			voices += ", " + md.Speaker2Voice
		}
		fmt.Printf("%s %s\n", label("Voices: "), voices)
	}

	if len(logs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(styles.Label.Render("Processing log"))
	for _, l := range logs {
		line := fmt.Sprintf("  %s  %-22s %-10s %s",
			l.StartedAt.Format("2006-01-02 15:04:05"),
			l.Stage, l.Status, cli.FormatDuration(int(l.DurationMS)))
		if l.ErrorMsg != "" {
			line += "  " + strings.TrimSpace(l.ErrorMsg)
		}
		switch l.Status {
		case episode.LogFailed:
			fmt.Println(styles.Help.Render(line))
		default:
			fmt.Println(line)
		}
	}
}
