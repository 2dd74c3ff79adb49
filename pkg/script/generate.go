package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/llm"
)

// Drafting parameters.
const (
	draftTemperature = 0.7
	draftMaxTokens   = 32768
)

// DraftInput bundles everything the prompt needs.
type DraftInput struct {
	PodcastName     string
	Language        string // full name, e.g. "Hebrew"
	DurationMinutes int

	Format episode.Format

	Speaker1Role string
	Speaker2Role string // empty for single-speaker

	Analysis *episode.Analysis
	Topics   *TopicAnalysis
	Metrics  Metrics

	AdditionalInstructions string

	// Messages are the (possibly prioritized) content messages.
	Messages []Message
}

// Drafter generates the conversational script.
type Drafter struct {
	gen llm.Generator
}

// NewDrafter creates a Drafter over a text generator.
func NewDrafter(gen llm.Generator) *Drafter {
	return &Drafter{gen: gen}
}

// Draft produces the full script: plain dialogue lines prefixed with role
// labels, no surrounding prose.
func (d *Drafter) Draft(ctx context.Context, in DraftInput) (string, error) {
	text, err := d.gen.GenerateText(ctx, llm.Request{
		System:      draftSystem(in),
		Prompt:      draftPrompt(in),
		Temperature: draftTemperature,
		MaxTokens:   draftMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("script: draft: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func draftSystem(in DraftInput) string {
	var sb strings.Builder
	sb.WriteString("You write podcast scripts for text-to-speech rendering.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Output ONLY dialogue lines, each prefixed with the speaker's role label and a colon.\n")
	sb.WriteString("- Never use personal names in the dialogue; speakers address each other naturally without names.\n")
	sb.WriteString("- Use TTS markup where it improves delivery: [pause], [emphasis]...[/emphasis], and emotion tags like [excited], [thoughtful].\n")
	sb.WriteString("- No headers, no metadata, no stage directions, no surrounding prose.\n")
	sb.WriteString("- Never leave placeholders of any kind.\n")
	return sb.String()
}

func draftPrompt(in DraftInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Podcast: %s\n", in.PodcastName)
	fmt.Fprintf(&sb, "Language: write the entire script in %s.\n", in.Language)
	fmt.Fprintf(&sb, "Target length: about %d minutes of speech.\n", in.DurationMinutes)

	if in.Format == episode.FormatSingleSpeaker {
		fmt.Fprintf(&sb, "Format: single speaker. The only role label is %q.\n", in.Speaker1Role)
	} else {
		fmt.Fprintf(&sb, "Format: conversation between %q and %q. Alternate naturally; no monologues over four lines.\n",
			in.Speaker1Role, in.Speaker2Role)
	}

	if a := in.Analysis; a != nil {
		fmt.Fprintf(&sb, "Content type: %s. The second speaker is a %s (%s).\n",
			a.ContentType, a.SpecificRole, a.RoleDescription)
	}
	if t := in.Topics; t != nil {
		fmt.Fprintf(&sb, "Topics, in order: %s.\n", strings.Join(t.Topics, "; "))
		fmt.Fprintf(&sb, "Structure: %s with %s transitions.\n", t.Structure, t.TransitionStyle)
	}

	switch in.Metrics.Strategy {
	case StrategyCompression:
		fmt.Fprintf(&sb, "The source is dense: condense it. Aim for roughly %d characters of dialogue; cover every retained item at least briefly.\n",
			in.Metrics.TargetChars)
	case StrategyExpansion:
		fmt.Fprintf(&sb, "The source is sparse: expand it. Aim for roughly %d characters of dialogue by adding context and discussion strictly grounded in the source; invent no facts.\n",
			in.Metrics.TargetChars)
	default:
		fmt.Fprintf(&sb, "Aim for roughly %d characters of dialogue, tracking the source closely.\n",
			in.Metrics.TargetChars)
	}

	if in.AdditionalInstructions != "" {
		fmt.Fprintf(&sb, "Additional instructions: %s\n", in.AdditionalInstructions)
	}

	sb.WriteString("\nSource content, in chronological order:\n")
	for i, m := range in.Messages {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, m.Text)
	}
	return sb.String()
}
