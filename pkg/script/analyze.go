package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/llm"
)

// ContentTypes is the closed classification vocabulary.
var ContentTypes = []string{
	"news", "technology", "finance", "politics", "sports", "health",
	"science", "entertainment", "business", "education", "lifestyle",
	"general",
}

// roleGenderDefaults maps a content type to the default gender for the
// LLM-assigned expert role, used when a config does not pin speaker 2.
var roleGenderDefaults = map[string]string{
	"news":          "female",
	"technology":    "male",
	"finance":       "male",
	"politics":      "female",
	"sports":        "male",
	"health":        "female",
	"science":       "female",
	"entertainment": "female",
	"business":      "male",
	"education":     "female",
	"lifestyle":     "female",
	"general":       "male",
}

// RoleGenderFor returns the default expert gender for a content type.
func RoleGenderFor(contentType string) string {
	if g, ok := roleGenderDefaults[contentType]; ok {
		return g
	}
	return "male"
}

// TopicAnalysis structures the episode's narrative plan.
type TopicAnalysis struct {
	Topics          []string `json:"topics"`
	Structure       string   `json:"conversation_structure"`
	TransitionStyle string   `json:"transition_style"`
}

// analysisExcerptLen caps the text sent for classification.
const analysisExcerptLen = 2000

// Analyzer classifies content and plans the topic structure via LLM calls
// with schema-constrained output.
type Analyzer struct {
	gen llm.Generator
}

// NewAnalyzer creates an Analyzer over a text generator.
func NewAnalyzer(gen llm.Generator) *Analyzer {
	return &Analyzer{gen: gen}
}

var classifySchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"content_type": {
			Type:        "string",
			Description: "dominant category of the content",
			Enum:        enumAny(ContentTypes),
		},
		"specific_role": {
			Type:        "string",
			Description: "expert title matched to the content, e.g. Cryptocurrency Analyst",
		},
		"role_description": {Type: "string"},
		"confidence":       {Type: "number", Description: "0..1"},
		"reasoning":        {Type: "string"},
	},
	Required: []string{"content_type", "specific_role", "confidence"},
}

var topicsSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"topics": {
			Type:  "array",
			Items: &jsonschema.Schema{Type: "string"},
		},
		"conversation_structure": {
			Type: "string",
			Enum: enumAny([]string{"single_topic", "linear", "thematic_clusters", "narrative_arc"}),
		},
		"transition_style": {
			Type: "string",
			Enum: enumAny([]string{"seamless", "explicit", "narrative", "contrast"}),
		},
	},
	Required: []string{"topics", "conversation_structure", "transition_style"},
}

func enumAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Classify determines content type, expert role and confidence from an
// excerpt of the clean content.
func (a *Analyzer) Classify(ctx context.Context, messages []Message) (*episode.Analysis, error) {
	excerpt := excerptOf(messages, analysisExcerptLen)

	var res episode.Analysis
	err := a.gen.GenerateJSON(ctx, llm.Request{
		System: "You classify channel content for podcast production. " +
			"Choose the single dominant content type and invent a fitting expert title for the co-host.",
		Prompt:      "Classify this content:\n\n" + excerpt,
		Temperature: 0.2,
		MaxTokens:   1024,
	}, classifySchema, &res)
	if err != nil {
		return nil, fmt.Errorf("script: classify content: %w", err)
	}
	if res.ContentType == "" {
		res.ContentType = "general"
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	} else if res.Confidence > 1 {
		res.Confidence = 1
	}
	res.RoleGender = RoleGenderFor(res.ContentType)
	return &res, nil
}

// Topics extracts the topic list and conversation structure.
func (a *Analyzer) Topics(ctx context.Context, messages []Message) (*TopicAnalysis, error) {
	excerpt := excerptOf(messages, analysisExcerptLen)

	var res TopicAnalysis
	err := a.gen.GenerateJSON(ctx, llm.Request{
		System: "You plan podcast episode structure. Extract the distinct topics " +
			"and pick the conversation structure and transition style that fit them.",
		Prompt:      "Plan the structure for this content:\n\n" + excerpt,
		Temperature: 0.3,
		MaxTokens:   1024,
	}, topicsSchema, &res)
	if err != nil {
		return nil, fmt.Errorf("script: analyze topics: %w", err)
	}
	if res.Structure == "" {
		res.Structure = "linear"
	}
	if res.TransitionStyle == "" {
		res.TransitionStyle = "seamless"
	}
	return &res, nil
}

// excerptOf joins message texts up to maxRunes.
func excerptOf(messages []Message, maxRunes int) string {
	var sb strings.Builder
	for _, m := range messages {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Text)
		if len([]rune(sb.String())) >= maxRunes {
			break
		}
	}
	runes := []rune(sb.String())
	if len(runes) > maxRunes {
		runes = runes[:maxRunes]
	}
	return string(runes)
}
