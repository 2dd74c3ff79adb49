// Package llm provides the text-generation layer used by content analysis
// and script drafting. It exposes one small Generator interface with Gemini
// and OpenAI-compatible backends; structured output goes through a JSON
// schema and a repair pass, since models occasionally emit almost-JSON.
package llm

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Request is one generation call.
type Request struct {
	// System is the system instruction, may be empty.
	System string
	// Prompt is the user content.
	Prompt string

	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Generator produces text or schema-constrained JSON from a prompt.
type Generator interface {
	// GenerateText returns the model's text response.
	GenerateText(ctx context.Context, req Request) (string, error)

	// GenerateJSON constrains the response to schema and decodes it
	// into out.
	GenerateJSON(ctx context.Context, req Request, schema *jsonschema.Schema, out any) error
}

// decodeJSON unmarshals model output into v, repairing almost-JSON first
// if the strict parse fails with a syntax error.
func decodeJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
