package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

var _ Generator = (*OpenAI)(nil)

// OpenAI implements Generator over any OpenAI-compatible chat API.
type OpenAI struct {
	Client *openai.Client
	Model  string
}

func (g *OpenAI) GenerateText(ctx context.Context, req Request) (string, error) {
	params := g.params(req)
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: openai generate: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAI) GenerateJSON(ctx context.Context, req Request, schema *jsonschema.Schema, out any) error {
	params := g.params(req)
	schemaMap, err := schemaToMap(schema)
	if err != nil {
		return err
	}
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "response",
				Schema: schemaMap,
				Strict: param.NewOpt(true),
			},
		},
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("llm: openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("llm: openai generate: no choices")
	}
	if err := decodeJSON([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("llm: decode openai json: %w", err)
	}
	return nil
}

func (g *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.Model,
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(float64(req.Temperature))
	}
	if req.TopP > 0 {
		params.TopP = param.NewOpt(float64(req.TopP))
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}

// schemaToMap converts a jsonschema-go schema to the loosely-typed map the
// OpenAI SDK expects.
func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("llm: marshal schema: %w", err)
	}
	var m map[string]any
	if err := decodeJSON(b, &m); err != nil {
		return nil, fmt.Errorf("llm: schema to map: %w", err)
	}
	return m, nil
}
