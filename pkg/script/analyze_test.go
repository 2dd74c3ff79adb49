package script_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/voxloom/voxloom/pkg/llm"
	"github.com/voxloom/voxloom/pkg/script"
)

// cannedGenerator returns fixed responses and records the last request.
type cannedGenerator struct {
	text    string
	jsonRaw string
	err     error

	lastReq llm.Request
}

func (g *cannedGenerator) GenerateText(_ context.Context, req llm.Request) (string, error) {
	g.lastReq = req
	return g.text, g.err
}

func (g *cannedGenerator) GenerateJSON(_ context.Context, req llm.Request, _ *jsonschema.Schema, out any) error {
	g.lastReq = req
	if g.err != nil {
		return g.err
	}
	return json.Unmarshal([]byte(g.jsonRaw), out)
}

var _ llm.Generator = (*cannedGenerator)(nil)

func TestClassify(t *testing.T) {
	gen := &cannedGenerator{jsonRaw: `{
		"content_type": "finance",
		"specific_role": "Market Analyst",
		"role_description": "tracks equity markets",
		"confidence": 0.87
	}`}
	a := script.NewAnalyzer(gen)

	res, err := a.Classify(context.Background(), []script.Message{{Text: "stocks rallied"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != "finance" || res.SpecificRole != "Market Analyst" {
		t.Fatalf("analysis = %+v", res)
	}
	if res.RoleGender != "male" {
		t.Errorf("role gender = %q, want male for finance", res.RoleGender)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	gen := &cannedGenerator{jsonRaw: `{"content_type":"news","specific_role":"Reporter","confidence":1.4}`}
	res, err := script.NewAnalyzer(gen).Classify(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", res.Confidence)
	}
}

func TestClassifyDefaultsEmptyType(t *testing.T) {
	gen := &cannedGenerator{jsonRaw: `{"content_type":"","specific_role":"Host","confidence":0.5}`}
	res, err := script.NewAnalyzer(gen).Classify(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != "general" || res.RoleGender != "male" {
		t.Fatalf("analysis = %+v", res)
	}
}

func TestClassifyError(t *testing.T) {
	gen := &cannedGenerator{err: errors.New("backend down")}
	if _, err := script.NewAnalyzer(gen).Classify(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestTopics(t *testing.T) {
	gen := &cannedGenerator{jsonRaw: `{
		"topics": ["rate decision", "bank earnings"],
		"conversation_structure": "thematic_clusters",
		"transition_style": "explicit"
	}`}
	res, err := script.NewAnalyzer(gen).Topics(context.Background(), []script.Message{{Text: "rates and earnings"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Topics) != 2 || res.Structure != "thematic_clusters" || res.TransitionStyle != "explicit" {
		t.Fatalf("topics = %+v", res)
	}
}

func TestTopicsDefaults(t *testing.T) {
	gen := &cannedGenerator{jsonRaw: `{"topics":["one"],"conversation_structure":"","transition_style":""}`}
	res, err := script.NewAnalyzer(gen).Topics(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Structure != "linear" || res.TransitionStyle != "seamless" {
		t.Fatalf("defaults not applied: %+v", res)
	}
}

func TestRoleGenderFor(t *testing.T) {
	if g := script.RoleGenderFor("health"); g != "female" {
		t.Errorf("health = %q", g)
	}
	if g := script.RoleGenderFor("unknown-type"); g != "male" {
		t.Errorf("fallback = %q", g)
	}
}
