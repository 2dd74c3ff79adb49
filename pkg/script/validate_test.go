package script_test

import (
	"strings"
	"testing"

	"github.com/voxloom/voxloom/pkg/script"
)

func TestCheckPlaceholders(t *testing.T) {
	bad := []string{
		"Host: welcome [name], good to have you",
		"Host: שלום [שם], מה שלומך",
		"Host: we will cover TBD later",
		"Host: the figure is ___",
		"Host: [insert statistic here]",
	}
	for _, s := range bad {
		if err := script.CheckPlaceholders(s); err == nil {
			t.Errorf("no error for %q", s)
		}
	}
	good := "Host: welcome to the show.\nExpert: glad to be here."
	if err := script.CheckPlaceholders(good); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEvaluateFaithfulScript(t *testing.T) {
	messages := []script.Message{
		{Text: "Quantum computing breakthrough announced today with 1000 qubits"},
		{Text: "Researchers demonstrated error correction working at scale"},
	}
	m := script.ComputeMetrics(messages)
	scriptText := "Host: big quantum computing breakthrough announced today.\n" +
		"Expert: yes, 1000 qubits, and the researchers demonstrated error correction working at scale."

	r := script.Evaluate(scriptText, messages, m)
	if r.TopicCoverage < 0.9 {
		t.Errorf("coverage = %v, want near 1", r.TopicCoverage)
	}
	if r.HallucinationRisk > 0.2 {
		t.Errorf("hallucination = %v, want low", r.HallucinationRisk)
	}
	if !r.Passed {
		t.Errorf("faithful script failed: %+v", r)
	}
}

func TestEvaluateOffTopicScript(t *testing.T) {
	messages := []script.Message{
		{Text: "Quarterly earnings exceeded expectations across banking sector"},
		{Text: "Interest rates held steady by central bank committee"},
	}
	m := script.ComputeMetrics(messages)
	scriptText := "Host: let's discuss gardening techniques.\n" +
		"Expert: tomatoes prefer sandy soil, frequent watering, and morning sunlight exposure throughout summer."

	r := script.Evaluate(scriptText, messages, m)
	if r.TopicCoverage > 0.2 {
		t.Errorf("coverage = %v, want near 0", r.TopicCoverage)
	}
	if r.HallucinationRisk < 0.7 {
		t.Errorf("hallucination = %v, want high", r.HallucinationRisk)
	}
	if r.Passed {
		t.Errorf("off-topic script passed: %+v", r)
	}
	if len(r.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
}

func TestEvaluateIgnoresMarkup(t *testing.T) {
	messages := []script.Message{{Text: "satellite launch succeeded"}}
	m := script.ComputeMetrics(messages)
	withMarkup := "Host: [excited] the satellite launch [emphasis]succeeded[/emphasis]! [pause]"

	r := script.Evaluate(withMarkup, messages, m)
	if r.TopicCoverage < 0.9 {
		t.Errorf("markup hurt coverage: %v", r.TopicCoverage)
	}
}

func TestEvaluateRatioMatch(t *testing.T) {
	messages := []script.Message{{Text: strings.Repeat("word ", 200)}}
	m := script.ComputeMetrics(messages)

	exact := script.Evaluate(strings.Repeat("word ", m.TargetChars/5), messages, m)
	short := script.Evaluate("word", messages, m)
	if exact.RatioMatch < 0.95 {
		t.Errorf("on-target ratio = %v", exact.RatioMatch)
	}
	if short.RatioMatch > 0.05 {
		t.Errorf("far-off ratio = %v", short.RatioMatch)
	}
}
