package script

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// placeholders are fragments a finished script must never contain. The
// drafting model occasionally leaves template slots; any hit rejects the
// script outright.
var placeholders = []string{
	"[name]", "[שם]", "{name}", "{שם}",
	"___", "TBD", "TODO", "XXX",
	"[insert", "[הכנס",
}

// QualityPassAt is the advisory quality gate. Scores below it attach
// recommendations to the processing log but do not block publication; the
// placeholder scan is the only hard gate.
const QualityPassAt = 0.65

// Quality score weights.
const (
	weightRatio         = 0.4
	weightCoverage      = 0.4
	weightHallucination = 0.2
)

// Report is the outcome of script validation.
type Report struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`

	RatioMatch        float64 `json:"ratio_match"`
	TopicCoverage     float64 `json:"topic_coverage"`
	HallucinationRisk float64 `json:"hallucination_risk"`

	Recommendations []string `json:"recommendations,omitempty"`
}

// CheckPlaceholders returns an error if the script contains any template
// placeholder. This is the hard gate.
func CheckPlaceholders(script string) error {
	lower := strings.ToLower(script)
	for _, p := range placeholders {
		if strings.Contains(lower, strings.ToLower(p)) {
			return fmt.Errorf("script: contains placeholder %q", p)
		}
	}
	return nil
}

// Evaluate scores a generated script against the content it came from.
//
//	score = 0.4*ratio_match + 0.4*topic_coverage + 0.2*(1-hallucination_risk)
func Evaluate(scriptText string, messages []Message, m Metrics) Report {
	r := Report{
		RatioMatch:        ratioMatch(len([]rune(scriptText)), m.TargetChars),
		TopicCoverage:     topicCoverage(scriptText, messages),
		HallucinationRisk: hallucinationRisk(scriptText, messages),
	}
	r.Score = weightRatio*r.RatioMatch +
		weightCoverage*r.TopicCoverage +
		weightHallucination*(1-r.HallucinationRisk)
	r.Passed = r.Score >= QualityPassAt

	if r.RatioMatch < 0.6 {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("script length %d chars is far from the %d target", len([]rune(scriptText)), m.TargetChars))
	}
	if r.TopicCoverage < 0.75 {
		r.Recommendations = append(r.Recommendations, "script misses source topics; consider weaker prioritization")
	}
	if r.HallucinationRisk > 0.35 {
		r.Recommendations = append(r.Recommendations, "script introduces many tokens absent from the source")
	}
	return r
}

// ratioMatch is 1 when actual hits the target, degrading linearly to 0 at
// a full target's distance.
func ratioMatch(actual, target int) float64 {
	if target <= 0 {
		return 1
	}
	dev := math.Abs(float64(actual-target)) / float64(target)
	return 1 - math.Min(dev, 1)
}

// markupRe strips TTS markup tokens before token analysis.
var markupRe = regexp.MustCompile(`\[/?[a-z]+\]`)

// stopWords excluded from token comparisons. English plus the role labels'
// usual furniture; Hebrew stop words are short enough to fall under the
// length floor.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "are": true, "was": true, "has": true, "have": true,
	"not": true, "but": true, "you": true, "your": true, "our": true,
	"they": true, "them": true, "from": true, "will": true, "can": true,
	"about": true, "into": true, "over": true, "what": true, "when": true,
	"how": true, "why": true, "who": true, "its": true, "were": true,
	"been": true, "also": true, "just": true, "like": true, "really": true,
	"well": true, "yes": true, "right": true, "here": true, "there": true,
	"more": true, "very": true, "some": true, "than": true, "then": true,
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenSet extracts the significant lowercase tokens of a text.
func tokenSet(text string) map[string]bool {
	text = markupRe.ReplaceAllString(strings.ToLower(text), " ")
	out := make(map[string]bool)
	for _, tok := range tokenRe.FindAllString(text, -1) {
		if len([]rune(tok)) < 3 || stopWords[tok] {
			continue
		}
		out[tok] = true
	}
	return out
}

// topicCoverage is |content ∩ script| / |content| over significant tokens.
func topicCoverage(scriptText string, messages []Message) float64 {
	content := tokenSet(joinTexts(messages))
	if len(content) == 0 {
		return 1
	}
	scriptToks := tokenSet(scriptText)
	hits := 0
	for tok := range content {
		if scriptToks[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(content))
}

// hallucinationRisk is the fraction of script tokens absent from content.
func hallucinationRisk(scriptText string, messages []Message) float64 {
	scriptToks := tokenSet(scriptText)
	if len(scriptToks) == 0 {
		return 0
	}
	content := tokenSet(joinTexts(messages))
	missing := 0
	for tok := range scriptToks {
		if !content[tok] {
			missing++
		}
	}
	return float64(missing) / float64(len(scriptToks))
}

func joinTexts(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
