package script

import (
	"sort"
	"strings"
	"unicode"
)

// Keyword tiers for message scoring. Matching is case-insensitive
// substring; the lists mix English and Hebrew because source channels do.
var (
	criticalKeywords = []string{
		"breaking", "urgent", "announcement", "launch", "release",
		"דחוף", "הודעה", "השקה",
	}
	highKeywords = []string{
		"update", "new", "important", "major", "official",
		"עדכון", "חדש", "חשוב", "רשמי",
	}
	mediumKeywords = []string{
		"report", "analysis", "interview", "review", "study",
		"דוח", "ניתוח", "ראיון", "סקירה",
	}
	lowKeywords = []string{
		"reminder", "recap", "summary",
		"תזכורת", "סיכום",
	}
)

// Tier weights plus structural bonuses.
const (
	weightCritical = 10
	weightHigh     = 6
	weightMedium   = 3
	weightLow      = 1

	bonusLong   = 2 // length over longMessageAt runes
	bonusDigits = 2 // concrete numbers usually mean substance
	bonusQuotes = 1

	longMessageAt = 280

	// retainFraction keeps the top share of messages by score.
	retainFraction = 0.70
)

// scoreMessage rates one message's information value.
func scoreMessage(m Message) int {
	lower := strings.ToLower(m.Text)
	score := 0
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			score += weightCritical
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			score += weightHigh
		}
	}
	for _, kw := range mediumKeywords {
		if strings.Contains(lower, kw) {
			score += weightMedium
		}
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			score += weightLow
		}
	}
	if len([]rune(m.Text)) > longMessageAt {
		score += bonusLong
	}
	if strings.ContainsFunc(m.Text, unicode.IsDigit) {
		score += bonusDigits
	}
	if strings.ContainsAny(m.Text, `"״”“`) {
		score += bonusQuotes
	}
	return score
}

// Prioritize keeps the top 70% of messages by score, then restores
// chronological order so the script follows the channel's narrative.
// Applied only under the compression strategy.
func Prioritize(messages []Message) []Message {
	if len(messages) <= 1 {
		return messages
	}

	type scored struct {
		msg   Message
		score int
		pos   int
	}
	all := make([]scored, len(messages))
	for i, m := range messages {
		all[i] = scored{msg: m, score: scoreMessage(m), pos: i}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	keep := int(float64(len(all)) * retainFraction)
	if keep < 1 {
		keep = 1
	}
	kept := all[:keep]

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].pos < kept[j].pos })

	out := make([]Message, len(kept))
	for i, s := range kept {
		out[i] = s.msg
	}
	return out
}
