// Package script turns cleaned channel content into a conversational
// podcast script and judges the result. The LLM does the drafting; this
// package owns the sizing strategy, message prioritization, prompt
// assembly, and the post-generation quality checks.
package script

import (
	"time"
)

// Message is one cleaned content message, normalized and date-sorted by
// the preprocessor.
type Message struct {
	Text    string    `json:"text"`
	Date    time.Time `json:"date"`
	Channel string    `json:"channel,omitempty"`
}

// Strategy describes how the script length should relate to the content.
type Strategy string

const (
	// StrategyCompression condenses busy periods (many messages).
	StrategyCompression Strategy = "compression"
	// StrategyExpansion elaborates on sparse periods (few messages).
	StrategyExpansion Strategy = "expansion"
	// StrategyBalanced keeps script length near content length.
	StrategyBalanced Strategy = "balanced"
)

// Strategy thresholds and target script/content character ratios.
const (
	compressionAt = 20 // messages
	expansionAt   = 5

	ratioCompression = 0.80
	ratioExpansion   = 1.20
	ratioBalanced    = 1.00
)

// Metrics summarizes content volume and the derived sizing strategy.
type Metrics struct {
	MessageCount int     `json:"message_count"`
	TotalChars   int     `json:"total_chars"`
	AvgChars     float64 `json:"avg_chars_per_message"`

	Strategy    Strategy `json:"strategy"`
	TargetRatio float64  `json:"target_ratio"`

	// TargetChars is the script-length target derived from the ratio.
	TargetChars int `json:"target_chars"`
}

// ComputeMetrics derives the sizing strategy from clean content.
func ComputeMetrics(messages []Message) Metrics {
	m := Metrics{MessageCount: len(messages)}
	for _, msg := range messages {
		m.TotalChars += len([]rune(msg.Text))
	}
	if m.MessageCount > 0 {
		m.AvgChars = float64(m.TotalChars) / float64(m.MessageCount)
	}

	switch {
	case m.MessageCount >= compressionAt:
		m.Strategy = StrategyCompression
		m.TargetRatio = ratioCompression
	case m.MessageCount <= expansionAt:
		m.Strategy = StrategyExpansion
		m.TargetRatio = ratioExpansion
	default:
		m.Strategy = StrategyBalanced
		m.TargetRatio = ratioBalanced
	}
	m.TargetChars = int(float64(m.TotalChars) * m.TargetRatio)
	return m
}
