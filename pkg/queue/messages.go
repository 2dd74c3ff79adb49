package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/script"
)

// DateRange bounds which channel messages the collector harvests.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CollectRequest asks the collector to harvest a channel for an episode.
type CollectRequest struct {
	PodcastConfigID string     `json:"podcast_config_id"`
	PodcastID       string     `json:"podcast_id"`
	EpisodeID       string     `json:"episode_id"`
	TelegramChannel string     `json:"telegram_channel,omitempty"`
	DateRange       *DateRange `json:"date_range,omitempty"`
}

// PreprocessRequest asks the preprocessor to turn collected content into
// a script. S3Path points at the collector's content.json artifact.
type PreprocessRequest struct {
	PodcastConfigID string `json:"podcast_config_id"`
	PodcastID       string `json:"podcast_id"`
	EpisodeID       string `json:"episode_id"`
	S3Path          string `json:"s3_path"`
}

// DynamicConfig is the per-episode parameter bundle the preprocessor
// derives and the synthesizer consumes. It travels inside the synthesize
// message so the synthesizer does not re-derive voices.
type DynamicConfig struct {
	LanguageCode  string `json:"language_code"`
	Language      string `json:"language"` // full name, e.g. "Hebrew"
	PodcastFormat string `json:"podcast_format"`

	Speaker1Role   string `json:"speaker1_role"`
	Speaker1Gender string `json:"speaker1_gender"`
	Speaker1Voice  string `json:"speaker1_voice"`

	Speaker2Role   string `json:"speaker2_role,omitempty"`
	Speaker2Gender string `json:"speaker2_gender,omitempty"`
	Speaker2Voice  string `json:"speaker2_voice,omitempty"`

	ContentAnalysis *episode.Analysis     `json:"content_analysis,omitempty"`
	TopicAnalysis   *script.TopicAnalysis `json:"topic_analysis,omitempty"`
}

// SynthesizeRequest asks the synthesizer to render a script to audio.
type SynthesizeRequest struct {
	PodcastConfigID string        `json:"podcast_config_id"`
	PodcastID       string        `json:"podcast_id"`
	EpisodeID       string        `json:"episode_id"`
	ScriptURL       string        `json:"script_url"`
	DynamicConfig   DynamicConfig `json:"dynamic_config"`
}

// Encode marshals a request payload for Send. All queue bodies are JSON.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("queue: encode payload: %w", err)
	}
	return b, nil
}

// Decode unmarshals a received body into a request payload.
func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("queue: decode payload: %w", err)
	}
	return nil
}
