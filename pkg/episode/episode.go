// Package episode holds the central episode record, its processing-stage
// state machine, the Postgres-backed store, and the stage tracker that
// writes the durable processing log.
//
// An episode advances strictly forward through the stage graph; the only
// permitted backward transition is a deferral from audio synthesis back to
// script_ready, driven by queue redelivery.
package episode

import (
	"time"
)

// Status is the coarse lifecycle state of an episode.
type Status string

const (
	StatusPending          Status = "pending"
	StatusContentCollected Status = "content_collected"
	StatusScriptReady      Status = "script_ready"
	StatusProcessing       Status = "processing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Stage is the fine-grained processing stage tag.
type Stage string

const (
	StageCreated            Stage = "created"
	StageTelegramQueued     Stage = "telegram_queued"
	StageTelegramProcessing Stage = "telegram_processing"
	StageTelegramCompleted  Stage = "telegram_completed"
	StageTelegramFailed     Stage = "telegram_failed"
	StageScriptQueued       Stage = "script_queued"
	StageScriptProcessing   Stage = "script_processing"
	StageScriptCompleted    Stage = "script_completed"
	StageScriptFailed       Stage = "script_failed"
	StageAudioQueued        Stage = "audio_queued"
	StageAudioProcessing    Stage = "audio_processing"
	StageAudioCompleted     Stage = "audio_completed"
	StageAudioFailed        Stage = "audio_failed"
	StagePublished          Stage = "published"
	StageFailed             Stage = "failed"
)

// stageRank orders the forward path through the graph. Failure variants
// share the rank of the processing stage they interrupt, so an episode
// stuck at telegram_failed still accepts a replayed collect message.
var stageRank = map[Stage]int{
	StageCreated:            0,
	StageTelegramQueued:     1,
	StageTelegramProcessing: 2,
	StageTelegramFailed:     2,
	StageTelegramCompleted:  3,
	StageScriptQueued:       4,
	StageScriptProcessing:   5,
	StageScriptFailed:       5,
	StageScriptCompleted:    6,
	StageAudioQueued:        7,
	StageAudioProcessing:    8,
	StageAudioFailed:        8,
	StageAudioCompleted:     9,
	StagePublished:          10,
	StageFailed:             8,
}

// Rank returns the stage's position on the forward path. Unknown stages
// rank as created so replayed messages for them are processed, not dropped.
func (s Stage) Rank() int {
	if r, ok := stageRank[s]; ok {
		return r
	}
	return 0
}

// After reports whether s is strictly past other on the forward path.
func (s Stage) After(other Stage) bool {
	return s.Rank() > other.Rank()
}

// FailureVariant maps a processing stage to its failed counterpart.
func (s Stage) FailureVariant() Stage {
	switch s {
	case StageTelegramQueued, StageTelegramProcessing, StageTelegramCompleted:
		return StageTelegramFailed
	case StageScriptQueued, StageScriptProcessing, StageScriptCompleted:
		return StageScriptFailed
	case StageAudioQueued, StageAudioProcessing, StageAudioCompleted:
		return StageAudioFailed
	}
	return StageFailed
}

// Format distinguishes one-voice from two-voice episodes.
type Format string

const (
	FormatSingleSpeaker Format = "single-speaker"
	FormatMultiSpeaker  Format = "multi-speaker"
)

// Metadata is the structured blob carried on the episode record. Voices are
// assigned once by the preprocessor and immutable afterwards.
type Metadata struct {
	Speaker1Voice  string `json:"speaker1_voice,omitempty"`
	Speaker2Voice  string `json:"speaker2_voice,omitempty"`
	Speaker1Role   string `json:"speaker1_role,omitempty"`
	Speaker2Role   string `json:"speaker2_role,omitempty"`
	Speaker1Gender string `json:"speaker1_gender,omitempty"`
	Speaker2Gender string `json:"speaker2_gender,omitempty"`
	LanguageCode   string `json:"language_code,omitempty"`
	PodcastFormat  Format `json:"podcast_format,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Analysis is the content classification result attached by the preprocessor.
type Analysis struct {
	ContentType     string   `json:"content_type"`
	SpecificRole    string   `json:"specific_role"`
	RoleDescription string   `json:"role_description,omitempty"`
	RoleGender      string   `json:"role_gender,omitempty"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	Structure       string   `json:"conversation_structure,omitempty"`
	TransitionStyle string   `json:"transition_style,omitempty"`
}

// StageEvent is one entry of the episode's stage history.
type StageEvent struct {
	Stage      Stage     `json:"stage"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// Episode is the unit of work moving through the pipeline.
type Episode struct {
	ID       string `json:"id"`
	PodcastID string `json:"podcast_id"`
	ConfigID string `json:"podcast_config_id"`

	Status       Status `json:"status"`
	CurrentStage Stage  `json:"current_stage"`

	ContentURL string `json:"content_url,omitempty"`
	ScriptURL  string `json:"script_url,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`

	// Duration is the rendered audio length in whole seconds.
	Duration int `json:"duration,omitempty"`

	Metadata Metadata  `json:"metadata"`
	Analysis *Analysis `json:"analysis,omitempty"`

	StageHistory []StageEvent `json:"stage_history,omitempty"`

	LastStageUpdate     time.Time `json:"last_stage_update"`
	ProcessingStartedAt time.Time `json:"processing_started_at,omitzero"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Config is one podcast's production parameters.
type Config struct {
	ID        string `json:"id"`
	PodcastID string `json:"podcast_id"`

	PodcastName string `json:"podcast_name,omitempty"`

	Speaker1Role   string `json:"speaker1_role"`
	Speaker1Gender string `json:"speaker1_gender"`
	// Speaker 2 fields are empty for single-speaker podcasts.
	Speaker2Role   string `json:"speaker2_role,omitempty"`
	Speaker2Gender string `json:"speaker2_gender,omitempty"`

	Language        string `json:"language"`
	DurationMinutes int    `json:"duration_minutes"`

	TelegramChannel string     `json:"telegram_channel"`
	TelegramHours   int        `json:"telegram_hours,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`

	FilteredDomains        []string `json:"filtered_domains,omitempty"`
	MediaTypes             []string `json:"media_types,omitempty"`
	AdditionalInstructions string   `json:"additional_instructions,omitempty"`

	PodcastFormat Format `json:"podcast_format"`
}

// IsMultiSpeaker reports whether the config produces a two-voice episode.
func (c *Config) IsMultiSpeaker() bool {
	return c.PodcastFormat != FormatSingleSpeaker
}

// LogStatus values for processing-log rows.
const (
	LogStarted   = "started"
	LogCompleted = "completed"
	LogFailed    = "failed"
)

// ProcessingLog is one stage-attempt row.
type ProcessingLog struct {
	ID          int64          `json:"id,omitempty"`
	EpisodeID   string         `json:"episode_id"`
	Stage       Stage          `json:"stage"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	ErrorDetail map[string]any `json:"error_details,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
