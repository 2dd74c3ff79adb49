// Package config loads worker configuration from an optional YAML file
// with environment variable overrides. Environment wins over file so
// deployments can keep a checked-in base config and inject credentials.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Default tuning values.
const (
	DefaultTTSRequestsPerMinute = 9
	DefaultMaxWorkers           = 2
	DefaultMaxRetries           = 3
)

// Config is the full worker configuration.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Telegram   Telegram   `yaml:"telegram"`
	Database   Database   `yaml:"database"`
	Gemini     Gemini     `yaml:"gemini"`
	OpenAI     OpenAI     `yaml:"openai"`
	Queues     Queues     `yaml:"queues"`
	TTS        TTS        `yaml:"tts"`
	Callback   Callback   `yaml:"callback"`
	Diacritics Diacritics `yaml:"diacritics"`
}

// Storage selects the artifact backend. Bucket set means S3; otherwise
// LocalDir is used.
type Storage struct {
	Bucket   string `yaml:"bucket,omitempty"`
	LocalDir string `yaml:"local_dir,omitempty"`
}

// Telegram holds channel gateway credentials.
type Telegram struct {
	APIID      string `yaml:"api_id,omitempty"`
	APIHash    string `yaml:"api_hash,omitempty"`
	Session    string `yaml:"session,omitempty"`
	GatewayURL string `yaml:"gateway_url,omitempty"`
}

// Database holds the episode store connection.
type Database struct {
	URL        string `yaml:"url,omitempty"`
	ServiceKey string `yaml:"service_key,omitempty"`
}

// Gemini holds model credentials and names.
type Gemini struct {
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model,omitempty"`
	TTSModel string `yaml:"tts_model,omitempty"`
}

// OpenAI switches script generation to an OpenAI-compatible chat API
// when an API key is set. Speech synthesis always uses Gemini.
type OpenAI struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// Queues holds the per-stage queue URLs. LocalDir switches all three to
// the badger-backed development queue.
type Queues struct {
	Collect    string `yaml:"collect,omitempty"`
	Preprocess string `yaml:"preprocess,omitempty"`
	Synthesize string `yaml:"synthesize,omitempty"`
	LocalDir   string `yaml:"local_dir,omitempty"`
}

// TTS tunes the synthesis fan-out.
type TTS struct {
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`
	MaxWorkers        int `yaml:"max_workers,omitempty"`
	MaxRetries        int `yaml:"max_retries,omitempty"`
}

// Callback configures the completion webhook.
type Callback struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Secret  string `yaml:"secret,omitempty"`
}

// Diacritics points at the Hebrew diacritization service.
type Diacritics struct {
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), applies environment overrides, and fills
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Storage.Bucket, "S3_BUCKET_NAME")
	setStr(&c.Storage.LocalDir, "STORAGE_LOCAL_DIR")
	setStr(&c.Telegram.APIID, "TELEGRAM_API_ID")
	setStr(&c.Telegram.APIHash, "TELEGRAM_API_HASH")
	setStr(&c.Telegram.Session, "TELEGRAM_SESSION")
	setStr(&c.Telegram.GatewayURL, "TELEGRAM_GATEWAY_URL")
	setStr(&c.Database.URL, "SUPABASE_URL")
	setStr(&c.Database.ServiceKey, "SUPABASE_SERVICE_KEY")
	setStr(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setStr(&c.Gemini.Model, "GEMINI_MODEL")
	setStr(&c.Gemini.TTSModel, "GEMINI_TTS_MODEL")
	setStr(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setStr(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setStr(&c.OpenAI.Model, "OPENAI_MODEL")
	setStr(&c.Queues.Collect, "CONTENT_COLLECTION_QUEUE_URL")
	setStr(&c.Queues.Preprocess, "SCRIPT_GENERATION_QUEUE_URL")
	setStr(&c.Queues.Synthesize, "AUDIO_GENERATION_QUEUE_URL")
	setStr(&c.Queues.LocalDir, "QUEUE_LOCAL_DIR")
	setStr(&c.Callback.BaseURL, "API_BASE_URL")
	setStr(&c.Callback.Secret, "LAMBDA_CALLBACK_SECRET")
	setStr(&c.Diacritics.Endpoint, "DIACRITICS_ENDPOINT")

	if v := os.Getenv("TTS_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("config: invalid TTS_REQUESTS_PER_MINUTE %q", v)
		}
		c.TTS.RequestsPerMinute = n
	}
	if v := os.Getenv("TTS_MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("config: invalid TTS_MAX_WORKERS %q", v)
		}
		c.TTS.MaxWorkers = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.TTS.RequestsPerMinute == 0 {
		c.TTS.RequestsPerMinute = DefaultTTSRequestsPerMinute
	}
	if c.TTS.MaxWorkers == 0 {
		c.TTS.MaxWorkers = DefaultMaxWorkers
	}
	if c.TTS.MaxRetries == 0 {
		c.TTS.MaxRetries = DefaultMaxRetries
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.TTSModel == "" {
		c.Gemini.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
}

// ValidateFor checks the settings one worker role needs. Role is the
// command name: collector, preprocessor or synthesizer.
func (c *Config) ValidateFor(role string) error {
	var missing []string
	need := func(v, name string) {
		if v == "" {
			missing = append(missing, name)
		}
	}

	if c.Storage.Bucket == "" && c.Storage.LocalDir == "" {
		missing = append(missing, "storage.bucket or storage.local_dir")
	}
	need(c.Database.URL, "database.url")

	switch role {
	case "collector":
		need(c.Telegram.GatewayURL, "telegram.gateway_url")
		need(c.Telegram.APIID, "telegram.api_id")
		need(c.Telegram.APIHash, "telegram.api_hash")
	case "preprocessor":
		if c.Gemini.APIKey == "" && c.OpenAI.APIKey == "" {
			missing = append(missing, "gemini.api_key or openai.api_key")
		}
	case "synthesizer":
		need(c.Gemini.APIKey, "gemini.api_key")
	default:
		return fmt.Errorf("config: unknown role %q", role)
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing settings for %s: %v", role, missing)
	}
	return nil
}
