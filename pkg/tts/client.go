// Package tts renders script text into WAV audio through the Gemini
// speech API under strict rate and latency discipline. Callers must supply
// pre-selected voices; the client never picks voices itself, which is what
// keeps every chunk of an episode acoustically consistent.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/voxloom/voxloom/pkg/pipeline"
	"github.com/voxloom/voxloom/pkg/voice"
	"github.com/voxloom/voxloom/pkg/wav"
)

// DefaultCallTimeout bounds one synthesis API call. Hitting it abandons
// the wait and defers the episode; it does not cancel work the remote
// service may still be doing.
const DefaultCallTimeout = 480 * time.Second

// Sampling parameters tuned against silent-output failures.
const (
	temperature float32 = 0.8
	topP        float32 = 0.95
)

// Client is the synthesis client. Safe for concurrent use; the limiter is
// shared across all goroutines of the process.
type Client struct {
	genai   *genai.Client
	model   string
	limiter *Limiter
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLimiter supplies a shared rate limiter.
func WithLimiter(l *Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a synthesis client for the given speech model.
func NewClient(gc *genai.Client, model string, opts ...Option) *Client {
	c := &Client{
		genai:   gc,
		model:   model,
		limiter: NewLimiter(9, time.Minute),
		timeout: DefaultCallTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result is one rendered span of audio.
type Result struct {
	// WAV is a complete file in the canonical 24 kHz mono s16le format.
	WAV []byte
	// Duration is the audio length in seconds.
	Duration float64
}

// MultiRequest is a two-speaker synthesis request. Both voices must be
// pre-selected.
type MultiRequest struct {
	Script      string
	Language    string
	Role1       string
	Role2       string
	Gender1     string
	Gender2     string
	Voice1      string
	Voice2      string
	ContentType string
}

// SingleRequest is a one-speaker synthesis request.
type SingleRequest struct {
	Script      string
	Language    string
	Role        string
	Gender      string
	Voice       string
	ContentType string
}

// SynthesizeMulti renders a two-speaker script span.
func (c *Client) SynthesizeMulti(ctx context.Context, req MultiRequest) (*Result, error) {
	if req.Voice1 == "" || req.Voice2 == "" {
		return nil, pipeline.Fatal(nil,
			"multi-speaker synthesis called without pre-selected voices (voice1=%q voice2=%q)",
			req.Voice1, req.Voice2)
	}
	cfg := c.speechConfig(&genai.SpeechConfig{
		MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{
			SpeakerVoiceConfigs: []*genai.SpeakerVoiceConfig{
				{Speaker: req.Role1, VoiceConfig: prebuilt(req.Voice1)},
				{Speaker: req.Role2, VoiceConfig: prebuilt(req.Voice2)},
			},
		},
	})
	prompt := buildPrompt(req.Language, req.ContentType, req.Script)
	return c.call(ctx, prompt, cfg)
}

// SynthesizeSingle renders a one-speaker script span.
func (c *Client) SynthesizeSingle(ctx context.Context, req SingleRequest) (*Result, error) {
	if req.Voice == "" {
		return nil, pipeline.Fatal(nil, "single-speaker synthesis called without a pre-selected voice")
	}
	cfg := c.speechConfig(&genai.SpeechConfig{
		VoiceConfig: prebuilt(req.Voice),
	})
	prompt := buildPrompt(req.Language, req.ContentType, req.Script)
	return c.call(ctx, prompt, cfg)
}

func prebuilt(name string) *genai.VoiceConfig {
	return &genai.VoiceConfig{
		PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
	}
}

func (c *Client) speechConfig(sc *genai.SpeechConfig) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig:       sc,
		Temperature:        genai.Ptr(temperature),
		TopP:               genai.Ptr(topP),
	}
}

// buildPrompt combines the delivery-style instruction derived from
// (language, content type) with the script text. Hebrew gets an explicit
// delivery preamble; without it the model tends to anglicize stress.
func buildPrompt(language, contentType, script string) string {
	style := voice.StyleFor(language, contentType)
	prompt := fmt.Sprintf("%s Pace: %s. Tone: %s. Volume: %s. Language: %s.\n",
		style.Instruction, style.Pace, style.Tone, style.Volume, style.LanguageCode)
	if language == "he" {
		prompt += "Read the following in fluent Israeli Hebrew. Pronounce all niqqud as written.\n"
	}
	return prompt + "\n" + script
}

var rateRe = regexp.MustCompile(`rate=(\d+)`)

// call acquires a rate token, performs one synthesis API call under the
// per-call timeout, and normalizes the returned PCM into a canonical WAV.
func (c *Client) call(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*Result, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("tts: acquire rate token: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}
	resp, err := c.genai.Models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, pipeline.Fatal(nil, "tts response carried no candidates")
	}

	var pcm []byte
	rate := wav.SampleRate
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil {
			continue
		}
		pcm = append(pcm, p.InlineData.Data...)
		if m := rateRe.FindStringSubmatch(p.InlineData.MIMEType); m != nil {
			if r, err := strconv.Atoi(m[1]); err == nil && r > 0 {
				rate = r
			}
		}
	}
	if len(pcm) == 0 {
		return nil, pipeline.Fatal(nil, "tts response carried no audio data")
	}
	if rate != wav.SampleRate {
		slog.Warn("tts returned non-canonical sample rate, resampling", "rate", rate)
		pcm, err = wav.ResamplePCM(pcm, rate, wav.SampleRate)
		if err != nil {
			return nil, pipeline.Fatal(err, "resample tts output")
		}
	}

	file := wav.FromPCM(pcm, wav.SampleRate)
	dur, err := wav.Duration(file)
	if err != nil {
		return nil, pipeline.Fatal(err, "compute tts duration")
	}
	return &Result{WAV: file, Duration: dur}, nil
}
