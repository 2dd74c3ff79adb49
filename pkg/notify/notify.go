// Package notify sends the out-of-band completion webhook to the
// application backend. Delivery is best effort: a failed webhook is
// logged by the caller and never affects episode state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// secretHeader authenticates the callback with the backend.
const secretHeader = "X-Callback-Secret"

// Completion is the webhook payload for a finished episode.
type Completion struct {
	EpisodeID string `json:"episode_id"`
	PodcastID string `json:"podcast_id"`
	Status    string `json:"status"`
	AudioURL  string `json:"audio_url,omitempty"`
	Duration  int    `json:"duration_seconds,omitempty"`
}

// Notifier posts completion callbacks.
type Notifier interface {
	EpisodeCompleted(ctx context.Context, c Completion) error
}

// Webhook implements Notifier over HTTP.
type Webhook struct {
	baseURL string
	secret  string
	httpc   *http.Client
}

// NewWebhook creates a webhook notifier. httpc may be nil, in which case
// a client with a 15s timeout is used.
func NewWebhook(baseURL, secret string, httpc *http.Client) *Webhook {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Webhook{baseURL: baseURL, secret: secret, httpc: httpc}
}

// EpisodeCompleted posts the completion payload to the backend's episode
// callback endpoint.
func (w *Webhook) EpisodeCompleted(ctx context.Context, c Completion) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.baseURL+"/internal/episodes/"+c.EpisodeID+"/completed", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, w.secret)

	resp, err := w.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("notify: episode %s: %w", c.EpisodeID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: episode %s: backend returned %s", c.EpisodeID, resp.Status)
	}
	return nil
}

var _ Notifier = (*Webhook)(nil)
