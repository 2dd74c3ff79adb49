// Package diacritics adds Hebrew vowel markings (niqqud) to script text
// before synthesis, which markedly improves TTS pronunciation. The work
// is done by an external service; this package chunks the text to the
// service's size limit and reassembles the result.
package diacritics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxCharsPerCall is the service's per-request size limit.
const MaxCharsPerCall = 10000

// Client diacritizes Hebrew text.
type Client interface {
	Diacritize(ctx context.Context, text string) (string, error)
}

// HTTPClient implements Client against the diacritization service's
// plain-text endpoint.
type HTTPClient struct {
	endpoint string
	httpc    *http.Client
}

// NewHTTP creates a service client. httpc may be nil, in which case a
// client with a 120s timeout is used.
func NewHTTP(endpoint string, httpc *http.Client) *HTTPClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPClient{endpoint: endpoint, httpc: httpc}
}

// Diacritize sends the whole text, splitting into calls of at most
// MaxCharsPerCall characters at line boundaries.
func (c *HTTPClient) Diacritize(ctx context.Context, text string) (string, error) {
	parts := splitForCalls(text, MaxCharsPerCall)
	var sb strings.Builder
	for i, part := range parts {
		out, err := c.call(ctx, part)
		if err != nil {
			return "", fmt.Errorf("diacritics: part %d/%d: %w", i+1, len(parts), err)
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

func (c *HTTPClient) call(ctx context.Context, text string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader([]byte(text)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service returned %s", resp.Status)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// splitForCalls cuts text into pieces of at most maxChars runes,
// preferring newline boundaries so a dialogue line never straddles two
// calls. A single line longer than maxChars is cut mid-line.
func splitForCalls(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			parts = append(parts, string(runes))
			break
		}
		cut := maxChars
		for i := maxChars; i > maxChars/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return parts
}

var _ Client = (*HTTPClient)(nil)
