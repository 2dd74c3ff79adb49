package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient implements Client against the channel gateway's REST API.
// The gateway owns the long-lived session; this client only authenticates
// with the app credentials and the exported session string.
type HTTPClient struct {
	baseURL string
	apiID   string
	apiHash string
	session string
	httpc   *http.Client
}

// NewHTTP creates a gateway client. httpc may be nil, in which case a
// client with a 60s timeout is used.
func NewHTTP(baseURL, apiID, apiHash, session string, httpc *http.Client) *HTTPClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiID:   apiID,
		apiHash: apiHash,
		session: session,
		httpc:   httpc,
	}
}

func (c *HTTPClient) do(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("X-Api-Id", c.apiID)
	req.Header.Set("X-Api-Hash", c.apiHash)
	req.Header.Set("X-Session", c.session)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("telegram: %s: gateway returned %s", path, resp.Status)
	}
	return resp, nil
}

func (c *HTTPClient) ChannelMessages(ctx context.Context, channel string, from, to time.Time) ([]ChannelMessage, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	resp, err := c.do(ctx, "/channels/"+url.PathEscape(channel)+"/messages", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Messages []ChannelMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("telegram: decode messages for %s: %w", channel, err)
	}
	for i := range out.Messages {
		if out.Messages[i].Channel == "" {
			out.Messages[i].Channel = channel
		}
	}
	return out.Messages, nil
}

func (c *HTTPClient) DownloadMedia(ctx context.Context, channel string, messageID int64) (io.ReadCloser, error) {
	path := "/channels/" + url.PathEscape(channel) + "/messages/" + strconv.FormatInt(messageID, 10) + "/media"
	resp, err := c.do(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var _ Client = (*HTTPClient)(nil)
