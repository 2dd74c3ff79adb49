package collect

import (
	"sort"
	"strings"
	"time"

	"github.com/voxloom/voxloom/pkg/script"
	"github.com/voxloom/voxloom/pkg/telegram"
)

// ContentMessage is one kept message in the content artifact.
type ContentMessage struct {
	ID       int64     `json:"id"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
	Channel  string    `json:"channel"`
	MediaKey string    `json:"media_key,omitempty"` // artifact path of the downloaded attachment
}

// MediaStats counts attachment handling during collection.
type MediaStats struct {
	Found      int `json:"found"`
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"` // disallowed type or download failure
}

// URLStats counts link filtering during collection.
type URLStats struct {
	Total   int `json:"total"`
	Blocked int `json:"blocked"` // messages dropped for a filtered domain
}

// Content is the collector's result object, uploaded as content.json.
type Content struct {
	Channel     string           `json:"channel"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	CollectedAt time.Time        `json:"collected_at"`
	Messages    []ContentMessage `json:"messages"`
	Media       MediaStats       `json:"media_stats"`
	URLs        URLStats         `json:"url_stats"`
	Dropped     int              `json:"dropped_promotional"`
}

// FilterOptions control which raw messages survive assembly.
type FilterOptions struct {
	BlockedDomains []string
}

// Assemble filters raw channel messages into content, date-sorted. Media
// handling happens before Assemble; pass the per-message artifact keys in
// mediaKeys (by message ID).
func Assemble(raw []telegram.ChannelMessage, opts FilterOptions, mediaKeys map[int64]string) Content {
	var c Content
	for _, m := range raw {
		text := strings.TrimSpace(m.Text)
		urls := ExtractURLs(text)
		c.URLs.Total += len(urls)

		if text == "" && mediaKeys[m.ID] == "" {
			continue
		}
		if IsPromotional(text) {
			c.Dropped++
			continue
		}
		if HasBlockedDomain(text, opts.BlockedDomains) {
			c.URLs.Blocked++
			continue
		}
		c.Messages = append(c.Messages, ContentMessage{
			ID:       m.ID,
			Text:     text,
			Date:     m.Date,
			Channel:  m.Channel,
			MediaKey: mediaKeys[m.ID],
		})
	}
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return c.Messages[i].Date.Before(c.Messages[j].Date)
	})
	return c
}

// CleanMessages converts content to the normalized form the script layer
// consumes.
func CleanMessages(c Content) []script.Message {
	out := make([]script.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Text == "" {
			continue
		}
		out = append(out, script.Message{Text: m.Text, Date: m.Date, Channel: m.Channel})
	}
	return out
}
