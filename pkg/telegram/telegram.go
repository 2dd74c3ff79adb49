// Package telegram fetches channel history and media for the collector.
// The Client interface keeps workers testable; the HTTP implementation
// talks to a session gateway that holds the MTProto session, so workers
// never handle the raw protocol themselves.
package telegram

import (
	"context"
	"io"
	"time"
)

// MediaType classifies a message attachment.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaFile  MediaType = "file"
)

// Media describes one downloadable attachment.
type Media struct {
	Type     MediaType `json:"type"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size,omitempty"`
}

// ChannelMessage is one message fetched from a channel.
type ChannelMessage struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	Date    time.Time `json:"date"`
	Channel string    `json:"channel"`
	Media   *Media    `json:"media,omitempty"`
}

// Client is the channel access surface the collector needs.
type Client interface {
	// ChannelMessages fetches messages from a channel within [from, to],
	// oldest first.
	ChannelMessages(ctx context.Context, channel string, from, to time.Time) ([]ChannelMessage, error)

	// DownloadMedia streams the attachment of one message. The caller
	// must close the returned reader.
	DownloadMedia(ctx context.Context, channel string, messageID int64) (io.ReadCloser, error)
}
