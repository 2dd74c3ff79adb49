// Package storage persists pipeline artifacts: collected content, clean
// transcripts, generated scripts, downloaded media and the final episode
// audio. The FileStore interface abstracts the backend so workers run
// against S3 in production and local disk in development; Artifacts layers
// the episode key scheme on top.
package storage

import (
	"context"
	"io"
	"path"
)

// FileStore is the backend surface behind Artifacts.
//
// Paths are forward-slash artifact keys relative to the store root, built
// by [Keys]. Implementations must be safe for concurrent use; workers
// upload media attachments in parallel with transcript writes.
type FileStore interface {
	// Read opens the artifact at path.
	// The caller must close the returned ReadCloser when done.
	// A missing artifact returns an error wrapping os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the artifact at path for writing, truncating any
	// previous version. Replays overwrite the canonical audio key this
	// way. The caller must close the returned WriteCloser to flush.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the artifact at path. Deleting a missing artifact
	// returns nil.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an artifact is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// contentTypeFor maps an artifact key to its MIME type. The pipeline
// writes a closed set of artifact kinds: JSON content and analysis,
// plain-text scripts, the WAV episode audio, and downloaded media.
func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".wav":
		return "audio/wav"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
