package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"
)

// Artifact path layout. Transcript artifacts carry a timestamp so replays
// write fresh copies; the final audio key is canonical and overwrites.
//
//	podcasts/{podcast_id}/{episode_id}/content.json
//	podcasts/{podcast_id}/{episode_id}/transcripts/clean_content_{ts}.json
//	podcasts/{podcast_id}/{episode_id}/transcripts/analysis_{ts}.json
//	podcasts/{podcast_id}/{episode_id}/transcripts/script_{ts}.txt
//	podcasts/{podcast_id}/{episode_id}/audio/podcast.wav
//	podcasts/{podcast_id}/{episode_id}/{images|video|audio|files}/{filename}

// stampLayout is the artifact timestamp format, UTC.
const stampLayout = "20060102_150405"

// Keys builds the artifact paths of one episode.
type Keys struct {
	PodcastID string
	EpisodeID string
}

func (k Keys) root() string {
	return path.Join("podcasts", k.PodcastID, k.EpisodeID)
}

// Content is the collector's raw content artifact.
func (k Keys) Content() string {
	return path.Join(k.root(), "content.json")
}

// CleanContent is the preprocessor's normalized content artifact.
func (k Keys) CleanContent(ts time.Time) string {
	return path.Join(k.root(), "transcripts", "clean_content_"+ts.UTC().Format(stampLayout)+".json")
}

// Analysis is the preprocessor's content-analysis artifact.
func (k Keys) Analysis(ts time.Time) string {
	return path.Join(k.root(), "transcripts", "analysis_"+ts.UTC().Format(stampLayout)+".json")
}

// Script is the generated script artifact.
func (k Keys) Script(ts time.Time) string {
	return path.Join(k.root(), "transcripts", "script_"+ts.UTC().Format(stampLayout)+".txt")
}

// ScriptDiacritized is the Hebrew-processed script artifact.
func (k Keys) ScriptDiacritized(ts time.Time) string {
	return path.Join(k.root(), "transcripts", "script_diacritized_"+ts.UTC().Format(stampLayout)+".txt")
}

// Audio is the canonical final-audio path. Replays overwrite it.
func (k Keys) Audio() string {
	return path.Join(k.root(), "audio", "podcast.wav")
}

// Media places one downloaded attachment under its type directory
// (images, video, audio, files).
func (k Keys) Media(mediaDir, filename string) string {
	return path.Join(k.root(), mediaDir, filename)
}

// Artifacts reads and writes episode artifacts over a FileStore.
type Artifacts struct {
	fs FileStore
}

// NewArtifacts wraps a FileStore with the episode artifact layout.
func NewArtifacts(fs FileStore) *Artifacts {
	return &Artifacts{fs: fs}
}

// PutJSON marshals v and writes it at key.
func (a *Artifacts) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", key, err)
	}
	return a.PutBytes(ctx, key, data)
}

// GetJSON reads key and unmarshals it into v.
func (a *Artifacts) GetJSON(ctx context.Context, key string, v any) error {
	data, err := a.GetBytes(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: unmarshal %s: %w", key, err)
	}
	return nil
}

// PutBytes writes data at key.
func (a *Artifacts) PutBytes(ctx context.Context, key string, data []byte) error {
	w, err := a.fs.Write(ctx, key)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

// GetBytes reads the whole artifact at key.
func (a *Artifacts) GetBytes(ctx context.Context, key string) ([]byte, error) {
	r, err := a.fs.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether an artifact is present.
func (a *Artifacts) Exists(ctx context.Context, key string) (bool, error) {
	return a.fs.Exists(ctx, key)
}
