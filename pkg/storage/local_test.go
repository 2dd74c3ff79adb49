package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testKeys = Keys{PodcastID: "pod-1", EpisodeID: "ep-1"}

var testStamp = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func put(t *testing.T, s FileStore, key, data string) {
	t.Helper()
	w, err := s.Write(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, s FileStore, key string) string {
	t.Helper()
	r, err := s.Read(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestLocalRoundTripsScriptArtifact(t *testing.T) {
	s := newTestLocal(t)

	key := testKeys.Script(testStamp)
	put(t, s, key, "Host: ערב טוב.")

	if got := get(t, s, key); got != "Host: ערב טוב." {
		t.Fatalf("got %q", got)
	}

	// The key's directory tree lands under the root as-is.
	onDisk := filepath.Join(s.root, "podcasts", "pod-1", "ep-1",
		"transcripts", "script_20260801_120000.txt")
	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("artifact not at expected path: %v", err)
	}
}

func TestLocalReadMissingAudio(t *testing.T) {
	s := newTestLocal(t)

	_, err := s.Read(context.Background(), testKeys.Audio())
	if err == nil {
		t.Fatal("expected error for missing audio")
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLocalExists(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, testKeys.Content())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false before the collector ran")
	}

	put(t, s, testKeys.Content(), `{"channel":"newsroom"}`)

	ok, err = s.Exists(ctx, testKeys.Content())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected true for written artifact")
	}
}

func TestLocalDeleteMediaIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	key := testKeys.Media("images", "chart.png")

	// Delete before anything was downloaded.
	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}

	put(t, s, key, "png-bytes")
	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Exists(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("media should be gone after delete")
	}

	// And again.
	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
}

func TestLocalAudioReplayOverwrites(t *testing.T) {
	s := newTestLocal(t)

	// First render, then a replay writing the same canonical key.
	put(t, s, testKeys.Audio(), "RIFF....WAVE first render padding")
	put(t, s, testKeys.Audio(), "RIFF....WAVE second")

	if got := get(t, s, testKeys.Audio()); got != "RIFF....WAVE second" {
		t.Fatalf("got %q, replay must truncate", got)
	}
}

func TestNewLocalCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts", "dev")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.root)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
}
