package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local implements FileStore on the local filesystem. It exists for
// development and tests: the whole pipeline can run against a directory
// instead of a bucket, with artifact keys becoming relative file paths
// under the root.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating the directory
// (with parents) if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// resolve maps an artifact key onto the filesystem under root.
func (l *Local) resolve(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Read opens the artifact at key. *os.PathError already wraps
// os.ErrNotExist, matching the FileStore contract.
func (l *Local) Read(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(l.resolve(key))
}

// Write opens the artifact at key for writing, creating the episode's
// directory tree as needed and truncating any previous version.
func (l *Local) Write(_ context.Context, key string) (io.WriteCloser, error) {
	full := l.resolve(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

// Delete removes the artifact at key; a missing artifact is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	err := os.Remove(l.resolve(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether an artifact is present at key.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(l.resolve(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

var _ FileStore = (*Local)(nil)
