package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalDisk stores objects as files below a root directory.
type LocalDisk struct {
	root string
}

// NewLocalDisk constructs a disk backend rooted at dir.
func NewLocalDisk(dir string) (*LocalDisk, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage dir is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalDisk{root: root}, nil
}

// EnsureBucket creates the root directory.
func (l *LocalDisk) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.root, 0o755)
}

// Put writes the object atomically through a temp file.
func (l *LocalDisk) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Get opens the object file.
func (l *LocalDisk) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return file, err
}

// Delete removes the object file.
func (l *LocalDisk) Delete(ctx context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// Bucket returns the root directory.
func (l *LocalDisk) Bucket() string {
	return l.root
}

// path resolves key below root and rejects keys that escape it.
func (l *LocalDisk) path(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	path := filepath.Join(l.root, cleaned)
	if path == l.root || !strings.HasPrefix(path, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return path, nil
}
