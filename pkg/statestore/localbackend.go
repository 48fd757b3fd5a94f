package statestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend persists to a single file on disk. Write uses
// write-temp-then-rename so a crash mid-write never leaves a truncated
// file in place.
type LocalBackend struct {
	Path string
}

func (b *LocalBackend) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statestore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".pylon-state-*.tmp")
	if err != nil {
		return fmt.Errorf("statestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, b.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: rename into place: %w", err)
	}
	return nil
}

func (b *LocalBackend) Read(ctx context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("statestore: read %s: %w", b.Path, err)
	}
	return data, true, nil
}

var _ Backend = (*LocalBackend)(nil)
