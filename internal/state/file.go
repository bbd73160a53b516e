package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File keeps one JSON document per record inside a directory
// (auth_sessions.json, game_mappings.json, content_mappings.json).
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates dir if needed and returns a file backend rooted there.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(record Record) string {
	return filepath.Join(f.dir, string(record)+".json")
}

func (f *File) Load(_ context.Context, record Record) ([]byte, error) {
	data, err := os.ReadFile(f.path(record))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", record, err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// record, so a crash never leaves a half-written snapshot behind.
func (f *File) Save(_ context.Context, record Record, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, string(record)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", record, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op once renamed
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", record, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", record, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", record, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", record, err)
	}
	if err := os.Rename(tmpName, f.path(record)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", record, err)
	}
	return nil
}

func (f *File) Close() error { return nil }

// Ping checks that the state directory is still there.
func (f *File) Ping(context.Context) error {
	if _, err := os.Stat(f.dir); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}
	return nil
}
