package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage is a durable Storage implementation keeping one file per slot
// under a directory. It is the desktop/kiosk equivalent of browser
// localStorage: every Set is flushed to disk before returning, so a crash
// or process exit immediately after a mutation never loses it.
//
// Writes go through a temp file + rename so a slot is always either the old
// or the new document, never a torn write.
type FileStorage struct {
	dir    string
	mu     sync.Mutex
	logger Logger
}

// NewFileStorage creates a FileStorage rooted at dir, creating the
// directory if needed.
func NewFileStorage(dir string, logger Logger) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required: %w", ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileStorage{dir: dir, logger: logger}, nil
}

func (f *FileStorage) path(key string) string {
	// Slot keys are fixed identifiers like "saareats_cart_v1"; sanitize
	// anyway so a hostile key cannot escape the directory.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(f.dir, safe+".json")
}

func (f *FileStorage) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		// An unreadable slot is treated as absent; callers already treat
		// missing data as "no value".
		f.logger.Warn("Storage slot unreadable, treating as absent", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return "", nil
	}
	return string(data), nil
}

func (f *FileStorage) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync slot %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close slot %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store slot %s: %w", key, err)
	}

	f.logger.Debug("Storage slot written", map[string]interface{}{
		"key":        key,
		"value_size": len(value),
	})
	return nil
}

func (f *FileStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

func (f *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := os.Stat(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
