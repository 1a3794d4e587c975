package assetcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the cache as a single JSON document on local disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore that reads/writes the given path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("cache file path is required")
	}
	return &FileStore{path: path}, nil
}

// Load reads the full cache document. A missing file is an empty cache; a
// file that fails to parse is a CorruptError.
func (s *FileStore) Load(_ context.Context) (map[string]Mapping, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Mapping{}, nil
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var entries map[string]Mapping
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &CorruptError{Err: err, Source: s.path}
	}
	if entries == nil {
		entries = map[string]Mapping{}
	}

	return entries, nil
}

// Save writes the complete cache document atomically: a temp file in the
// same directory is written and fsynced, then renamed over the old document,
// so a crash mid-write never leaves a partial cache behind.
func (s *FileStore) Save(_ context.Context, all map[string]Mapping, _ map[string]Mapping) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".asset-cache-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting cache file mode: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing cache file: %w", err)
	}

	return nil
}
