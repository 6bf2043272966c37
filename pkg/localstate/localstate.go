// Package localstate persists small client-side values with an expiry.
package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NicknameTTL is how long a remembered nickname stays valid.
const NicknameTTL = 24 * time.Hour

// Stored is a value paired with the time it was written.
type Stored[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// IsExpired reports whether stored is older than ttl at now. A zero
// timestamp is always expired; a non-positive ttl never expires.
func IsExpired[T any](stored Stored[T], now time.Time, ttl time.Duration) bool {
	if stored.StoredAt.IsZero() {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(stored.StoredAt) > ttl
}

// FileStore keeps one JSON document per key under a directory.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileStore creates dir if missing.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("localstate dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

// DefaultDir is the per-user config directory for the terminal client.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "termfolio")
}

// Save writes value under key, stamped with the current time.
func (f *FileStore) Save(key, value string) error {
	data, err := json.Marshal(Stored[string]{Value: value, StoredAt: f.now().UTC()})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(key), data, 0o600)
}

// Load returns the value under key. Missing, unreadable or expired values
// report false; expired ones are removed.
func (f *FileStore) Load(key string) (string, bool) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return "", false
	}
	var stored Stored[string]
	if err := json.Unmarshal(data, &stored); err != nil {
		_ = f.Clear(key)
		return "", false
	}
	if IsExpired(stored, f.now(), f.ttl) {
		_ = f.Clear(key)
		return "", false
	}
	return stored.Value, true
}

// Clear deletes key. Missing keys are not an error.
func (f *FileStore) Clear(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileStore) path(key string) string {
	key = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, key)
	return filepath.Join(f.dir, key+".json")
}
