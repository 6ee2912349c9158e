// Package cache stores expiring JSON entries on disk, keyed by the
// blake3 hash of a caller-provided string key.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lukechampine.com/blake3"
)

type entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Cache is a directory of one-file-per-entry JSON records. There is no
// locking: entries are idempotent recomputations, so a racing writer just
// rewrites the same value.
type Cache struct {
	dir string
}

// New opens (creating if needed) a cache rooted at dir.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Get decodes the cached value for key into v. Returns false on a miss or
// an expired entry; expired entries are removed on read.
func (c *Cache) Get(key string, v any) bool {
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		return false
	}
	if time.Now().After(e.ExpiresAt) {
		os.Remove(path)
		return false
	}
	return json.Unmarshal(e.Value, v) == nil
}

// Put stores v under key with the given time-to-live.
func (c *Cache) Put(key string, v any, ttl time.Duration) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	data, err := json.Marshal(entry{Key: key, Value: value, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.entryPath(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	sum := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
