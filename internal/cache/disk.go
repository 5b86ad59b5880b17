package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const entrySuffix = ".cache"

// DiskCache keeps entries as JSON files under dir, sharded into
// subdirectories by the first two characters of the key's hash part. Each
// file records its own key, so a file name collision reads as a miss.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache; ttl is the default entry lifetime
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

func (e diskEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get returns a live entry. Expired entries are removed on read.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	entry, err := readEntry(path)
	if err != nil || entry.Key != key {
		return nil, false
	}
	if entry.expired(c.now()) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Data, true
}

// Set writes an entry atomically. A zero ttl uses the cache default and a
// zero default means the entry never expires.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	now := c.now()
	entry := diskEntry{Key: key, StoredAt: now, Data: value}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return writeAtomic(path, data)
}

// Delete removes an entry; a missing entry is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune deletes expired and unreadable entries and reports how many entries
// were removed and how many remain
func (c *DiskCache) Prune() (removed, kept int, err error) {
	now := c.now()
	err = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, entrySuffix) {
			return nil
		}
		entry, readErr := readEntry(path)
		if readErr == nil && !entry.expired(now) {
			kept++
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return rmErr
		}
		removed++
		return nil
	})
	return removed, kept, err
}

func (c *DiskCache) path(key string) string {
	hash := key
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		hash = key[i+1:]
	}
	shard := "00"
	if len(hash) >= 2 {
		shard = hash[:2]
	}
	return filepath.Join(c.dir, shard, strings.ReplaceAll(key, ":", "_")+entrySuffix)
}

func readEntry(path string) (diskEntry, error) {
	var entry diskEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

// writeAtomic writes to a temp file in the same directory and renames it
// over path, so readers never see a partial entry
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	name := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("store cache file: %w", err)
	}
	return nil
}
