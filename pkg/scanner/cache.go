package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taskcam/pkg/structurer"
)

// Cache remembers the last structured page between scans so a re-scan of
// the same card can skip the model call when only checkbox states changed.
// It survives restarts through a JSON file.
type Cache struct {
	path string
	mu   sync.RWMutex
	data cacheData
}

type cacheData struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	ScanID  string           `json:"scan_id"`
	Page    *structurer.Page `json:"page"`
}

const cacheVersion = 1

// NewCache opens the cache at path, loading any previous state. A missing
// or unreadable file is not an error; the cache just starts empty.
func NewCache(path string) (*Cache, error) {
	c := &Cache{path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.data); err != nil || c.data.Version != cacheVersion {
		c.data = cacheData{}
	}

	return c, nil
}

// Page returns a deep copy of the cached page, or nil when empty.
func (c *Cache) Page() *structurer.Page {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data.Page == nil {
		return nil
	}

	// Deep copy via JSON so callers can mutate freely
	raw, err := json.Marshal(c.data.Page)
	if err != nil {
		return nil
	}
	var page structurer.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil
	}
	return &page
}

// Put replaces the cached page and persists it to disk.
func (c *Cache) Put(scanID string, page *structurer.Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = cacheData{
		Version: cacheVersion,
		SavedAt: time.Now(),
		ScanID:  scanID,
		Page:    page,
	}
	return c.save()
}

// Clear drops the cached page, forcing the next scan through the model.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = cacheData{}
	return c.save()
}

// save writes to a temp file then renames (atomic write).
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}
