package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Dir stores one JSON file per page under a directory
type Dir struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

// NewDir creates a directory store rooted at root
func NewDir(root string, ttl time.Duration) *Dir {
	return &Dir{root: root, ttl: ttl, now: time.Now}
}

// Get returns the page for url. Stale or unreadable files are removed.
func (d *Dir) Get(url string) (*Page, bool) {
	path := d.file(url)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var page Page
	if err := json.Unmarshal(raw, &page); err != nil || page.URL != url || d.stale(page.StoredAt) {
		_ = os.Remove(path)
		return nil, false
	}
	return &page, true
}

func (d *Dir) stale(storedAt time.Time) bool {
	return d.ttl > 0 && d.now().Sub(storedAt) > d.ttl
}

// Put writes page atomically
func (d *Dir) Put(page *Page) error {
	if page.StoredAt.IsZero() {
		page.StoredAt = d.now()
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.root, ".page-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.file(page.URL)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

// Forget removes url; a missing page is not an error
func (d *Dir) Forget(url string) error {
	if err := os.Remove(d.file(url)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("forget %s: %w", url, err)
	}
	return nil
}

// Purge removes the whole directory
func (d *Dir) Purge() error {
	return os.RemoveAll(d.root)
}

func (d *Dir) file(url string) string {
	return filepath.Join(d.root, Key(url)+".json")
}
