// Package cache keeps fetched survey pages between runs of fill and batch.
//
// Pages live in process memory and, when a directory is configured, in one
// JSON file per URL so later invocations skip the network.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ppiankov/surveyfill/internal/model"
)

// Page is a fetched survey page as the fetcher returns it
type Page struct {
	URL      string          `json:"url"`
	FinalURL string          `json:"final_url"`
	Subject  string          `json:"subject"`
	HTML     string          `json:"html"`
	Meta     model.FetchMeta `json:"meta"`
	StoredAt time.Time       `json:"stored_at"`
}

// Store holds pages by request URL
type Store interface {
	Get(url string) (*Page, bool)
	Put(page *Page) error
	Forget(url string) error
	Purge() error
}

// Key derives the storage key of a request URL
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "page-v2-" + hex.EncodeToString(sum[:16])
}

// New builds the store described by cfg. A disabled cache returns nil.
func New(cfg model.CacheConfig) Store {
	if !cfg.Enabled {
		return nil
	}
	mem := NewMemory(cfg.MemoryTTL)
	if cfg.Dir == "" {
		return mem
	}
	return &Tiered{front: mem, back: NewDir(cfg.Dir, cfg.DiskTTL)}
}

// Tiered answers from memory and falls back to the directory store,
// copying directory hits forward
type Tiered struct {
	front *Memory
	back  *Dir
}

// Get returns the page for url
func (t *Tiered) Get(url string) (*Page, bool) {
	if p, ok := t.front.Get(url); ok {
		return p, true
	}
	p, ok := t.back.Get(url)
	if ok {
		_ = t.front.Put(p)
	}
	return p, ok
}

// Put stores the page in both tiers
func (t *Tiered) Put(page *Page) error {
	_ = t.front.Put(page)
	return t.back.Put(page)
}

// Forget drops url from both tiers
func (t *Tiered) Forget(url string) error {
	return errors.Join(t.front.Forget(url), t.back.Forget(url))
}

// Purge empties both tiers
func (t *Tiered) Purge() error {
	return errors.Join(t.front.Purge(), t.back.Purge())
}
