package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process page store with per-entry expiry
type Memory struct {
	items *gocache.Cache
	ttl   time.Duration
}

// NewMemory creates a memory store; ttl <= 0 keeps pages for ten minutes
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Memory{items: gocache.New(ttl, 2*ttl), ttl: ttl}
}

// Get returns the page for url
func (m *Memory) Get(url string) (*Page, bool) {
	v, ok := m.items.Get(Key(url))
	if !ok {
		return nil, false
	}
	p, ok := v.(*Page)
	return p, ok
}

// Put stores page under its request URL
func (m *Memory) Put(page *Page) error {
	if page.StoredAt.IsZero() {
		page.StoredAt = time.Now()
	}
	m.items.SetDefault(Key(page.URL), page)
	return nil
}

// Forget drops url
func (m *Memory) Forget(url string) error {
	m.items.Delete(Key(url))
	return nil
}

// Purge drops every page
func (m *Memory) Purge() error {
	m.items.Flush()
	return nil
}

// Len returns the number of live pages
func (m *Memory) Len() int {
	return m.items.ItemCount()
}
