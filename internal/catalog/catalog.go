// Package catalog holds the request-independent caches: the resolvable
// entity names and the hydration side table.
//
// Both are loaded once and only change through an explicit Reload, so
// concurrent requests always see a consistent view.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source provides the current entity names, usually a GraphStore.
type Source interface {
	CatalogNames(ctx context.Context) ([]string, error)
}

// Cache is the in-memory catalog of resolvable entity names.
type Cache struct {
	mu       sync.RWMutex
	source   Source
	log      *zap.Logger
	names    []string
	loadedAt time.Time
}

// NewCache creates an empty cache over the given source. Call Reload to
// populate it.
func NewCache(source Source, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{source: source, log: log}
}

// Reload replaces the cached names with a fresh fetch. On failure the
// previous names are kept and the error returned.
func (c *Cache) Reload(ctx context.Context) error {
	names, err := c.source.CatalogNames(ctx)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}

	c.mu.Lock()
	c.names = names
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.log.Info("catalog reloaded", zap.Int("names", len(names)))
	return nil
}

// Names returns the cached names. The slice is a copy; callers may sort
// or filter it freely.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of cached names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// LoadedAt returns when the cache was last populated, zero if never.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
