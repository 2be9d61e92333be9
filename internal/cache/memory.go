package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/andriputra/skysearch/internal/models"
)

type memoryEntry struct {
	flights   []models.Flight
	expiresAt time.Time
}

// MemoryCache is the in-process fallback used when redis is not configured.
// Eviction is expiry-based only: expired entries are dropped on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]models.Flight, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.flights, true
}

func (c *MemoryCache) Set(_ context.Context, key string, flights []models.Flight, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		flights:   append([]models.Flight(nil), flights...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) InvalidateRoute(_ context.Context, origin, destination string) error {
	prefix := strings.TrimSuffix(routePattern(origin, destination), "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}

// NoOpCache disables caching entirely.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (NoOpCache) Get(context.Context, string) ([]models.Flight, bool) {
	return nil, false
}

func (NoOpCache) Set(context.Context, string, []models.Flight, time.Duration) error {
	return nil
}

func (NoOpCache) Delete(context.Context, string) error {
	return nil
}

func (NoOpCache) InvalidateRoute(context.Context, string, string) error {
	return nil
}

func (NoOpCache) Close() error {
	return nil
}
