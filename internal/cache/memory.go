package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/cockroachdb/errors"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is a process local Backend. Values are kept JSON encoded so
// callers never share memory with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

func NewMemoryCache(c clock.Clock) *MemoryCache {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), clock: c}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(e.payload, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) Count(_ context.Context, prefix string) (int, error) {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) && now.Before(e.expiresAt) {
			n++
		}
	}
	return n, nil
}

var _ Backend = (*MemoryCache)(nil)
