// Package cache stores serialized underwriting results keyed by deal content.
package cache

import (
	"context"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ResultCache is a string key-value store for serialized results.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

// Key derives a cache key from the catalog version and the canonical deal
// payload, so a catalog reload never serves results computed on old terms.
func Key(catalogVersion string, payload []byte) string {
	h := xxhash.New()
	_, _ = h.WriteString(catalogVersion)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	return "underwriting:" + strconv.FormatUint(h.Sum64(), 16)
}

// MemoryCache is an in-process ResultCache for local runs and tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]string)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	return val, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
