package semantic

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Cache maps a deterministic batch key to a previously parsed verdict list,
// so a repeated batch replays the structured result instead of issuing a
// second external call. Process-local, no eviction; it lives for one
// pipeline run.
type Cache interface {
	Get(key string) ([]MismatchVerdict, bool)
	Set(key string, verdicts []MismatchVerdict)
}

// memoryCache is the in-memory Cache implementation.
type memoryCache struct {
	entries map[string][]MismatchVerdict
	mu      sync.RWMutex
}

// NewMemoryCache creates an empty in-memory verdict cache.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string][]MismatchVerdict)}
}

func (c *memoryCache) Get(key string) ([]MismatchVerdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memoryCache) Set(key string, verdicts []MismatchVerdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = verdicts
}

// batchCacheKey derives a stable key from the batch identity: the sorted
// shipment ids, hashed. Two batches with the same id set hit the same entry.
func batchCacheKey(candidates []candidate) string {
	ids := make([]int, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ShipmentID
	}
	sort.Ints(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}

	sum := sha256.Sum256([]byte("hs_strict:" + strings.Join(parts, ",")))
	return fmt.Sprintf("%x", sum)
}
