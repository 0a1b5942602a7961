package ddmin

import (
	"strings"
	"sync"
)

// PrecomputeCache remembers every exact input-label sequence already tried
// across the whole search, so a subset reachable by more than one path
// through the recursion is replayed at most once (spec.md §8 invariant 3,
// scenario S4). Order-sensitive: ["a","b"] and ["b","a"] are distinct keys,
// matching the original's use of a tuple as the cache key.
type PrecomputeCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewPrecomputeCache returns an empty cache.
func NewPrecomputeCache() *PrecomputeCache {
	return &PrecomputeCache{seen: map[string]bool{}}
}

// AlreadyDone reports whether this exact ordered label sequence has been
// recorded via Update.
func (c *PrecomputeCache) AlreadyDone(labels []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[cacheKey(labels)]
}

// Update records labels as tried.
func (c *PrecomputeCache) Update(labels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[cacheKey(labels)] = true
}

// Size returns how many distinct sequences have been recorded.
func (c *PrecomputeCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func cacheKey(labels []string) string {
	return strings.Join(labels, "\x00")
}
