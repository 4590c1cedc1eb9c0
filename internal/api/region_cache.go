package api

import (
	"sync"
	"time"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/poller"
)

// maxCachedRegions bounds the cache; expired entries are evicted first
const maxCachedRegions = 64

type regionEntry struct {
	snap      poller.Snapshot
	expiresAt time.Time
}

// RegionCache holds recent ad-hoc region snapshots for a fixed TTL
type RegionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[opensky.BoundingBox]regionEntry
	now     func() time.Time
}

// NewRegionCache creates a cache. A non-positive ttl disables caching.
func NewRegionCache(ttl time.Duration) *RegionCache {
	return &RegionCache{
		ttl:     ttl,
		entries: make(map[opensky.BoundingBox]regionEntry),
		now:     time.Now,
	}
}

// Get returns an unexpired snapshot for bbox
func (c *RegionCache) Get(bbox opensky.BoundingBox) (poller.Snapshot, bool) {
	if c.ttl <= 0 {
		return poller.Snapshot{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[bbox]
	if !ok || c.now().After(e.expiresAt) {
		return poller.Snapshot{}, false
	}
	return e.snap, true
}

// Set stores snap for bbox
func (c *RegionCache) Set(bbox opensky.BoundingBox, snap poller.Snapshot) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) >= maxCachedRegions {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	if len(c.entries) >= maxCachedRegions {
		// Still full; drop an arbitrary entry
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[bbox] = regionEntry{snap: snap, expiresAt: now.Add(c.ttl)}
}

// Len returns the number of cached regions, expired ones included
func (c *RegionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
