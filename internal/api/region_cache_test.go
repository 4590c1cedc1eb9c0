package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/poller"
)

func TestRegionCacheExpires(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewRegionCache(10 * time.Second)
	cache.now = func() time.Time { return now }

	bbox := opensky.BoundingBox{LatMin: 45, LatMax: 48, LonMin: 5, LonMax: 10}
	_, ok := cache.Get(bbox)
	assert.False(t, ok)

	cache.Set(bbox, poller.Snapshot{Timestamp: 42})
	snap, ok := cache.Get(bbox)
	assert.True(t, ok)
	assert.EqualValues(t, 42, snap.Timestamp)

	other := bbox
	other.LatMax = 49
	_, ok = cache.Get(other)
	assert.False(t, ok)

	now = now.Add(11 * time.Second)
	_, ok = cache.Get(bbox)
	assert.False(t, ok)
}

func TestRegionCacheDisabled(t *testing.T) {
	cache := NewRegionCache(0)
	bbox := opensky.BoundingBox{LatMin: 1, LatMax: 2, LonMin: 1, LonMax: 2}
	cache.Set(bbox, poller.Snapshot{Timestamp: 1})
	_, ok := cache.Get(bbox)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestRegionCacheBounded(t *testing.T) {
	cache := NewRegionCache(time.Minute)
	for i := 0; i < maxCachedRegions+10; i++ {
		cache.Set(opensky.BoundingBox{LatMin: float64(i), LatMax: float64(i) + 1}, poller.Snapshot{})
	}
	assert.Equal(t, maxCachedRegions, cache.Len())
}
