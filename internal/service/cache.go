package service

import (
	"sync"
	"time"

	"pos-promotion-services/internal/promotion"
)

const snapshotCacheMaxEntries = 500

type snapshotEntry struct {
	snapshot  promotion.Snapshot
	expiresAt time.Time
}

// snapshotCache holds one snapshot per location for a short TTL.
type snapshotCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]snapshotEntry
}

func newSnapshotCache(ttl time.Duration, now func() time.Time) *snapshotCache {
	return &snapshotCache{ttl: ttl, now: now, entries: make(map[int64]snapshotEntry)}
}

func (c *snapshotCache) get(locationID int64) (promotion.Snapshot, bool) {
	if c.ttl <= 0 {
		return promotion.Snapshot{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[locationID]
	if !ok {
		return promotion.Snapshot{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, locationID)
		return promotion.Snapshot{}, false
	}
	return entry.snapshot, true
}

func (c *snapshotCache) set(locationID int64, snapshot promotion.Snapshot) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[locationID] = snapshotEntry{snapshot: snapshot, expiresAt: c.now().Add(c.ttl)}
	if len(c.entries) > snapshotCacheMaxEntries {
		c.entries = map[int64]snapshotEntry{locationID: c.entries[locationID]}
	}
}

func (c *snapshotCache) invalidate(locationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, locationID)
}
