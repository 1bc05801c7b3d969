package cache

import (
	"sync"
	"time"

	"github.com/kjstillabower/farm-records-service/internal/models"
)

// DefaultForecastTTL is how long a fetched forecast is served without
// contacting the backend.
const DefaultForecastTTL = 30 * time.Minute

// ForecastCache holds at most one forecast snapshot. The snapshot and its
// capture time are stored together so the slot is either fully populated or
// empty. A Store always replaces the previous generation.
//
// The mutex guards the slot only. Callers fetch outside the lock, so two
// callers that both observe an expired slot will both fetch and the last
// Store wins.
type ForecastCache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	slot *forecastSlot
}

type forecastSlot struct {
	entries    []models.ForecastEntry
	capturedAt time.Time
}

// NewForecastCache returns an empty cache. A non-positive ttl uses
// DefaultForecastTTL; a nil now uses time.Now.
func NewForecastCache(ttl time.Duration, now func() time.Time) *ForecastCache {
	if ttl <= 0 {
		ttl = DefaultForecastTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ForecastCache{ttl: ttl, now: now}
}

// Lookup returns a copy of the cached forecast if one was captured less than
// ttl ago. Returns (nil, false) when the slot is empty or expired.
func (c *ForecastCache) Lookup() ([]models.ForecastEntry, bool) {
	c.mu.RLock()
	s := c.slot
	c.mu.RUnlock()

	if s == nil || c.now().Sub(s.capturedAt) >= c.ttl {
		return nil, false
	}
	return copyEntries(s.entries), true
}

// Store replaces the slot with a private copy of entries stamped with the
// current time, and returns another copy for the caller.
func (c *ForecastCache) Store(entries []models.ForecastEntry) []models.ForecastEntry {
	s := &forecastSlot{entries: copyEntries(entries), capturedAt: c.now()}
	c.mu.Lock()
	c.slot = s
	c.mu.Unlock()
	return copyEntries(s.entries)
}

// CapturedAt reports when the current slot was filled.
func (c *ForecastCache) CapturedAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.slot == nil {
		return time.Time{}, false
	}
	return c.slot.capturedAt, true
}

// TTL returns the configured freshness window.
func (c *ForecastCache) TTL() time.Duration { return c.ttl }

// ForecastEntry holds only value fields, so a slice copy is a deep copy.
func copyEntries(in []models.ForecastEntry) []models.ForecastEntry {
	out := make([]models.ForecastEntry, len(in))
	copy(out, in)
	return out
}
