// Package cache keeps the read side of the record collection in memory.
package cache

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/logging"
)

// Records caches the full record list of a store.
// Only raw records are held; aggregates are always recomputed by callers.
type Records struct {
	store generic.RecordStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	all      []generic.ActivityRecord
	loadedAt time.Time
	valid    bool
	gen      uint64

	group singleflight.Group
}

// NewRecords wraps store. A ttl of zero keeps entries until invalidated.
func NewRecords(store generic.RecordStore, ttl time.Duration) *Records {
	return &Records{store: store, ttl: ttl, now: time.Now}
}

// All returns every record, loading from the store on a miss.
// Concurrent misses share one load.
func (c *Records) All(ctx context.Context) ([]generic.ActivityRecord, error) {
	c.mu.RLock()
	if c.fresh() {
		out := slices.Clone(c.all)
		c.mu.RUnlock()
		return out, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	v, err, _ := c.group.Do("records:"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		recs, err := c.store.List(ctx, generic.RecordFilter{})
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.all = recs
			c.loadedAt = c.now()
			c.valid = true
		}
		c.mu.Unlock()
		logging.C(ctx).Debug().Int("records", len(recs)).Msg("record cache loaded")
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]generic.ActivityRecord)), nil
}

// List filters the cached records.
func (c *Records) List(ctx context.Context, filter generic.RecordFilter) ([]generic.ActivityRecord, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	if filter == (generic.RecordFilter{}) {
		return all, nil
	}
	out := all[:0]
	for _, r := range all {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Invalidate drops the cached list. Loads already in flight are discarded.
func (c *Records) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.valid = false
	c.all = nil
	c.gen++
	c.mu.Unlock()
	logging.C(ctx).Debug().Msg("record cache invalidated")
}

// fresh must be called with mu held.
func (c *Records) fresh() bool {
	if !c.valid {
		return false
	}
	return c.ttl <= 0 || c.now().Sub(c.loadedAt) < c.ttl
}
