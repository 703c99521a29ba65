package worldmodel

import (
	"context"
	"sync"
	"time"

	"mizan/internal/logging"

	"golang.org/x/sync/singleflight"
)

// Default TTLs for the three cache slots.
const (
	DefaultLoopTTL  = 300 * time.Second
	DefaultStatsTTL = 600 * time.Second
	DefaultQueryTTL = 60 * time.Second
)

// LoopCache is the only shared mutable state across concurrent requests:
// three independently TTL'd slots (persisted loops, graph stats, a generic
// keyed query cache) behind one mutex. Writes are rare relative to reads, so
// the coarse lock is acceptable. Constructed once at process start and passed
// by handle into every call site; there is no package-level instance.
type LoopCache struct {
	mu sync.Mutex

	loops slot[[]DetectedLoop]
	stats slot[GraphStats]
	query map[string]slot[interface{}]

	loopTTL  time.Duration
	statsTTL time.Duration
	queryTTL time.Duration

	// version increments on every invalidation. Observability only; never
	// used for correctness.
	version uint64

	// flight collapses concurrent persisted-loop loads on a cold cache.
	flight singleflight.Group

	// now is swappable in tests.
	now func() time.Time
}

type slot[T any] struct {
	set       bool
	value     T
	createdAt time.Time
}

// NewLoopCache creates a cache with the given TTLs; non-positive values fall
// back to the defaults.
func NewLoopCache(loopTTL, statsTTL, queryTTL time.Duration) *LoopCache {
	if loopTTL <= 0 {
		loopTTL = DefaultLoopTTL
	}
	if statsTTL <= 0 {
		statsTTL = DefaultStatsTTL
	}
	if queryTTL <= 0 {
		queryTTL = DefaultQueryTTL
	}
	return &LoopCache{
		query:    make(map[string]slot[interface{}]),
		loopTTL:  loopTTL,
		statsTTL: statsTTL,
		queryTTL: queryTTL,
		now:      time.Now,
	}
}

// GetLoops returns the cached loop list, or nil/false on miss or expiry.
// Expired entries are evicted lazily here rather than by a sweeper.
func (c *LoopCache) GetLoops() ([]DetectedLoop, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loops.set {
		return nil, false
	}
	if c.now().Sub(c.loops.createdAt) > c.loopTTL {
		c.loops = slot[[]DetectedLoop]{}
		logging.CacheDebug("LoopCache: loops slot expired")
		return nil, false
	}
	return c.loops.value, true
}

// SetLoops stores the loop list.
func (c *LoopCache) SetLoops(loops []DetectedLoop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loops = slot[[]DetectedLoop]{set: true, value: loops, createdAt: c.now()}
	logging.CacheDebug("LoopCache: stored %d loops", len(loops))
}

// GetStats returns the cached graph statistics.
func (c *LoopCache) GetStats() (GraphStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stats.set {
		return GraphStats{}, false
	}
	if c.now().Sub(c.stats.createdAt) > c.statsTTL {
		c.stats = slot[GraphStats]{}
		logging.CacheDebug("LoopCache: stats slot expired")
		return GraphStats{}, false
	}
	return c.stats.value, true
}

// SetStats stores graph statistics.
func (c *LoopCache) SetStats(stats GraphStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = slot[GraphStats]{set: true, value: stats, createdAt: c.now()}
}

// GetQuery returns a cached keyed value.
func (c *LoopCache) GetQuery(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.query[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.createdAt) > c.queryTTL {
		delete(c.query, key)
		return nil, false
	}
	return entry.value, true
}

// SetQuery stores a keyed value.
func (c *LoopCache) SetQuery(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query[key] = slot[interface{}]{set: true, value: value, createdAt: c.now()}
}

// InvalidateLoops clears the loops slot.
func (c *LoopCache) InvalidateLoops() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loops = slot[[]DetectedLoop]{}
	c.version++
	logging.Cache("LoopCache: loops invalidated (version %d)", c.version)
}

// InvalidateStats clears the stats slot.
func (c *LoopCache) InvalidateStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = slot[GraphStats]{}
	c.version++
	logging.Cache("LoopCache: stats invalidated (version %d)", c.version)
}

// InvalidateAll clears every slot.
func (c *LoopCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loops = slot[[]DetectedLoop]{}
	c.stats = slot[GraphStats]{}
	c.query = make(map[string]slot[interface{}])
	c.version++
	logging.Cache("LoopCache: all slots invalidated (version %d)", c.version)
}

// Version returns the invalidation counter.
func (c *LoopCache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// GetOrLoadLoops returns cached loops, loading persisted loops through the
// provided function on a full miss. Concurrent misses collapse into one load.
// Live cycle detection never runs here; the hot path only reads loops mined
// offline and persisted.
func (c *LoopCache) GetOrLoadLoops(ctx context.Context, load func() ([]DetectedLoop, error)) ([]DetectedLoop, error) {
	if loops, ok := c.GetLoops(); ok {
		return loops, nil
	}

	result, err, _ := c.flight.Do("loops", func() (interface{}, error) {
		// Re-check under the flight: another caller may have filled the slot.
		if loops, ok := c.GetLoops(); ok {
			return loops, nil
		}
		loops, err := load()
		if err != nil {
			return nil, err
		}
		c.SetLoops(loops)
		return loops, nil
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return result.([]DetectedLoop), nil
}
