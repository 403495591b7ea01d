// Package cache holds precomputed celestial objects for the default observer,
// keyed by local calendar date.
//
// The cache is warmed on start and rebuilt on a cron schedule shortly after
// local midnight. Days older than the retention window are evicted at each
// rebuild. Reads never block on a rebuild.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/celestial"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observer"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Schedule string // cron expression in the observer's zone (default: "1 0 * * *")
	KeepDays int    // past days retained (default: 2)
}

// Entry is one cached day.
type Entry struct {
	Day         string
	Objects     map[string]celestial.CelestialObject
	Failed      map[string]string
	GeneratedAt time.Time
}

// DailyCache is safe for concurrent use.
type DailyCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	config    Config
	assembler *celestial.Assembler
	obs       observer.Observer
	bodies    []body.Body
	logger    *slog.Logger
	now       func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	ready       atomic.Bool
	lastRebuild atomic.Pointer[rebuildInfo]
}

type rebuildInfo struct {
	at       time.Time
	duration time.Duration
	failed   int
}

// New creates a cache for obs over bodies.
func New(config Config, assembler *celestial.Assembler, obs observer.Observer, bodies []body.Body, logger *slog.Logger) *DailyCache {
	if config.Schedule == "" {
		config.Schedule = "1 0 * * *"
	}
	if config.KeepDays < 0 {
		config.KeepDays = 0
	}
	logger.Info("cache initialized",
		"schedule", config.Schedule,
		"keep_days", config.KeepDays,
		"observer", obs.String(),
		"bodies", len(bodies),
	)
	return &DailyCache{
		entries:   make(map[string]*Entry),
		config:    config,
		assembler: assembler,
		obs:       obs,
		bodies:    bodies,
		logger:    logger,
		now:       time.Now,
	}
}

// Observer returns the observer the cache is built for.
func (c *DailyCache) Observer() observer.Observer { return c.obs }

// DayKey returns the cache key for t: its local date in the observer's zone.
func (c *DailyCache) DayKey(t time.Time) string {
	return t.In(c.obs.Location()).Format(time.DateOnly)
}

// Get returns the cached entry for t's local day, or nil.
func (c *DailyCache) Get(t time.Time) *Entry {
	key := c.DayKey(t)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// Ready reports whether the warmup build has completed.
func (c *DailyCache) Ready() bool { return c.ready.Load() }

// Rebuild computes all bodies for t's local day and stores the result. It
// fails only when every body failed.
func (c *DailyCache) Rebuild(ctx context.Context, t time.Time) (*Entry, error) {
	start := time.Now()
	results := c.assembler.ComputeAll(ctx, c.obs, c.bodies, t)
	objects, failed := celestial.Collect(results)
	duration := time.Since(start)

	metrics.ObserveCacheRebuildDuration(duration)
	metrics.AddCacheRebuildErrors(len(failed))
	c.lastRebuild.Store(&rebuildInfo{at: c.now(), duration: duration, failed: len(failed)})

	if len(objects) == 0 && len(c.bodies) > 0 {
		return nil, fmt.Errorf("rebuilding %s: all %d bodies failed", c.DayKey(t), len(c.bodies))
	}

	entry := &Entry{
		Day:         c.DayKey(t),
		Objects:     objects,
		Failed:      failed,
		GeneratedAt: c.now(),
	}
	c.put(entry)

	c.logger.Info("cache day built",
		"day", entry.Day,
		"objects", len(objects),
		"failed", len(failed),
		"duration_ms", duration.Milliseconds(),
	)
	return entry, nil
}

// put stores an entry. Caller must not hold mu.
func (c *DailyCache) put(e *Entry) {
	c.mu.Lock()
	c.entries[e.Day] = e
	count := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(count)
}

// evictExpired removes days older than KeepDays before today.
func (c *DailyCache) evictExpired() int {
	cutoff := c.DayKey(c.now().AddDate(0, 0, -c.config.KeepDays))
	var removed int

	c.mu.Lock()
	for day := range c.entries {
		// ISO dates order lexically.
		if day < cutoff {
			delete(c.entries, day)
			removed++
		}
	}
	count := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(count)
	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// Stats returns current cache statistics.
func (c *DailyCache) Stats() CacheStats {
	c.mu.RLock()
	days := make([]string, 0, len(c.entries))
	for day := range c.entries {
		days = append(days, day)
	}
	c.mu.RUnlock()
	sort.Strings(days)

	stats := CacheStats{
		Entries:   len(days),
		Days:      days,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Ready:     c.ready.Load(),
		Schedule:  c.config.Schedule,
	}
	if info := c.lastRebuild.Load(); info != nil {
		stats.LastRebuild = info.at
		stats.LastRebuildMs = info.duration.Milliseconds()
		stats.LastRebuildFailed = info.failed
	}
	return stats
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Entries           int       `json:"entries"`
	Days              []string  `json:"days"`
	Hits              int64     `json:"hits"`
	Misses            int64     `json:"misses"`
	Evictions         int64     `json:"evictions"`
	Ready             bool      `json:"ready"`
	Schedule          string    `json:"schedule"`
	LastRebuild       time.Time `json:"last_rebuild"`
	LastRebuildMs     int64     `json:"last_rebuild_ms"`
	LastRebuildFailed int       `json:"last_rebuild_failed"`
}
