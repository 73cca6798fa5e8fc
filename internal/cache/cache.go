package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// Snapshot is one cached fetch result: an immutable ordered record sequence
// with an identity for log correlation.
type Snapshot struct {
	ID        string                       `json:"id"`
	Records   []telematics.TelemetryRecord `json:"records"`
	FetchedAt time.Time                    `json:"fetched_at"`
}

// FetchFunc produces a fresh record sequence for a cache key
type FetchFunc func(ctx context.Context) ([]telematics.TelemetryRecord, error)

type entry struct {
	snapshot Snapshot
	expires  time.Time
}

// SnapshotCache shares fetched snapshots across invocations within a TTL
// window. At most one fetch is in flight per key; callers arriving during a
// fetch wait on the pending result instead of issuing a duplicate request.
// It's safe for concurrent use by multiple goroutines
type SnapshotCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	group   singleflight.Group
	logger  zerolog.Logger
}

// New creates a snapshot cache. A ttl of zero or below disables caching:
// every call fetches fresh.
func New(ttl time.Duration, logger zerolog.Logger) *SnapshotCache {
	return &SnapshotCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		logger:  logger.With().Str("component", "snapshot_cache").Logger(),
	}
}

type flightResult struct {
	snapshot Snapshot
	cached   bool
}

// GetOrFetch returns the snapshot for key, fetching it if the cached one is
// absent or expired. The second return value reports whether this call hit
// the store (directly or by waiting on an in-flight fetch) rather than the
// cache. Fetch errors are never cached; the next call fetches again.
func (c *SnapshotCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (Snapshot, bool, error) {
	if c.ttl <= 0 {
		snap, err := c.freshSnapshot(ctx, fetch)
		return snap, true, err
	}

	if snap, ok := c.lookup(key); ok {
		return snap, false, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A completed flight may have stored the entry after our miss
		if snap, ok := c.lookup(key); ok {
			return flightResult{snapshot: snap, cached: true}, nil
		}

		snap, err := c.freshSnapshot(ctx, fetch)
		if err != nil {
			return flightResult{}, err
		}

		c.mu.Lock()
		c.entries[key] = entry{snapshot: snap, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()

		c.logger.Debug().
			Str("key", key).
			Str("snapshot_id", snap.ID).
			Int("records", len(snap.Records)).
			Msg("Cached fresh snapshot")
		return flightResult{snapshot: snap}, nil
	})
	if err != nil {
		return Snapshot{}, false, err
	}

	res := v.(flightResult)
	return res.snapshot, !res.cached, nil
}

// Invalidate drops the snapshot for key. The next call fetches fresh; an
// in-flight fetch still delivers to its waiters but is forgotten for later
// callers.
func (c *SnapshotCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.group.Forget(key)
	c.logger.Debug().Str("key", key).Msg("Invalidated snapshot")
}

// Len returns the number of stored snapshots, expired ones included.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SnapshotCache) lookup(key string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return Snapshot{}, false
	}
	return e.snapshot, true
}

func (c *SnapshotCache) freshSnapshot(ctx context.Context, fetch FetchFunc) (Snapshot, error) {
	records, err := fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:        uuid.New().String(),
		Records:   records,
		FetchedAt: time.Now(),
	}, nil
}
