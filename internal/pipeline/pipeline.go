package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rish742/telematics-Dashboard/internal/cache"
	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// Config holds the query and derivation settings for the pipeline.
type Config struct {
	// Table is the remote table to read from
	Table string
	// Limit caps the number of rows fetched per snapshot; 0 fetches all
	Limit int
	// Thresholds drive the event flag derivation
	Thresholds telematics.Thresholds
}

// Pipeline turns raw store rows into normalized, flag-annotated telemetry
// snapshots. Fetches for the same query are deduplicated and cached.
type Pipeline struct {
	store  telematics.RowStore
	cache  *cache.SnapshotCache
	cfg    Config
	logger zerolog.Logger
}

// New creates a pipeline reading from store and caching snapshots
func New(store telematics.RowStore, snapshots *cache.SnapshotCache, cfg Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		cache:  snapshots,
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// FetchAndNormalize returns the current snapshot, hitting the store only
// when the cache has no fresh entry. The bool reports whether the snapshot
// was served from cache.
func (p *Pipeline) FetchAndNormalize(ctx context.Context) (cache.Snapshot, bool, error) {
	q := p.query()

	snap, didFetch, err := p.cache.GetOrFetch(ctx, q.CacheKey(), p.fetch(q))
	if err != nil {
		return cache.Snapshot{}, false, fmt.Errorf("fetching snapshot: %w", err)
	}

	return snap, !didFetch, nil
}

// Refresh drops the cached snapshot and fetches a fresh one.
func (p *Pipeline) Refresh(ctx context.Context) (cache.Snapshot, error) {
	q := p.query()
	p.cache.Invalidate(q.CacheKey())

	snap, _, err := p.cache.GetOrFetch(ctx, q.CacheKey(), p.fetch(q))
	if err != nil {
		return cache.Snapshot{}, fmt.Errorf("refreshing snapshot: %w", err)
	}

	p.logger.Info().
		Int("records", len(snap.Records)).
		Msg("Snapshot refreshed")

	return snap, nil
}

// query fetches newest-first so the row limit keeps the most recent rows;
// normalization re-sorts them ascending.
func (p *Pipeline) query() telematics.Query {
	return telematics.Query{
		Table:      p.cfg.Table,
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      p.cfg.Limit,
	}
}

func (p *Pipeline) fetch(q telematics.Query) cache.FetchFunc {
	return func(ctx context.Context) ([]telematics.TelemetryRecord, error) {
		rows, err := p.store.QueryRows(ctx, q)
		if err != nil {
			return nil, err
		}

		records := telematics.DeriveAll(telematics.Normalize(rows), p.cfg.Thresholds)

		p.logger.Debug().
			Int("rows", len(rows)).
			Int("records", len(records)).
			Msg("Built snapshot")

		return records, nil
	}
}
