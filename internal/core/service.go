package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/importcheck/internal/logging"
	"github.com/JonMunkholm/importcheck/internal/schema"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	DefaultDateFormat string

	AggregateWorkers   int
	AggregateChunkSize int
	StatusConcurrency  int

	MaxConcurrentImports int
	ImportWait           time.Duration
	ImportBatchSize      int
	MaxFileSize          int64

	RevalidateWorkers int
}

const (
	DefaultStatusConcurrency = 8
	DefaultImportBatchSize   = 1000
	DefaultRevalidateWorkers = 4
)

func (o Options) withDefaults() Options {
	if o.DefaultDateFormat == "" {
		o.DefaultDateFormat = schema.DefaultDateFormat
	}
	if o.StatusConcurrency <= 0 {
		o.StatusConcurrency = DefaultStatusConcurrency
	}
	if o.ImportBatchSize <= 0 {
		o.ImportBatchSize = DefaultImportBatchSize
	}
	if o.RevalidateWorkers <= 0 {
		o.RevalidateWorkers = DefaultRevalidateWorkers
	}
	return o
}

// Service is the entry point for template, record, import and reporting
// operations. It is safe for concurrent use.
type Service struct {
	store      Store
	cache      SnapshotCache
	aggregator *Aggregator
	limiter    *ImportLimiter
	opts       Options

	now   func() time.Time
	newID func() string
}

// NewService wires a Service over store. cache may be nil.
func NewService(store Store, cache SnapshotCache, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:      store,
		cache:      cache,
		aggregator: NewAggregator(store, opts.AggregateWorkers, opts.AggregateChunkSize),
		limiter:    NewImportLimiter(opts.MaxConcurrentImports, opts.ImportWait),
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.NewString() },
	}
}

// Ping checks that storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Limiter exposes the import limiter for health reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// ComputeAggregate returns the snapshot of collection, from the cache when
// one is configured and warm. Cache failures are logged and ignored. A
// snapshot is cached only if no write invalidated the collection while it
// was being computed.
func (s *Service) ComputeAggregate(ctx context.Context, collection string) (AggregateSnapshot, error) {
	log := logging.WithFields(ctx, "collection", collection)

	var (
		gen       uint64
		cacheable bool
	)
	if s.cache != nil {
		snap, ok, err := s.cache.Load(ctx, collection)
		if err != nil {
			log.Warn("snapshot cache load failed", "error", err)
		} else if ok {
			return snap, nil
		}

		if gen, err = s.cache.Generation(ctx, collection); err != nil {
			log.Warn("snapshot cache generation failed", "error", err)
		} else {
			cacheable = true
		}
	}

	start := time.Now()
	snap, err := s.aggregator.Compute(ctx, collection)
	if err != nil {
		return AggregateSnapshot{}, err
	}
	log.Debug("aggregate computed",
		"total", snap.TotalRecords,
		"valid", snap.ValidRecords,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if cacheable {
		stored, err := s.cache.Store(ctx, collection, gen, snap)
		switch {
		case err != nil:
			log.Warn("snapshot cache store failed", "error", err)
		case !stored:
			log.Debug("snapshot not cached, collection changed during scan")
		}
	}
	return snap, nil
}

// invalidate drops the cached snapshot after a write to collection.
func (s *Service) invalidate(ctx context.Context, collection string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, collection); err != nil {
		logging.WithFields(ctx, "collection", collection).Warn("snapshot cache invalidate failed", "error", err)
	}
}
