package core

// aggregate.go computes AggregateSnapshots.
//
// One Find over the collection is the consistent read. Records are handed
// to a bounded pool of workers in chunks; each worker reduces its chunks in
// two passes (classify records, then fold error keys into buckets) and the
// partial snapshots are merged once the scan finishes. Scan order never
// affects the result.

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultAggregateWorkers   = 4
	DefaultAggregateChunkSize = 500
)

// Aggregator computes snapshots over a RecordStore.
type Aggregator struct {
	records   RecordStore
	workers   int
	chunkSize int
}

// NewAggregator returns an Aggregator. Non-positive workers or chunkSize
// fall back to the defaults.
func NewAggregator(records RecordStore, workers, chunkSize int) *Aggregator {
	if workers <= 0 {
		workers = DefaultAggregateWorkers
	}
	if chunkSize <= 0 {
		chunkSize = DefaultAggregateChunkSize
	}
	return &Aggregator{records: records, workers: workers, chunkSize: chunkSize}
}

// Compute returns the snapshot of collection. A collection that does not
// exist yet yields the zero snapshot, not an error.
func (a *Aggregator) Compute(ctx context.Context, collection string) (AggregateSnapshot, error) {
	exists, err := a.records.CollectionExists(ctx, collection)
	if err != nil {
		return AggregateSnapshot{}, fmt.Errorf("check collection %s: %w", collection, classifyContext(err))
	}
	if !exists {
		return emptySnapshot(), nil
	}

	chunks := make(chan []Record, a.workers)
	partials := make([]AggregateSnapshot, a.workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(chunks)

		chunk := make([]Record, 0, a.chunkSize)
		err := a.records.Find(gctx, collection, RecordFilter{}, func(r Record) error {
			chunk = append(chunk, r)
			if len(chunk) < a.chunkSize {
				return nil
			}
			select {
			case chunks <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
			chunk = make([]Record, 0, a.chunkSize)
			return nil
		})
		if errors.Is(err, ErrNotFound) {
			// Dropped between the existence check and the scan.
			return nil
		}
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			select {
			case chunks <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < a.workers; w++ {
		partials[w] = emptySnapshot()
		g.Go(func() error {
			for chunk := range chunks {
				partials[w].merge(reduceChunk(chunk))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return AggregateSnapshot{}, fmt.Errorf("aggregate %s: %w", collection, classifyContext(err))
	}

	snap := emptySnapshot()
	for _, p := range partials {
		snap.merge(p)
	}
	return snap, nil
}

// ComputeRecords reduces an in-memory record slice. It is the sequential
// form of Compute and is used where records are already loaded.
func ComputeRecords(records []Record) AggregateSnapshot {
	return reduceChunk(records)
}

// reduceChunk is the two-pass reduction over one chunk.
func reduceChunk(records []Record) AggregateSnapshot {
	snap := emptySnapshot()

	// Pass 1: classify.
	for _, r := range records {
		snap.TotalRecords++
		if r.Valid() {
			snap.ValidRecords++
		} else {
			snap.ErrorRecords++
		}
	}

	// Pass 2: fold every error under its key.
	for _, r := range records {
		for _, e := range r.ValidationData {
			snap.ErrorCountByColumn[e.Key]++
		}
	}
	return snap
}
