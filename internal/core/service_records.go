package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/importcheck/internal/logging"
)

// ValidateFields validates fields against template id without storing them.
func (s *Service) ValidateFields(ctx context.Context, id string, fields map[string]string) ([]ValidationError, error) {
	if fields == nil {
		return nil, invalid("missing fields")
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return ValidateRecord(fields, t.Schema), nil
}

// CoerceFields validates fields against template id and returns the typed
// values of the columns that passed.
func (s *Service) CoerceFields(ctx context.Context, id string, fields map[string]string) (TypedRecord, []ValidationError, error) {
	if fields == nil {
		return nil, nil, invalid("missing fields")
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	typed, errs := Coerce(fields, t.Schema)
	return typed, errs, nil
}

// ValidateCell validates one (column, value) pair against template id. It
// returns nil when the value passes.
func (s *Service) ValidateCell(ctx context.Context, id, label, value string) (*ValidationError, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewRecordValidator(t.Schema)
	if !v.HasColumn(label) {
		return nil, invalid("unknown column %q", label)
	}
	return v.ValidateField(label, value), nil
}

// ListRecords returns the records of template id matching f. A template
// whose collection has not been created yet has no records.
func (s *Service) ListRecords(ctx context.Context, id string, f RecordFilter) ([]Record, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0)
	err = s.store.Find(ctx, t.CollectionName, f, func(r Record) error {
		out = append(out, r)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// CountRecords counts the records of template id matching f's validity
// condition. Limit and offset are ignored.
func (s *Service) CountRecords(ctx context.Context, id string, f RecordFilter) (int64, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := s.store.CountDocuments(ctx, t.CollectionName, RecordFilter{Valid: f.Valid})
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// InvalidRecords returns every invalid record of t.
func (s *Service) InvalidRecords(ctx context.Context, t Template) ([]Record, error) {
	invalidOnly := false
	return s.ListRecords(ctx, t.ID, RecordFilter{Valid: &invalidOnly})
}

// UpdateRecord applies fields to record recordID, revalidates it and stores
// it in one write. Labels present in fields replace the stored values; an
// empty string clears a value.
func (s *Service) UpdateRecord(ctx context.Context, id, recordID string, fields map[string]string) (Record, error) {
	if fields == nil {
		return Record{}, invalid("missing fields")
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.store.FindOne(ctx, t.CollectionName, recordID)
	if err != nil {
		return Record{}, err
	}

	if rec.Fields == nil {
		rec.Fields = make(map[string]string, len(fields))
	}
	v := NewRecordValidator(t.Schema)
	for label, value := range fields {
		if !v.HasColumn(label) {
			return Record{}, invalid("unknown column %q", label)
		}
		rec.Fields[label] = value
	}
	rec.ValidationData = v.Validate(rec.Fields)
	rec.UpdatedAt = s.now()

	if err := s.store.UpdateOne(ctx, t.CollectionName, rec); err != nil {
		return Record{}, fmt.Errorf("update record: %w", err)
	}
	s.invalidate(ctx, t.CollectionName)
	s.recordActivity(ctx, t.CollectionName, ActionEditRecord, rec.ID)
	return rec, nil
}

// DeleteRecord removes record recordID from template id's collection.
func (s *Service) DeleteRecord(ctx context.Context, id, recordID string) error {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOne(ctx, t.CollectionName, recordID); err != nil {
		return err
	}
	s.invalidate(ctx, t.CollectionName)
	s.recordActivity(ctx, t.CollectionName, ActionDeleteRecord, recordID)
	return nil
}

// Revalidate recomputes the validation data of every record of template id.
func (s *Service) Revalidate(ctx context.Context, id string) (RevalidateResult, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return RevalidateResult{}, err
	}
	return s.revalidate(ctx, t)
}

// revalidate scans t's collection, recomputes validation data in parallel
// and rewrites only the records whose error list changed. Each rewrite is
// one atomic update.
func (s *Service) revalidate(ctx context.Context, t Template) (RevalidateResult, error) {
	v := NewRecordValidator(t.Schema)
	var res RevalidateResult

	var (
		mu      sync.Mutex
		changed []Record
	)
	chunks := make(chan []Record, s.opts.RevalidateWorkers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		chunk := make([]Record, 0, s.aggregator.chunkSize)
		err := s.store.Find(gctx, t.CollectionName, RecordFilter{}, func(r Record) error {
			res.Scanned++
			chunk = append(chunk, r)
			if len(chunk) < s.aggregator.chunkSize {
				return nil
			}
			select {
			case chunks <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
			chunk = make([]Record, 0, s.aggregator.chunkSize)
			return nil
		})
		if errors.Is(err, ErrNotFound) {
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
	for w := 0; w < s.opts.RevalidateWorkers; w++ {
		g.Go(func() error {
			for chunk := range chunks {
				for _, r := range chunk {
					errs := v.Validate(r.Fields)
					if EqualErrors(errs, r.ValidationData) {
						continue
					}
					r.ValidationData = errs
					mu.Lock()
					changed = append(changed, r)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("scan %s: %w", t.CollectionName, classifyContext(err))
	}

	now := s.now()
	var updated atomic.Int64
	ug, uctx := errgroup.WithContext(ctx)
	ug.SetLimit(s.opts.RevalidateWorkers)
	for _, r := range changed {
		r.UpdatedAt = now
		ug.Go(func() error {
			if err := s.store.UpdateOne(uctx, t.CollectionName, r); err != nil {
				return err
			}
			updated.Add(1)
			return nil
		})
	}
	err := ug.Wait()
	res.Changed = int(updated.Load())

	// Committed updates stay committed when a later one fails.
	if len(changed) > 0 {
		s.invalidate(ctx, t.CollectionName)
	}
	if err != nil {
		return res, fmt.Errorf("store revalidated records (%d of %d written): %w",
			res.Changed, len(changed), classifyContext(err))
	}
	logging.WithFields(ctx, "template_id", t.ID, "collection", t.CollectionName).
		Info("collection revalidated", "scanned", res.Scanned, "changed", res.Changed)
	s.recordActivity(ctx, t.CollectionName, ActionRevalidate, "")
	return res, nil
}
