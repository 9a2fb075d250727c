package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/importcheck/internal/logging"
)

// MaxFileSize returns the configured upload byte limit (0 means unlimited).
func (s *Service) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// Import reads every row from rr into template id's collection. Each row is
// validated as it is read and stored together with its validation data, so
// invalid rows are kept and reported rather than rejected.
//
// Headers are matched to column labels case-insensitively; headers that
// match no column are ignored and reported. Rows whose cells are all blank
// are skipped. Rows are written in batches, each batch one atomic insert.
func (s *Service) Import(ctx context.Context, id, fileName string, rr RowReader) (ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{}, err
	}
	defer s.limiter.Release()

	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return ImportResult{}, err
	}

	start := time.Now()
	res := ImportResult{
		ImportID:   s.newID(),
		TemplateID: t.ID,
		FileName:   fileName,
	}
	log := logging.WithFields(ctx,
		"import_id", res.ImportID,
		"template_id", t.ID,
		"file", fileName,
	)

	header, err := rr.Header()
	if err != nil {
		return res, err
	}
	positions, ignored := matchHeader(header, t.Schema.Labels())
	res.IgnoredHeaders = ignored
	if len(positions) == 0 {
		return res, fmt.Errorf("%w: no matching columns in header", ErrInvalidSpecification)
	}

	if err := s.store.EnsureCollection(ctx, t.CollectionName); err != nil {
		return res, fmt.Errorf("ensure collection: %w", err)
	}

	v := NewRecordValidator(t.Schema)
	batch := make([]Record, 0, s.opts.ImportBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.InsertMany(ctx, t.CollectionName, batch); err != nil {
			return fmt.Errorf("insert batch: %w", classifyContext(err))
		}
		res.Inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return s.finishImport(ctx, t, res, start, classifyContext(err))
		}

		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.finishImport(ctx, t, res, start, err)
		}
		res.TotalRows++

		fields, blank := rowFields(row, positions)
		if blank {
			res.SkippedRows++
			continue
		}

		now := s.now()
		rec := Record{
			ID:             s.newID(),
			Fields:         fields,
			ValidationData: v.Validate(fields),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if rec.Valid() {
			res.ValidRows++
		} else {
			res.InvalidRows++
		}

		batch = append(batch, rec)
		if len(batch) >= s.opts.ImportBatchSize {
			if err := flush(); err != nil {
				return s.finishImport(ctx, t, res, start, err)
			}
		}
	}

	if err := flush(); err != nil {
		return s.finishImport(ctx, t, res, start, err)
	}

	res, err = s.finishImport(ctx, t, res, start, nil)
	log.Info("import completed",
		"rows", res.TotalRows,
		"valid", res.ValidRows,
		"invalid", res.InvalidRows,
		"skipped", res.SkippedRows,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, err
}

// finishImport invalidates the snapshot and logs activity for whatever was
// inserted, then returns res with cause.
func (s *Service) finishImport(ctx context.Context, t Template, res ImportResult, start time.Time, cause error) (ImportResult, error) {
	res.Duration = time.Since(start)
	if res.Inserted > 0 {
		// ctx may already be cancelled; the writes it guarded are committed.
		bg := context.WithoutCancel(ctx)
		s.invalidate(bg, t.CollectionName)
		s.recordActivity(bg, t.CollectionName, ActionImport, "")
	}
	if cause != nil {
		logging.WithFields(ctx, "import_id", res.ImportID, "template_id", t.ID).
			Error("import failed", "inserted", res.Inserted, "error", cause)
	}
	return res, cause
}

// matchHeader maps column labels to header positions, case-insensitively.
// It returns the headers that match no label.
func matchHeader(header, labels []string) (map[string]int, []string) {
	idx := headerIndex(header)
	positions := make(map[string]int, len(labels))
	matched := make(map[int]struct{}, len(labels))
	for _, label := range labels {
		if pos, ok := idx[strings.ToLower(label)]; ok {
			positions[label] = pos
			matched[pos] = struct{}{}
		}
	}

	var ignored []string
	for i, h := range header {
		if _, ok := matched[i]; ok {
			continue
		}
		if c := CleanCell(h); c != "" {
			ignored = append(ignored, c)
		}
	}
	return positions, ignored
}

// rowFields extracts the matched cells of row. blank is true when every
// matched cell is empty.
func rowFields(row []string, positions map[string]int) (map[string]string, bool) {
	fields := make(map[string]string, len(positions))
	blank := true
	for label, pos := range positions {
		if pos >= len(row) {
			continue
		}
		v := CleanCell(row[pos])
		if v != "" {
			blank = false
		}
		fields[label] = v
	}
	return fields, blank
}
