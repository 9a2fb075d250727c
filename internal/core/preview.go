package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// PreviewSummary counts what an import of the file would store.
type PreviewSummary struct {
	TotalRows   int `json:"totalRows"`
	ValidRows   int `json:"validRows"`
	InvalidRows int `json:"invalidRows"`
	SkippedRows int `json:"skippedRows"`
}

// RowPreview is one sampled data row. Typed holds the values coerced to
// their column types.
type RowPreview struct {
	LineNumber int               `json:"lineNumber"`
	Values     map[string]string `json:"values"`
	Typed      map[string]any    `json:"typed"`
}

// ErrorPreview is one sampled row that would be stored with errors.
type ErrorPreview struct {
	LineNumber int               `json:"lineNumber"`
	Values     map[string]string `json:"values"`
	Errors     []ValidationError `json:"errors"`
}

// PreviewResponse is the read-only analysis of an upload.
type PreviewResponse struct {
	Summary          PreviewSummary   `json:"summary"`
	ValidSamples     []RowPreview     `json:"validSamples"`
	ErrorSamples     []ErrorPreview   `json:"errorSamples"`
	ErrorsByColumn   map[string]int64 `json:"errorsByColumn"`
	IgnoredHeaders   []string         `json:"ignoredHeaders,omitempty"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
}

// Sample limits
const (
	maxValidSamples = 10
	maxErrorSamples = 20
)

// PreviewImport validates every row of rr against template id without
// writing anything. It reports the same counts Import would, plus a sample
// of valid and failing rows. Line numbers are 1-based and count the header.
func (s *Service) PreviewImport(ctx context.Context, id string, rr RowReader) (*PreviewResponse, error) {
	start := time.Now()

	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	header, err := rr.Header()
	if err != nil {
		return nil, err
	}
	positions, ignored := matchHeader(header, t.Schema.Labels())
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: no matching columns in header", ErrInvalidSpecification)
	}

	v := NewRecordValidator(t.Schema)
	resp := &PreviewResponse{
		ValidSamples:   []RowPreview{},
		ErrorSamples:   []ErrorPreview{},
		ErrorsByColumn: map[string]int64{},
		IgnoredHeaders: ignored,
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, classifyContext(err)
		}
		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		resp.Summary.TotalRows++

		fields, blank := rowFields(row, positions)
		if blank {
			resp.Summary.SkippedRows++
			continue
		}

		typed, errs := v.Coerce(fields)
		if len(errs) == 0 {
			resp.Summary.ValidRows++
			if len(resp.ValidSamples) < maxValidSamples {
				resp.ValidSamples = append(resp.ValidSamples, RowPreview{
					LineNumber: line,
					Values:     fields,
					Typed:      typed.Values(),
				})
			}
			continue
		}

		resp.Summary.InvalidRows++
		for _, e := range errs {
			resp.ErrorsByColumn[e.Key]++
		}
		if len(resp.ErrorSamples) < maxErrorSamples {
			resp.ErrorSamples = append(resp.ErrorSamples, ErrorPreview{
				LineNumber: line,
				Values:     fields,
				Errors:     errs,
			})
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}
