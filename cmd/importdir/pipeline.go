package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/report"
)

type dirOptions struct {
	dir        string
	templateID string
	apply      bool
	doneDir    string
	reportPath string
	keepGoing  bool
}

// dirSummary totals the files of one run.
type dirSummary struct {
	Files       int
	Failed      int
	TotalRows   int
	ValidRows   int
	InvalidRows int
}

// uploadFiles lists the importable files directly under dir, sorted by name.
func uploadFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".xlsx":
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// openRows opens path as a row stream chosen by extension.
func openRows(path string, maxBytes int64) (core.RowReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		xr, err := report.NewXLSXRowReader(f, maxBytes)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return xr, closers{xr, f}, nil
	}
	return core.NewCSVRowReader(f, maxBytes), f, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// processDir previews or imports each file in turn. With apply set, a file
// that imports cleanly is moved into opts.doneDir so a rerun skips it.
func processDir(ctx context.Context, service *core.Service, opts dirOptions) (dirSummary, error) {
	var sum dirSummary

	files, err := uploadFiles(opts.dir)
	if err != nil {
		return sum, err
	}
	if len(files) == 0 {
		slog.Warn("no upload files found", "dir", opts.dir)
		return sum, nil
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("operation cancelled: %w", err)
		}

		sum.Files++
		path := filepath.Join(opts.dir, name)
		log := slog.With("file", name)

		counts, err := processFile(ctx, service, opts, path)
		if err != nil {
			sum.Failed++
			log.Error("file failed", "error", err, "code", core.MapError(err).Code)
			if !opts.keepGoing {
				return sum, fmt.Errorf("%s: %w", name, err)
			}
			continue
		}

		sum.TotalRows += counts.TotalRows
		sum.ValidRows += counts.ValidRows
		sum.InvalidRows += counts.InvalidRows
		log.Info("file processed",
			"rows", counts.TotalRows,
			"valid", counts.ValidRows,
			"invalid", counts.InvalidRows,
			"skipped", counts.SkippedRows,
		)

		if opts.apply {
			if err := moveDone(opts.dir, opts.doneDir, name); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

func processFile(ctx context.Context, service *core.Service, opts dirOptions, path string) (core.PreviewSummary, error) {
	rr, closer, err := openRows(path, service.MaxFileSize())
	if err != nil {
		return core.PreviewSummary{}, err
	}
	defer closer.Close()

	if !opts.apply {
		preview, err := service.PreviewImport(ctx, opts.templateID, rr)
		if err != nil {
			return core.PreviewSummary{}, err
		}
		for _, e := range preview.ErrorSamples {
			slog.Debug("invalid row", "file", filepath.Base(path), "line", e.LineNumber, "errors", len(e.Errors))
		}
		return preview.Summary, nil
	}

	res, err := service.Import(ctx, opts.templateID, filepath.Base(path), rr)
	if err != nil {
		return core.PreviewSummary{}, err
	}
	if len(res.IgnoredHeaders) > 0 {
		slog.Warn("ignored headers", "file", filepath.Base(path), "headers", res.IgnoredHeaders)
	}
	return core.PreviewSummary{
		TotalRows:   res.TotalRows,
		ValidRows:   res.ValidRows,
		InvalidRows: res.InvalidRows,
		SkippedRows: res.SkippedRows,
	}, nil
}

func moveDone(dir, doneDir, name string) error {
	target := filepath.Join(dir, doneDir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if err := os.Rename(filepath.Join(dir, name), filepath.Join(target, name)); err != nil {
		return fmt.Errorf("move imported file %s: %w", name, err)
	}
	return nil
}

// writeReport renders every invalid record of the template to path.
func writeReport(ctx context.Context, service *core.Service, templateID, path string) error {
	t, err := service.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	recs, err := service.InvalidRecords(ctx, t)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteErrorReport(f, t.Schema.Labels(), recs); err != nil {
		f.Close()
		return fmt.Errorf("render error report: %w", err)
	}
	return f.Close()
}
