package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/importcheck/internal/core"
)

const (
	errorSheet   = "Errors"
	summarySheet = "Summary"
)

// WriteErrorReport writes an XLSX workbook listing recs, one row per
// record: the record id, one cell per label, then the record's validation
// errors joined as "Key: reason; Key: reason". A second sheet counts the
// errors per key, labels first in schema order.
func WriteErrorReport(w io.Writer, labels []string, recs []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", errorSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, 0, len(labels)+2)
	header = append(header, "Record ID")
	for _, l := range labels {
		header = append(header, l)
	}
	header = append(header, "Errors")
	if err := f.SetSheetRow(errorSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(errorSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, rec := range recs {
		row := make([]any, 0, len(header))
		row = append(row, rec.ID)
		for _, l := range labels {
			row = append(row, rec.Fields[l])
		}
		row = append(row, formatErrors(rec.ValidationData))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(errorSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(errorSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := writeSummary(f, labels, recs, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, labels []string, recs []core.Record, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	snap := core.ComputeRecords(recs)

	rows := [][]any{{"Column", "Errors"}}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
		if n := snap.ErrorCountByColumn[l]; n > 0 {
			rows = append(rows, []any{l, n})
		}
	}
	var other []string
	for k := range snap.ErrorCountByColumn {
		if !seen[k] {
			other = append(other, k)
		}
	}
	sort.Strings(other)
	for _, k := range other {
		rows = append(rows, []any{k, snap.ErrorCountByColumn[k]})
	}
	rows = append(rows, []any{"Invalid records", snap.ErrorRecords})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return nil
}

func formatErrors(errs []core.ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		reason := e.Reason()
		if reason == "" {
			reason = "invalid"
		}
		if e.Key == "" {
			parts = append(parts, reason)
			continue
		}
		parts = append(parts, e.Key+": "+reason)
	}
	return strings.Join(parts, "; ")
}
