package report

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/importcheck/internal/core"
)

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestXLSXRowReader(t *testing.T) {
	data := workbook(t,
		[]any{"Name", "Age"},
		[]any{"Ann", 30},
		[]any{"Bob", "abc"},
	)

	rr, err := NewXLSXRowReader(bytes.NewReader(data), 0)
	if err != nil {
		t.Fatalf("NewXLSXRowReader() error = %v", err)
	}
	defer rr.Close()

	header, err := rr.Header()
	if err != nil {
		t.Fatalf("Header() error = %v", err)
	}
	if !reflect.DeepEqual(header, []string{"Name", "Age"}) {
		t.Errorf("Header() = %v, want [Name Age]", header)
	}

	var rows [][]string
	for {
		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		rows = append(rows, row)
	}
	want := [][]string{{"Ann", "30"}, {"Bob", "abc"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestXLSXRowReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		max     int64
		wantErr string
	}{
		{"empty upload", nil, 0, "empty file"},
		{"not a workbook", []byte("name,age\nann,3\n"), 0, "invalid xlsx"},
		{"too large", workbook(t, []any{"a"}), 10, "file too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXLSXRowReader(bytes.NewReader(tt.data), tt.max)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewXLSXRowReader() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestXLSXRowReader_EmptySheet(t *testing.T) {
	rr, err := NewXLSXRowReader(bytes.NewReader(workbook(t)), 0)
	if err != nil {
		t.Fatalf("NewXLSXRowReader() error = %v", err)
	}
	defer rr.Close()
	if _, err := rr.Header(); err == nil || err.Error() != "empty file" {
		t.Errorf("Header() error = %v, want empty file", err)
	}
}

func TestWriteErrorReport(t *testing.T) {
	recs := []core.Record{
		{
			ID:     "r1",
			Fields: map[string]string{"Name": "", "Age": "x"},
			ValidationData: []core.ValidationError{
				core.NewValidationError("Name", "Name is required"),
				core.NewValidationError("Age", "Age must be a number"),
			},
		},
		{
			ID:             "r2",
			Fields:         map[string]string{"Name": "Bob", "Age": "7"},
			ValidationData: []core.ValidationError{{Key: "external"}},
		},
	}

	var buf bytes.Buffer
	if err := WriteErrorReport(&buf, []string{"Name", "Age"}, recs); err != nil {
		t.Fatalf("WriteErrorReport() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Errors")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	want := [][]string{
		{"Record ID", "Name", "Age", "Errors"},
		{"r1", "", "x", "Name: Name is required; Age: Age must be a number"},
		{"r2", "Bob", "7", "external: invalid"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %q, want %q", rows, want)
	}

	summary, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("GetRows(Summary) error = %v", err)
	}
	wantSummary := [][]string{
		{"Column", "Errors"},
		{"Name", "1"},
		{"Age", "1"},
		{"external", "1"},
		{"Invalid records", "2"},
	}
	if !reflect.DeepEqual(summary, wantSummary) {
		t.Errorf("summary = %q, want %q", summary, wantSummary)
	}
}
