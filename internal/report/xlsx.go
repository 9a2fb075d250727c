// Package report reads spreadsheet uploads and writes spreadsheet reports.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/importcheck/internal/core"
)

// XLSXRowReader reads the first sheet of a workbook row by row. It
// satisfies core.RowReader.
type XLSXRowReader struct {
	f    *excelize.File
	rows *excelize.Rows
}

var _ core.RowReader = (*XLSXRowReader)(nil)

// NewXLSXRowReader opens the workbook in r. Workbooks larger than maxBytes
// fail with core.ErrFileTooLarge; maxBytes <= 0 means unlimited.
func NewXLSXRowReader(r io.Reader, maxBytes int64) (*XLSXRowReader, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, core.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, errors.New("invalid xlsx: workbook has no sheets")
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	return &XLSXRowReader{f: f, rows: rows}, nil
}

func (x *XLSXRowReader) Header() ([]string, error) {
	row, err := x.Next()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	return row, err
}

func (x *XLSXRowReader) Next() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, fmt.Errorf("invalid xlsx: %w", err)
		}
		return nil, io.EOF
	}
	row, err := x.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	return row, nil
}

// Close releases the workbook.
func (x *XLSXRowReader) Close() error {
	if err := x.rows.Close(); err != nil {
		x.f.Close()
		return err
	}
	return x.f.Close()
}
