package core

// streaming.go turns an uploaded CSV body into rows without buffering the
// whole file.
//
// The reader chain is: size limit -> BOM skip -> UTF-8 sanitise -> csv.
// Each layer keeps O(buffer) memory so imports of any size stream through.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned once an upload exceeds its byte limit.
var ErrFileTooLarge = errors.New("file too large")

// RowReader yields the rows of a tabular file. Header is called once before
// Next. Next returns io.EOF after the last row.
type RowReader interface {
	Header() ([]string, error)
	Next() ([]string, error)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' as it reads.
// Incomplete sequences at a read boundary are carried to the next Read.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}
	atEOF := errors.Is(err, io.EOF)

	write := 0
	for read := 0; read < n; {
		if p[read] < utf8.RuneSelf {
			p[write] = p[read]
			write++
			read++
			continue
		}
		if !atEOF && !utf8.FullRune(p[read:n]) {
			s.pending = append(s.pending, p[read:n]...)
			break
		}
		r, size := utf8.DecodeRune(p[read:n])
		if r == utf8.RuneError && size == 1 {
			p[write] = '?'
			write++
			read++
			continue
		}
		copy(p[write:], p[read:read+size])
		write += size
		read += size
	}

	// Everything buffered as pending; ask for more instead of returning 0, nil.
	if write == 0 && err == nil && len(p) > utf8.UTFMax {
		return s.Read(p)
	}
	return write, err
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}

// limitReader fails with ErrFileTooLarge once more than max bytes are read.
// A non-positive max disables the limit.
type limitReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.max > 0 && l.read > l.max {
		return n, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, l.max)
	}
	return n, err
}

// WrapForStreaming applies the size limit, BOM skip and UTF-8 sanitising
// layers to r, in that order.
func WrapForStreaming(r io.Reader, maxBytes int64) io.Reader {
	return newUTF8Sanitizer(skipBOM(&limitReader{r: r, max: maxBytes}))
}

// CSVRowReader reads rows from a CSV stream.
type CSVRowReader struct {
	cr *csv.Reader
}

// NewCSVRowReader wraps r for streaming and returns a reader that tolerates
// ragged rows and lazy quotes.
func NewCSVRowReader(r io.Reader, maxBytes int64) *CSVRowReader {
	cr := csv.NewReader(WrapForStreaming(r, maxBytes))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return &CSVRowReader{cr: cr}
}

func (c *CSVRowReader) Header() ([]string, error) {
	h, err := c.cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, csvError(err)
	}
	return h, nil
}

func (c *CSVRowReader) Next() ([]string, error) {
	row, err := c.cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, csvError(err)
	}
	return row, err
}

func csvError(err error) error {
	if errors.Is(err, ErrFileTooLarge) {
		return err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("invalid csv: line %d: %w", pe.Line, pe.Err)
	}
	return err
}
