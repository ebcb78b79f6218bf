// Package table reads delimited tabular files into memory. The first row
// is always the header row; files are assumed small enough to parse fully.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoHeader is returned when a file contains no rows at all.
var ErrNoHeader = errors.New("file has no header row")

// Dialect configures how a delimited file is parsed.
type Dialect struct {
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune

	// LazyQuotes allows bare quotes inside unquoted fields.
	LazyQuotes bool

	// TrimLeadingSpace strips leading whitespace in fields.
	TrimLeadingSpace bool
}

// DefaultDialect returns the standard comma-separated dialect.
func DefaultDialect() Dialect {
	return Dialect{Delimiter: ','}
}

// Table is a fully parsed tabular file.
type Table struct {
	// Path is the file the table was read from, empty for readers.
	Path string

	// Headers is the first row of the file.
	Headers []string

	// Rows holds the data records. Rows may be ragged when the source
	// file has inconsistent field counts; callers use Cell for safe access.
	Rows [][]string

	// Size is the byte size of the source, when known.
	Size int64
}

// Read parses the file at path.
func Read(path string, d Dialect) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	t, err := ReadBytes(data, d)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	t.Path = path
	return t, nil
}

// ReadBytes parses raw file content.
func ReadBytes(data []byte, d Dialect) (*Table, error) {
	// Strip a UTF-8 BOM so the first header name is clean.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	t, err := ReadReader(bytes.NewReader(data), d)
	if err != nil {
		return nil, err
	}
	t.Size = int64(len(data))
	return t, nil
}

// ReadReader parses delimited content from r.
func ReadReader(r io.Reader, d Dialect) (*Table, error) {
	cr := csv.NewReader(r)
	if d.Delimiter != 0 {
		cr.Comma = d.Delimiter
	}
	cr.LazyQuotes = d.LazyQuotes
	cr.TrimLeadingSpace = d.TrimLeadingSpace
	cr.FieldsPerRecord = -1 // Ragged rows are a validation finding, not a parse error.

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	return &Table{
		Headers: records[0],
		Rows:    records[1:],
	}, nil
}

// ColumnIndex returns the ordinal of the named header, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// RowMap returns row i keyed by header name. Missing trailing cells map
// to the empty string.
func (t *Table) RowMap(i int) map[string]string {
	m := make(map[string]string, len(t.Headers))
	for c, h := range t.Headers {
		m[h] = t.Cell(i, c)
	}
	return m
}

// IsEmptyRow reports whether every cell of row i is blank.
func (t *Table) IsEmptyRow(i int) bool {
	if i < 0 || i >= len(t.Rows) {
		return true
	}
	for _, v := range t.Rows[i] {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
