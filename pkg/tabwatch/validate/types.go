// Package validate determines whether a tabular file's structure and
// content are fit for downstream use. Findings are data, not exceptions:
// a validation run only fails with an error when the file cannot be read.
package validate

import "time"

// Severity classifies a validation finding.
type Severity string

const (
	// SeverityCritical marks findings that make the file unusable.
	SeverityCritical Severity = "critical"
	// SeverityError marks findings that make the file invalid.
	SeverityError Severity = "error"
	// SeverityWarning marks findings that never affect validity.
	SeverityWarning Severity = "warning"
)

// Finding is one validation error or warning.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	// Row is the zero-based data row index, or -1 for file-level findings.
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// ValueType is an inferred column value type.
type ValueType string

const (
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeDate    ValueType = "date"
	TypeEmail   ValueType = "email"
	TypeURL     ValueType = "url"
	TypeString  ValueType = "string"
)

// Metadata carries statistics derived during validation.
type Metadata struct {
	ColumnTypes   map[string]ValueType `json:"column_types"`
	EmptyRows     int                  `json:"empty_rows"`
	DuplicateRows int                  `json:"duplicate_rows"`
	FileSize      int64                `json:"file_size"`
	Encoding      string               `json:"encoding"`
}

// Performance carries timing fields, excluded from determinism guarantees.
type Performance struct {
	Duration  time.Duration `json:"duration"`
	BytesRead int64         `json:"bytes_read"`
}

// Result is the outcome of validating one file.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Headers  []string `json:"headers,omitempty"`
	RowCount int      `json:"row_count"`
	// Errors holds critical and error severity findings.
	Errors   []Finding    `json:"errors"`
	Warnings []Finding    `json:"warnings"`
	Metadata *Metadata    `json:"metadata,omitempty"`
	Perf     *Performance `json:"performance,omitempty"`
}

// ColumnSpec declares the expected shape of one column.
type ColumnSpec struct {
	Name     string    `json:"name"`
	Type     ValueType `json:"type,omitempty"`
	Required bool      `json:"required"`
}

// Schema declares the expected shape of a file.
type Schema struct {
	Columns []ColumnSpec `json:"columns"`
	// AllowExtra permits columns beyond those declared.
	AllowExtra bool `json:"allow_extra"`
}
