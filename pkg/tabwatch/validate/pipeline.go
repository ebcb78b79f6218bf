package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
)

// Finding codes emitted by the pipeline's own checks.
const (
	CodeNoRecords        = "no-records"
	CodeUnparseable      = "unparseable"
	CodeEmptyHeader      = "empty-header"
	CodeDuplicateHeader  = "duplicate-header"
	CodeBadEncoding      = "bad-encoding"
	CodeRowWidth         = "row-width"
	CodeMissingColumn    = "missing-column"
	CodeUnexpectedColumn = "unexpected-column"
	CodeTypeMismatch     = "type-mismatch"
	CodeValidatorFailed  = "validator-failed"
	CodeValidatorPanic   = "validator-panic"
	CodeErrorCapReached  = "error-cap-reached"
)

// DefaultErrorCap halts error collection once this many errors were found.
const DefaultErrorCap = 100

// Options configures a Pipeline.
type Options struct {
	// Dialect controls file parsing.
	Dialect table.Dialect

	// Schema, when non-nil, is checked after the structural pass.
	Schema *Schema

	// ErrorCap halts error collection (not file reading) once reached.
	// Zero uses DefaultErrorCap.
	ErrorCap int

	// Strict promotes row-width findings from warning to error.
	Strict bool
}

// Pipeline validates files. Custom validators may be registered and
// removed at runtime; registration order is the invocation order.
type Pipeline struct {
	opts Options

	mu         sync.RWMutex
	validators []*CustomValidator
	byName     map[string]*CustomValidator

	log *logging.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.ErrorCap <= 0 {
		opts.ErrorCap = DefaultErrorCap
	}
	return &Pipeline{
		opts:   opts,
		byName: make(map[string]*CustomValidator),
		log:    logging.Get("validate"),
	}
}

// RegisterValidator adds a custom validator. Names must be unique.
func (p *Pipeline) RegisterValidator(v *CustomValidator) error {
	if v == nil || v.Name == "" {
		return errors.New("validator must have a name")
	}
	if v.Validate == nil {
		return fmt.Errorf("validator %q has no Validate func", v.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byName[v.Name]; exists {
		return fmt.Errorf("validator %q already registered", v.Name)
	}
	p.byName[v.Name] = v
	p.validators = append(p.validators, v)
	return nil
}

// UnregisterValidator removes a validator by name. Idempotent.
func (p *Pipeline) UnregisterValidator(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byName[name]; !exists {
		return false
	}
	delete(p.byName, name)
	for i, v := range p.validators {
		if v.Name == name {
			p.validators = append(p.validators[:i], p.validators[i+1:]...)
			break
		}
	}
	return true
}

// ValidatorNames returns registered validator names in registration order.
func (p *Pipeline) ValidatorNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.validators))
	for _, v := range p.validators {
		names = append(names, v.Name)
	}
	return names
}

// collector gathers findings and enforces the error cap.
type collector struct {
	errors   []Finding
	warnings []Finding
	cap      int
	capHit   bool
}

func (c *collector) add(f Finding) {
	if f.Severity == SeverityWarning {
		c.warnings = append(c.warnings, f)
		return
	}
	if len(c.errors) >= c.cap {
		if !c.capHit {
			c.capHit = true
			c.warnings = append(c.warnings, Finding{
				Severity: SeverityWarning,
				Code:     CodeErrorCapReached,
				Message:  fmt.Sprintf("error collection stopped after %d errors", c.cap),
				Row:      -1,
			})
		}
		return
	}
	c.errors = append(c.errors, f)
}

// ValidateFile parses and validates the file at path. The result is
// derived fresh on every call; running twice on an unchanged file yields
// identical findings apart from performance timings. The returned error
// is non-nil only when the file cannot be read at all.
func (p *Pipeline) ValidateFile(path string) (*Result, error) {
	start := time.Now()

	tab, err := table.Read(path, p.opts.Dialect)
	if err != nil {
		if errors.Is(err, table.ErrNoHeader) {
			return p.finish(start, nil, 0, &collector{cap: p.opts.ErrorCap, errors: []Finding{{
				Severity: SeverityCritical,
				Code:     CodeNoRecords,
				Message:  "file is empty",
				Row:      -1,
			}}}, nil), nil
		}
		return nil, err
	}

	c := &collector{cap: p.opts.ErrorCap}

	if len(tab.Rows) == 0 {
		c.add(Finding{
			Severity: SeverityCritical,
			Code:     CodeNoRecords,
			Message:  "file contains a header but no data records",
			Row:      -1,
		})
		return p.finish(start, tab.Headers, 0, c, nil), nil
	}

	p.checkStructure(tab, c)
	if p.opts.Schema != nil {
		p.checkSchema(tab, c)
	}
	p.runCustomValidators(tab, c)
	meta := deriveMetadata(tab)

	result := p.finish(start, tab.Headers, len(tab.Rows), c, meta)
	p.log.Info("validation finished",
		"path", path,
		"valid", result.IsValid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))
	return result, nil
}

func (p *Pipeline) finish(start time.Time, headers []string, rowCount int, c *collector, meta *Metadata) *Result {
	errs := c.errors
	if errs == nil {
		errs = []Finding{}
	}
	warns := c.warnings
	if warns == nil {
		warns = []Finding{}
	}

	var bytesRead int64
	if meta != nil {
		bytesRead = meta.FileSize
	}

	return &Result{
		IsValid:  len(errs) == 0,
		Headers:  headers,
		RowCount: rowCount,
		Errors:   errs,
		Warnings: warns,
		Metadata: meta,
		Perf: &Performance{
			Duration:  time.Since(start),
			BytesRead: bytesRead,
		},
	}
}

// checkStructure runs header and encoding checks.
func (p *Pipeline) checkStructure(tab *table.Table, c *collector) {
	seen := make(map[string]int)
	for i, h := range tab.Headers {
		if strings.TrimSpace(h) == "" {
			c.add(Finding{
				Severity: SeverityError,
				Code:     CodeEmptyHeader,
				Message:  fmt.Sprintf("header %d is empty", i),
				Row:      -1,
			})
			continue
		}
		if first, dup := seen[h]; dup {
			c.add(Finding{
				Severity: SeverityError,
				Code:     CodeDuplicateHeader,
				Message:  fmt.Sprintf("header %q appears at positions %d and %d", h, first, i),
				Row:      -1,
				Column:   h,
			})
			continue
		}
		seen[h] = i

		if !utf8.ValidString(h) {
			c.add(Finding{
				Severity: SeverityError,
				Code:     CodeBadEncoding,
				Message:  fmt.Sprintf("header %q is not valid UTF-8", h),
				Row:      -1,
			})
		}
	}

	width := len(tab.Headers)
	rowWidthSeverity := SeverityWarning
	if p.opts.Strict {
		rowWidthSeverity = SeverityError
	}
	for i, row := range tab.Rows {
		if len(row) != width {
			c.add(Finding{
				Severity: rowWidthSeverity,
				Code:     CodeRowWidth,
				Message:  fmt.Sprintf("row has %d fields, header has %d", len(row), width),
				Row:      i,
			})
		}
		for col, v := range row {
			if !utf8.ValidString(v) {
				colName := ""
				if col < width {
					colName = tab.Headers[col]
				}
				c.add(Finding{
					Severity: SeverityError,
					Code:     CodeBadEncoding,
					Message:  "cell is not valid UTF-8",
					Row:      i,
					Column:   colName,
				})
			}
		}
	}
}

// checkSchema verifies the declared shape.
func (p *Pipeline) checkSchema(tab *table.Table, c *collector) {
	schema := p.opts.Schema

	declared := make(map[string]ColumnSpec, len(schema.Columns))
	for _, spec := range schema.Columns {
		declared[spec.Name] = spec
		if !spec.Required {
			continue
		}
		if tab.ColumnIndex(spec.Name) < 0 {
			c.add(Finding{
				Severity: SeverityError,
				Code:     CodeMissingColumn,
				Message:  fmt.Sprintf("required column %q is missing", spec.Name),
				Row:      -1,
				Column:   spec.Name,
			})
		}
	}

	if !schema.AllowExtra {
		for _, h := range tab.Headers {
			if _, ok := declared[h]; !ok {
				c.add(Finding{
					Severity: SeverityWarning,
					Code:     CodeUnexpectedColumn,
					Message:  fmt.Sprintf("column %q is not declared in the schema", h),
					Row:      -1,
					Column:   h,
				})
			}
		}
	}

	for _, spec := range schema.Columns {
		if spec.Type == "" || spec.Type == TypeString {
			continue
		}
		col := tab.ColumnIndex(spec.Name)
		if col < 0 {
			continue
		}
		for i := range tab.Rows {
			v := tab.Cell(i, col)
			if strings.TrimSpace(v) == "" {
				continue
			}
			if got := classify(v); got != spec.Type {
				c.add(Finding{
					Severity: SeverityError,
					Code:     CodeTypeMismatch,
					Message:  fmt.Sprintf("expected %s, found %s", spec.Type, got),
					Row:      i,
					Column:   spec.Name,
					Value:    v,
				})
			}
		}
	}
}

// runCustomValidators applies registered validators cell by cell. A
// validator panic becomes a warning naming the validator and never stops
// the run.
func (p *Pipeline) runCustomValidators(tab *table.Table, c *collector) {
	p.mu.RLock()
	validators := make([]*CustomValidator, len(p.validators))
	copy(validators, p.validators)
	p.mu.RUnlock()

	if len(validators) == 0 {
		return
	}

	for i := range tab.Rows {
		rowMap := tab.RowMap(i)
		for col, header := range tab.Headers {
			value := tab.Cell(i, col)
			for _, v := range validators {
				if !v.appliesTo(header) {
					continue
				}
				p.callValidator(v, value, rowMap, i, header, c)
			}
		}
	}
}

func (p *Pipeline) callValidator(v *CustomValidator, value string, row map[string]string, rowIndex int, column string, c *collector) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("validator panicked", "validator", v.Name, "row", rowIndex, "column", column, "panic", r)
			c.add(Finding{
				Severity: SeverityWarning,
				Code:     CodeValidatorPanic,
				Message:  fmt.Sprintf("validator %q failed internally: %v", v.Name, r),
				Row:      rowIndex,
				Column:   column,
			})
		}
	}()

	if err := v.Validate(value, row, rowIndex, column); err != nil {
		c.add(Finding{
			Severity: SeverityError,
			Code:     CodeValidatorFailed,
			Message:  fmt.Sprintf("%s: %v", v.Name, err),
			Row:      rowIndex,
			Column:   column,
			Value:    value,
		})
	}
}

// deriveMetadata computes per-column types and row statistics.
func deriveMetadata(tab *table.Table) *Metadata {
	types := make(map[string]ValueType, len(tab.Headers))
	for col, h := range tab.Headers {
		values := make([]string, 0, len(tab.Rows))
		for i := range tab.Rows {
			values = append(values, tab.Cell(i, col))
		}
		types[h] = inferColumnType(values)
	}

	emptyRows := 0
	dupes := 0
	seen := make(map[string]bool, len(tab.Rows))
	for i := range tab.Rows {
		if tab.IsEmptyRow(i) {
			emptyRows++
			continue
		}
		key := strings.Join(tab.Rows[i], "\x1f")
		if seen[key] {
			dupes++
		}
		seen[key] = true
	}

	return &Metadata{
		ColumnTypes:   types,
		EmptyRows:     emptyRows,
		DuplicateRows: dupes,
		FileSize:      tab.Size,
		Encoding:      "utf-8",
	}
}
