// Package diff computes structured, explainable differences between two
// versions of the same tabular file.
package diff

import (
	"time"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
)

// Mode selects the comparison strategy.
type Mode string

const (
	// ModeText produces a line-based patch with coarse line counts.
	ModeText Mode = "text"
	// ModeSchema reports column presence and order changes only.
	ModeSchema Mode = "schema"
	// ModeStructured produces a full row and cell level diff.
	ModeStructured Mode = "structured"
	// ModeHybrid is structured plus an auxiliary text patch.
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeText, ModeSchema, ModeStructured, ModeHybrid:
		return Mode(s), true
	default:
		return ModeStructured, false
	}
}

// ChangeType classifies a schema, row, or cell change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
	ChangeMoved    ChangeType = "moved"
)

// SchemaChange records one column addition, removal, or move.
// OldIndex is -1 for added columns; NewIndex is -1 for removed ones.
type SchemaChange struct {
	Column     string     `json:"column"`
	ChangeType ChangeType `json:"change_type"`
	OldIndex   int        `json:"old_index"`
	NewIndex   int        `json:"new_index"`
}

// CellChange records one differing cell within a modified row.
type CellChange struct {
	Column     string     `json:"column"`
	OldValue   string     `json:"old_value"`
	NewValue   string     `json:"new_value"`
	ChangeType ChangeType `json:"change_type"`
}

// RowChange records one row-level difference. RowIndex is the position in
// the new file, or the position in the old file for removed rows.
type RowChange struct {
	RowIndex   int        `json:"row_index"`
	OldIndex   int        `json:"old_index"`
	NewIndex   int        `json:"new_index"`
	ChangeType ChangeType `json:"change_type"`
	// CellChanges is populated for modified rows only.
	CellChanges []CellChange      `json:"cell_changes,omitempty"`
	OldRow      map[string]string `json:"old_row,omitempty"`
	NewRow      map[string]string `json:"new_row,omitempty"`
	// Similarity is the fraction of identical cells across the union of
	// columns; 1.0 for moves, below 1.0 for modifications.
	Similarity float64 `json:"similarity,omitempty"`
}

// ColumnRank is one entry in the most-changed-columns ranking.
type ColumnRank struct {
	Column  string `json:"column"`
	Changes int    `json:"changes"`
}

// Statistics aggregates change counts for one comparison.
type Statistics struct {
	RowsAdded    int `json:"rows_added"`
	RowsRemoved  int `json:"rows_removed"`
	RowsModified int `json:"rows_modified"`
	RowsMoved    int `json:"rows_moved"`
	CellChanges  int `json:"cell_changes"`
	OldRowCount  int `json:"old_row_count"`
	NewRowCount  int `json:"new_row_count"`
	// ChangePercent is total changed rows over max(old, new) row count.
	ChangePercent float64 `json:"change_percent"`
	// TopColumns ranks columns by how many cell changes they appear in.
	TopColumns []ColumnRank `json:"top_columns,omitempty"`
}

// TotalChanges is the number of changed rows of any kind.
func (s Statistics) TotalChanges() int {
	return s.RowsAdded + s.RowsRemoved + s.RowsModified + s.RowsMoved
}

// Result is the read-only outcome of one comparison. It is never mutated
// after construction; filtering produces a new Result.
type Result struct {
	Mode          Mode           `json:"mode"`
	OldPath       string         `json:"old_path"`
	NewPath       string         `json:"new_path"`
	OldHeaders    []string       `json:"old_headers"`
	NewHeaders    []string       `json:"new_headers"`
	Statistics    Statistics     `json:"statistics"`
	SchemaChanges []SchemaChange `json:"schema_changes"`
	RowChanges    []RowChange    `json:"row_changes"`
	TextDiff      string         `json:"text_diff,omitempty"`
	// Truncated marks partial results from the row ceiling.
	Truncated   bool      `json:"truncated"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Options configures an Engine.
type Options struct {
	// Mode is the comparison mode. Default structured.
	Mode Mode

	// KeyColumns identify the same row across versions. Empty falls back
	// to full-row identity with positional pairing.
	KeyColumns []string

	// DetectMoves classifies relocated identical rows as moved.
	DetectMoves bool

	// MaxRows is the row ceiling; rows beyond it are not compared and the
	// result is marked truncated. Zero uses DefaultMaxRows.
	MaxRows int

	// TopColumns is the size of the most-changed-columns ranking.
	// Zero uses DefaultTopColumns.
	TopColumns int

	// Dialect controls file parsing.
	Dialect table.Dialect
}

// DefaultMaxRows bounds memory use for large files.
const DefaultMaxRows = 100000

// DefaultTopColumns is the default ranking size.
const DefaultTopColumns = 5
