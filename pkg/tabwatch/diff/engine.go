package diff

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
)

// identitySeparator joins key column values into a row identity hash.
const identitySeparator = "|"

// Engine compares file versions according to its options.
type Engine struct {
	opts Options
	log  *logging.Logger
}

// NewEngine creates an Engine, applying option defaults.
func NewEngine(opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeStructured
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.TopColumns <= 0 {
		opts.TopColumns = DefaultTopColumns
	}
	return &Engine{opts: opts, log: logging.Get("diff")}
}

// CompareFiles compares two versions of the same logical file. An
// unreadable or unparseable file aborts the comparison with an error.
func (e *Engine) CompareFiles(oldPath, newPath string) (*Result, error) {
	oldData, err := os.ReadFile(oldPath)
	if err != nil {
		return nil, fmt.Errorf("reading old file: %w", err)
	}
	newData, err := os.ReadFile(newPath)
	if err != nil {
		return nil, fmt.Errorf("reading new file: %w", err)
	}

	result := &Result{
		Mode:        e.opts.Mode,
		OldPath:     oldPath,
		NewPath:     newPath,
		GeneratedAt: time.Now().UTC(),
	}

	if e.opts.Mode == ModeText {
		oldLines := splitLines(string(oldData))
		newLines := splitLines(string(newData))
		patch, added, removed, modified := lineDiff(oldLines, newLines, oldPath, newPath)
		result.TextDiff = patch
		result.Statistics = Statistics{
			RowsAdded:    added,
			RowsRemoved:  removed,
			RowsModified: modified,
			OldRowCount:  len(oldLines),
			NewRowCount:  len(newLines),
		}
		result.Statistics.ChangePercent = changePercent(result.Statistics)
		return result, nil
	}

	oldTab, err := table.ReadBytes(oldData, e.opts.Dialect)
	if err != nil {
		return nil, fmt.Errorf("parsing old file %q: %w", oldPath, err)
	}
	newTab, err := table.ReadBytes(newData, e.opts.Dialect)
	if err != nil {
		return nil, fmt.Errorf("parsing new file %q: %w", newPath, err)
	}

	e.compareTables(oldTab, newTab, result)

	if e.opts.Mode == ModeHybrid {
		patch, _, _, _ := lineDiff(splitLines(string(oldData)), splitLines(string(newData)), oldPath, newPath)
		result.TextDiff = patch
	}

	e.log.Info("comparison finished",
		"old", oldPath, "new", newPath, "mode", string(e.opts.Mode),
		"changes", result.Statistics.TotalChanges(), "truncated", result.Truncated)
	return result, nil
}

// CompareTables compares two already-parsed tables in the engine's mode.
func (e *Engine) CompareTables(oldTab, newTab *table.Table) (*Result, error) {
	if oldTab == nil || newTab == nil {
		return nil, errors.New("both tables are required")
	}

	result := &Result{
		Mode:        e.opts.Mode,
		OldPath:     oldTab.Path,
		NewPath:     newTab.Path,
		GeneratedAt: time.Now().UTC(),
	}
	e.compareTables(oldTab, newTab, result)
	return result, nil
}

func (e *Engine) compareTables(oldTab, newTab *table.Table, result *Result) {
	result.OldHeaders = oldTab.Headers
	result.NewHeaders = newTab.Headers
	result.SchemaChanges = compareSchema(oldTab.Headers, newTab.Headers)

	if e.opts.Mode == ModeSchema {
		result.Statistics.OldRowCount = len(oldTab.Rows)
		result.Statistics.NewRowCount = len(newTab.Rows)
		return
	}

	oldRows := oldTab.Rows
	newRows := newTab.Rows
	if len(oldRows) > e.opts.MaxRows {
		oldRows = oldRows[:e.opts.MaxRows]
		result.Truncated = true
	}
	if len(newRows) > e.opts.MaxRows {
		newRows = newRows[:e.opts.MaxRows]
		result.Truncated = true
	}

	result.RowChanges = e.matchRows(
		&table.Table{Headers: oldTab.Headers, Rows: oldRows},
		&table.Table{Headers: newTab.Headers, Rows: newRows},
	)
	result.Statistics = e.buildStatistics(result.RowChanges, len(oldRows), len(newRows))
}

// compareSchema classifies header differences. Headers present only in
// the old file are removed, only in the new file are added, and headers
// present in both at different ordinals are moved.
func compareSchema(oldHeaders, newHeaders []string) []SchemaChange {
	oldIndex := make(map[string]int, len(oldHeaders))
	for i, h := range oldHeaders {
		if _, dup := oldIndex[h]; !dup {
			oldIndex[h] = i
		}
	}
	newIndex := make(map[string]int, len(newHeaders))
	for i, h := range newHeaders {
		if _, dup := newIndex[h]; !dup {
			newIndex[h] = i
		}
	}

	var changes []SchemaChange

	for i, h := range oldHeaders {
		if _, ok := newIndex[h]; !ok {
			changes = append(changes, SchemaChange{
				Column:     h,
				ChangeType: ChangeRemoved,
				OldIndex:   i,
				NewIndex:   -1,
			})
		}
	}

	for i, h := range newHeaders {
		oi, ok := oldIndex[h]
		switch {
		case !ok:
			changes = append(changes, SchemaChange{
				Column:     h,
				ChangeType: ChangeAdded,
				OldIndex:   -1,
				NewIndex:   i,
			})
		case oi != i:
			changes = append(changes, SchemaChange{
				Column:     h,
				ChangeType: ChangeMoved,
				OldIndex:   oi,
				NewIndex:   i,
			})
		}
	}

	return changes
}

// buildStatistics aggregates row changes into counts and column rankings.
func (e *Engine) buildStatistics(changes []RowChange, oldRows, newRows int) Statistics {
	stats := Statistics{
		OldRowCount: oldRows,
		NewRowCount: newRows,
	}

	columnHits := make(map[string]int)
	for _, rc := range changes {
		switch rc.ChangeType {
		case ChangeAdded:
			stats.RowsAdded++
		case ChangeRemoved:
			stats.RowsRemoved++
		case ChangeModified:
			stats.RowsModified++
			stats.CellChanges += len(rc.CellChanges)
			for _, cc := range rc.CellChanges {
				columnHits[cc.Column]++
			}
		case ChangeMoved:
			stats.RowsMoved++
		}
	}

	stats.ChangePercent = changePercent(stats)

	ranks := make([]ColumnRank, 0, len(columnHits))
	for col, n := range columnHits {
		ranks = append(ranks, ColumnRank{Column: col, Changes: n})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Changes != ranks[j].Changes {
			return ranks[i].Changes > ranks[j].Changes
		}
		return ranks[i].Column < ranks[j].Column
	})
	if len(ranks) > e.opts.TopColumns {
		ranks = ranks[:e.opts.TopColumns]
	}
	stats.TopColumns = ranks

	return stats
}

func changePercent(s Statistics) float64 {
	denom := s.OldRowCount
	if s.NewRowCount > denom {
		denom = s.NewRowCount
	}
	if denom == 0 {
		return 0
	}
	return float64(s.TotalChanges()) / float64(denom) * 100
}

// rowIdentity builds the identity hash for a row: the pipe-joined values
// of the key columns, or of the whole row when no keys are configured.
func rowIdentity(tab *table.Table, row int, keyColumns []string) string {
	if len(keyColumns) == 0 {
		return strings.Join(tab.Rows[row], identitySeparator)
	}
	parts := make([]string, len(keyColumns))
	for i, k := range keyColumns {
		parts[i] = tab.Cell(row, tab.ColumnIndex(k))
	}
	return strings.Join(parts, identitySeparator)
}
