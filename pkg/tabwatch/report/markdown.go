package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
)

// MarkdownFormatter renders the diff result as a Markdown document with
// tables for statistics, schema changes, and row changes.
type MarkdownFormatter struct{}

// Format writes the rendered report to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	fmt.Fprintf(w, "# Change Report\n\n")
	fmt.Fprintf(w, "**Old:** `%s`  \n", r.OldPath)
	fmt.Fprintf(w, "**New:** `%s`  \n", r.NewPath)
	fmt.Fprintf(w, "**Mode:** %s  \n", r.Mode)
	fmt.Fprintf(w, "**Generated:** %s\n\n", r.GeneratedAt.UTC().Format(timeLayout))
	if r.Truncated {
		fmt.Fprintf(w, "> **Note:** partial result, the row ceiling was reached.\n\n")
	}

	f.writeStatistics(w, r.Statistics)

	if len(r.SchemaChanges) > 0 {
		fmt.Fprintf(w, "## Schema Changes\n\n")
		fmt.Fprintln(w, "| Column | Change | Old Position | New Position |")
		fmt.Fprintln(w, "|---|---|---|---|")
		for _, sc := range r.SchemaChanges {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				escapeCell(sc.Column), sc.ChangeType, position(sc.OldIndex), position(sc.NewIndex))
		}
		fmt.Fprintln(w)
	}

	if len(r.RowChanges) > 0 {
		fmt.Fprintf(w, "## Row Changes\n\n")
		fmt.Fprintln(w, "| Row | Change | Detail |")
		fmt.Fprintln(w, "|---|---|---|")
		for _, rc := range r.RowChanges {
			fmt.Fprintf(w, "| %d | %s | %s |\n", rc.RowIndex, rc.ChangeType, rowDetail(rc, r))
		}
		fmt.Fprintln(w)
	}

	if r.TextDiff != "" {
		fmt.Fprintf(w, "## Patch\n\n```diff\n%s```\n", r.TextDiff)
	}

	return nil
}

func (f *MarkdownFormatter) writeStatistics(w *bytes.Buffer, s diff.Statistics) {
	fmt.Fprintf(w, "## Statistics\n\n")
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|---|---|")
	fmt.Fprintf(w, "| Old rows | %d |\n", s.OldRowCount)
	fmt.Fprintf(w, "| New rows | %d |\n", s.NewRowCount)
	fmt.Fprintf(w, "| Added | %d |\n", s.RowsAdded)
	fmt.Fprintf(w, "| Removed | %d |\n", s.RowsRemoved)
	fmt.Fprintf(w, "| Modified | %d |\n", s.RowsModified)
	fmt.Fprintf(w, "| Moved | %d |\n", s.RowsMoved)
	fmt.Fprintf(w, "| Cell changes | %d |\n", s.CellChanges)
	fmt.Fprintf(w, "| Change %% | %.1f |\n", s.ChangePercent)
	if len(s.TopColumns) > 0 {
		cols := make([]string, len(s.TopColumns))
		for i, cr := range s.TopColumns {
			cols[i] = fmt.Sprintf("%s (%d)", escapeCell(cr.Column), cr.Changes)
		}
		fmt.Fprintf(w, "| Most changed columns | %s |\n", strings.Join(cols, ", "))
	}
	fmt.Fprintln(w)
}

// rowDetail summarizes one row change for the table's detail cell.
func rowDetail(rc diff.RowChange, r *diff.Result) string {
	switch rc.ChangeType {
	case diff.ChangeAdded:
		return escapeCell(strings.Join(rowCells(rc.NewRow, r.NewHeaders), ", "))
	case diff.ChangeRemoved:
		return escapeCell(strings.Join(rowCells(rc.OldRow, r.OldHeaders), ", "))
	case diff.ChangeMoved:
		return fmt.Sprintf("position %d → %d", rc.OldIndex, rc.NewIndex)
	case diff.ChangeModified:
		parts := make([]string, len(rc.CellChanges))
		for i, cc := range rc.CellChanges {
			parts[i] = fmt.Sprintf("%s: `%s` → `%s`",
				escapeCell(cc.Column), escapeCell(cc.OldValue), escapeCell(cc.NewValue))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// position renders an ordinal, or a dash for the -1 sentinel.
func position(idx int) string {
	if idx < 0 {
		return "—"
	}
	return fmt.Sprintf("%d", idx)
}

// escapeCell keeps pipe characters in data from breaking table layout.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

// Ensure MarkdownFormatter implements Formatter.
var _ Formatter = (*MarkdownFormatter)(nil)
