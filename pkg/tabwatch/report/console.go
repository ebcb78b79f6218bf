package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
)

// ConsoleFormatter renders a plain-text report suitable for terminals,
// scripting, and piping. No colors or styling are applied.
type ConsoleFormatter struct{}

// Format writes the rendered report to the buffer.
func (f *ConsoleFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	fmt.Fprintf(w, "Comparison: %s -> %s\n", r.OldPath, r.NewPath)
	fmt.Fprintf(w, "Mode: %s    Generated: %s\n", r.Mode, r.GeneratedAt.UTC().Format(timeLayout))
	if r.Truncated {
		fmt.Fprintln(w, "NOTE: result is partial, the row ceiling was reached")
	}
	fmt.Fprintln(w)

	f.writeStatistics(w, r)

	if len(r.SchemaChanges) > 0 {
		fmt.Fprintln(w, "Schema changes:")
		for _, sc := range r.SchemaChanges {
			switch sc.ChangeType {
			case diff.ChangeAdded:
				fmt.Fprintf(w, "  + column %q (at %d)\n", sc.Column, sc.NewIndex)
			case diff.ChangeRemoved:
				fmt.Fprintf(w, "  - column %q (was at %d)\n", sc.Column, sc.OldIndex)
			case diff.ChangeMoved:
				fmt.Fprintf(w, "  ~ column %q moved %d -> %d\n", sc.Column, sc.OldIndex, sc.NewIndex)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.RowChanges) > 0 {
		fmt.Fprintln(w, "Row changes:")
		for _, rc := range r.RowChanges {
			f.writeRowChange(w, rc, r)
		}
		fmt.Fprintln(w)
	}

	if r.TextDiff != "" {
		fmt.Fprintln(w, "Patch:")
		fmt.Fprint(w, r.TextDiff)
	}

	return nil
}

func (f *ConsoleFormatter) writeStatistics(w *bytes.Buffer, r *diff.Result) {
	s := r.Statistics
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows:\t%s old, %s new\n",
		humanize.Comma(int64(s.OldRowCount)), humanize.Comma(int64(s.NewRowCount)))
	fmt.Fprintf(tw, "Added:\t%d\n", s.RowsAdded)
	fmt.Fprintf(tw, "Removed:\t%d\n", s.RowsRemoved)
	fmt.Fprintf(tw, "Modified:\t%d\n", s.RowsModified)
	fmt.Fprintf(tw, "Moved:\t%d\n", s.RowsMoved)
	fmt.Fprintf(tw, "Cell changes:\t%d\n", s.CellChanges)
	fmt.Fprintf(tw, "Change:\t%.1f%%\n", s.ChangePercent)
	tw.Flush()

	if len(s.TopColumns) > 0 {
		cols := make([]string, len(s.TopColumns))
		for i, cr := range s.TopColumns {
			cols[i] = fmt.Sprintf("%s (%d)", cr.Column, cr.Changes)
		}
		fmt.Fprintf(w, "Most changed columns: %s\n", strings.Join(cols, ", "))
	}
	fmt.Fprintln(w)
}

func (f *ConsoleFormatter) writeRowChange(w *bytes.Buffer, rc diff.RowChange, r *diff.Result) {
	switch rc.ChangeType {
	case diff.ChangeAdded:
		fmt.Fprintf(w, "  + row %d: %s\n", rc.NewIndex,
			strings.Join(rowCells(rc.NewRow, r.NewHeaders), ", "))
	case diff.ChangeRemoved:
		fmt.Fprintf(w, "  - row %d: %s\n", rc.OldIndex,
			strings.Join(rowCells(rc.OldRow, r.OldHeaders), ", "))
	case diff.ChangeMoved:
		fmt.Fprintf(w, "  ~ row moved %d -> %d\n", rc.OldIndex, rc.NewIndex)
	case diff.ChangeModified:
		fmt.Fprintf(w, "  * row %d:\n", rc.RowIndex)
		for _, cc := range rc.CellChanges {
			fmt.Fprintf(w, "      %s: %q -> %q\n", cc.Column, cc.OldValue, cc.NewValue)
		}
	}
}

func init() {
	Register("console", func() Formatter {
		return &ConsoleFormatter{}
	})
}

// Ensure ConsoleFormatter implements Formatter.
var _ Formatter = (*ConsoleFormatter)(nil)
