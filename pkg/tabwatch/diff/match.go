package diff

import (
	"sort"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
)

// matchRows pairs rows between the two versions and classifies the
// differences. Pairing order: identity-hash equality first, positional
// index second when no key columns are configured; whatever remains is a
// true add or remove, except that
// move detection reclassifies relocated identical rows.
func (e *Engine) matchRows(oldTab, newTab *table.Table) []RowChange {
	keys := e.opts.KeyColumns

	// Identity hash -> FIFO queue of unmatched old row indices.
	oldByIdentity := make(map[string][]int, len(oldTab.Rows))
	for i := range oldTab.Rows {
		id := rowIdentity(oldTab, i, keys)
		oldByIdentity[id] = append(oldByIdentity[id], i)
	}

	type pair struct{ oldIdx, newIdx int }
	var pairs []pair
	matchedOld := make(map[int]bool, len(oldTab.Rows))
	matchedNew := make(map[int]bool, len(newTab.Rows))

	// Pass 1: identity-hash matching.
	for i := range newTab.Rows {
		id := rowIdentity(newTab, i, keys)
		queue := oldByIdentity[id]
		if len(queue) == 0 {
			continue
		}
		j := queue[0]
		oldByIdentity[id] = queue[1:]
		pairs = append(pairs, pair{oldIdx: j, newIdx: i})
		matchedOld[j] = true
		matchedNew[i] = true
	}

	// Pass 2: positional fallback for rows whose identity found no match.
	// Only without key columns: a changed key value is a remove plus an add,
	// not an in-place edit.
	if len(keys) == 0 {
		for i := range newTab.Rows {
			if matchedNew[i] {
				continue
			}
			if i < len(oldTab.Rows) && !matchedOld[i] {
				pairs = append(pairs, pair{oldIdx: i, newIdx: i})
				matchedOld[i] = true
				matchedNew[i] = true
			}
		}
	}

	var changes []RowChange

	for _, p := range pairs {
		cells, similarity := e.cellChanges(oldTab, newTab, p.oldIdx, p.newIdx)
		switch {
		case len(cells) == 0 && p.oldIdx != p.newIdx && e.opts.DetectMoves:
			changes = append(changes, RowChange{
				RowIndex:   p.newIdx,
				OldIndex:   p.oldIdx,
				NewIndex:   p.newIdx,
				ChangeType: ChangeMoved,
				OldRow:     oldTab.RowMap(p.oldIdx),
				NewRow:     newTab.RowMap(p.newIdx),
				Similarity: 1.0,
			})
		case len(cells) > 0:
			changes = append(changes, RowChange{
				RowIndex:    p.newIdx,
				OldIndex:    p.oldIdx,
				NewIndex:    p.newIdx,
				ChangeType:  ChangeModified,
				CellChanges: cells,
				OldRow:      oldTab.RowMap(p.oldIdx),
				NewRow:      newTab.RowMap(p.newIdx),
				Similarity:  similarity,
			})
		}
		// Identical content at the same position is unchanged: no record.
	}

	for i := range newTab.Rows {
		if matchedNew[i] {
			continue
		}
		changes = append(changes, RowChange{
			RowIndex:   i,
			OldIndex:   -1,
			NewIndex:   i,
			ChangeType: ChangeAdded,
			NewRow:     newTab.RowMap(i),
		})
	}

	for j := range oldTab.Rows {
		if matchedOld[j] {
			continue
		}
		changes = append(changes, RowChange{
			RowIndex:   j,
			OldIndex:   j,
			NewIndex:   -1,
			ChangeType: ChangeRemoved,
			OldRow:     oldTab.RowMap(j),
		})
	}

	// Deterministic order: by new-file position, removed rows by old
	// position interleaved after.
	sort.SliceStable(changes, func(a, b int) bool {
		return changes[a].RowIndex < changes[b].RowIndex
	})

	return changes
}

// cellChanges compares one matched row pair across the union of columns.
// The returned similarity is the fraction of identical cells; cells in
// columns absent from one side compare against the empty string.
func (e *Engine) cellChanges(oldTab, newTab *table.Table, oldIdx, newIdx int) ([]CellChange, float64) {
	columns := unionColumns(oldTab.Headers, newTab.Headers)

	var cells []CellChange
	equal := 0
	for _, col := range columns {
		oldVal := oldTab.Cell(oldIdx, oldTab.ColumnIndex(col))
		newVal := newTab.Cell(newIdx, newTab.ColumnIndex(col))
		if oldVal == newVal {
			equal++
			continue
		}
		cells = append(cells, CellChange{
			Column:     col,
			OldValue:   oldVal,
			NewValue:   newVal,
			ChangeType: ChangeModified,
		})
	}

	if len(columns) == 0 {
		return nil, 1.0
	}
	return cells, float64(equal) / float64(len(columns))
}

// unionColumns returns new-file header order with old-only columns
// appended in their old order.
func unionColumns(oldHeaders, newHeaders []string) []string {
	seen := make(map[string]bool, len(newHeaders))
	columns := make([]string, 0, len(newHeaders))
	for _, h := range newHeaders {
		if !seen[h] {
			seen[h] = true
			columns = append(columns, h)
		}
	}
	for _, h := range oldHeaders {
		if !seen[h] {
			seen[h] = true
			columns = append(columns, h)
		}
	}
	return columns
}
