package diff

import "strings"

// FilterOptions narrow a completed Result. Filtering never mutates the
// original comparison, so the same Result can be re-filtered cheaply.
type FilterOptions struct {
	// IgnoreCase drops cell changes whose values differ only by case.
	IgnoreCase bool

	// IgnoreWhitespace drops cell changes whose values differ only by
	// leading/trailing or repeated internal whitespace.
	IgnoreWhitespace bool

	// IncludeColumns keeps cell changes in these columns only.
	IncludeColumns []string

	// ExcludeColumns drops cell changes in these columns.
	ExcludeColumns []string

	// ChangeTypes keeps row changes of these types only. Empty keeps all.
	ChangeTypes []ChangeType
}

// Apply returns a new Result with the filters applied and statistics
// recomputed. Modified rows whose every cell change is filtered away are
// dropped entirely.
func Apply(r *Result, f FilterOptions, topColumns int) *Result {
	if topColumns <= 0 {
		topColumns = DefaultTopColumns
	}

	out := *r
	out.RowChanges = nil

	include := toSet(f.IncludeColumns)
	exclude := toSet(f.ExcludeColumns)
	types := make(map[ChangeType]bool, len(f.ChangeTypes))
	for _, t := range f.ChangeTypes {
		types[t] = true
	}

	for _, rc := range r.RowChanges {
		if len(types) > 0 && !types[rc.ChangeType] {
			continue
		}

		kept := rc
		if rc.ChangeType == ChangeModified {
			kept.CellChanges = nil
			for _, cc := range rc.CellChanges {
				if len(include) > 0 && !include[cc.Column] {
					continue
				}
				if exclude[cc.Column] {
					continue
				}
				if f.IgnoreCase && strings.EqualFold(cc.OldValue, cc.NewValue) {
					continue
				}
				if f.IgnoreWhitespace && squashSpace(cc.OldValue) == squashSpace(cc.NewValue) {
					continue
				}
				kept.CellChanges = append(kept.CellChanges, cc)
			}
			if len(kept.CellChanges) == 0 {
				continue
			}
		}

		out.RowChanges = append(out.RowChanges, kept)
	}

	engine := &Engine{opts: Options{TopColumns: topColumns}}
	out.Statistics = engine.buildStatistics(out.RowChanges, r.Statistics.OldRowCount, r.Statistics.NewRowCount)
	return &out
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// squashSpace trims the value and collapses internal whitespace runs.
func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
