package diff

import "strings"

// splitLines splits file content into lines without trailing newlines.
// A trailing final newline does not produce an empty last line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

// lineDiff produces a unified-style patch between two line slices and
// coarse add/remove/modify counts. A removal run immediately followed by
// an insertion run counts pairwise as modifications.
func lineDiff(oldLines, newLines []string, oldName, newName string) (patch string, added, removed, modified int) {
	ops := lcsOps(oldLines, newLines)

	var b strings.Builder
	b.WriteString("--- " + oldName + "\n")
	b.WriteString("+++ " + newName + "\n")

	for i := 0; i < len(ops); i++ {
		op := ops[i]
		switch op.kind {
		case opEqual:
			b.WriteString(" " + op.line + "\n")
		case opDelete:
			// Count the deletion run and any insertion run that follows.
			delRun := 0
			for i+delRun < len(ops) && ops[i+delRun].kind == opDelete {
				b.WriteString("-" + ops[i+delRun].line + "\n")
				delRun++
			}
			insRun := 0
			for i+delRun+insRun < len(ops) && ops[i+delRun+insRun].kind == opInsert {
				b.WriteString("+" + ops[i+delRun+insRun].line + "\n")
				insRun++
			}
			pairs := min(delRun, insRun)
			modified += pairs
			removed += delRun - pairs
			added += insRun - pairs
			i += delRun + insRun - 1
		case opInsert:
			b.WriteString("+" + op.line + "\n")
			added++
		}
	}

	return b.String(), added, removed, modified
}

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type lineOp struct {
	kind opKind
	line string
}

// lcsOps computes an edit script via a longest-common-subsequence table.
// Quadratic in line count; callers cap input size with MaxRows.
func lcsOps(oldLines, newLines []string) []lineOp {
	m, n := len(oldLines), len(newLines)

	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []lineOp
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case oldLines[i] == newLines[j]:
			ops = append(ops, lineOp{opEqual, oldLines[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, lineOp{opDelete, oldLines[i]})
			i++
		default:
			ops = append(ops, lineOp{opInsert, newLines[j]})
			j++
		}
	}
	for ; i < m; i++ {
		ops = append(ops, lineOp{opDelete, oldLines[i]})
	}
	for ; j < n; j++ {
		ops = append(ops, lineOp{opInsert, newLines[j]})
	}

	return ops
}
