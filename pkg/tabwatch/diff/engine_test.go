package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustTable(t *testing.T, content string) *table.Table {
	t.Helper()
	tab, err := table.ReadBytes([]byte(content), table.DefaultDialect())
	require.NoError(t, err)
	return tab
}

func TestCompareSchema(t *testing.T) {
	t.Parallel()

	// Example from the shop directory data set: website added, address
	// and phone swap positions, nothing removed.
	changes := compareSchema(
		[]string{"name", "address", "phone"},
		[]string{"name", "phone", "address", "website"},
	)

	byColumn := make(map[string]SchemaChange)
	for _, c := range changes {
		byColumn[c.Column] = c
	}

	require.Len(t, changes, 3)

	added := byColumn["website"]
	assert.Equal(t, ChangeAdded, added.ChangeType)
	assert.Equal(t, 3, added.NewIndex)
	assert.Equal(t, -1, added.OldIndex)

	moved := byColumn["address"]
	assert.Equal(t, ChangeMoved, moved.ChangeType)
	assert.Equal(t, 1, moved.OldIndex)
	assert.Equal(t, 2, moved.NewIndex)

	movedPhone := byColumn["phone"]
	assert.Equal(t, ChangeMoved, movedPhone.ChangeType)
	assert.Equal(t, 2, movedPhone.OldIndex)
	assert.Equal(t, 1, movedPhone.NewIndex)
}

func TestCompareTables_ModifiedRowWithKeyColumn(t *testing.T) {
	t.Parallel()

	e := NewEngine(Options{KeyColumns: []string{"name"}})
	oldTab := mustTable(t, "name,phone\nBook Haven,555-0101\n")
	newTab := mustTable(t, "name,phone\nBook Haven,555-0199\n")

	res, err := e.CompareTables(oldTab, newTab)
	require.NoError(t, err)

	require.Len(t, res.RowChanges, 1)
	rc := res.RowChanges[0]
	assert.Equal(t, ChangeModified, rc.ChangeType)
	require.Len(t, rc.CellChanges, 1)
	assert.Equal(t, "phone", rc.CellChanges[0].Column)
	assert.Equal(t, "555-0101", rc.CellChanges[0].OldValue)
	assert.Equal(t, "555-0199", rc.CellChanges[0].NewValue)
	assert.InDelta(t, 0.5, rc.Similarity, 0.001)
}

func TestCompareTables_AddAndRemove(t *testing.T) {
	t.Parallel()

	e := NewEngine(Options{KeyColumns: []string{"name"}})
	oldTab := mustTable(t, "name,phone\nA,1\nB,2\n")
	newTab := mustTable(t, "name,phone\nA,1\nC,3\n")

	res, err := e.CompareTables(oldTab, newTab)
	require.NoError(t, err)

	var added, removed int
	for _, rc := range res.RowChanges {
		switch rc.ChangeType {
		case ChangeAdded:
			added++
			assert.Equal(t, "C", rc.NewRow["name"])
		case ChangeRemoved:
			removed++
			assert.Equal(t, "B", rc.OldRow["name"])
		}
	}
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, res.Statistics.RowsAdded)
	assert.Equal(t, 1, res.Statistics.RowsRemoved)
}

func TestCompareTables_PositionalFallbackWithoutKeys(t *testing.T) {
	t.Parallel()

	e := NewEngine(Options{})
	oldTab := mustTable(t, "name,phone\nA,1\nB,2\n")
	newTab := mustTable(t, "name,phone\nA,1\nB,9\n")

	res, err := e.CompareTables(oldTab, newTab)
	require.NoError(t, err)

	require.Len(t, res.RowChanges, 1)
	rc := res.RowChanges[0]
	assert.Equal(t, ChangeModified, rc.ChangeType)
	assert.Equal(t, 1, rc.RowIndex)
	require.Len(t, rc.CellChanges, 1)
	assert.Equal(t, "phone", rc.CellChanges[0].Column)
}

func TestCompareTables_MoveDetection(t *testing.T) {
	t.Parallel()

	oldContent := "name,phone\nA,1\nB,2\nC,3\n"
	newContent := "name,phone\nB,2\nA,1\nC,3\n"

	withMoves := NewEngine(Options{DetectMoves: true})
	res, err := withMoves.CompareTables(mustTable(t, oldContent), mustTable(t, newContent))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Statistics.RowsMoved)
	for _, rc := range res.RowChanges {
		assert.Equal(t, ChangeMoved, rc.ChangeType)
		assert.Equal(t, 1.0, rc.Similarity, "moves require unchanged content")
	}

	withoutMoves := NewEngine(Options{DetectMoves: false})
	res2, err := withoutMoves.CompareTables(mustTable(t, oldContent), mustTable(t, newContent))
	require.NoError(t, err)
	assert.Empty(t, res2.RowChanges, "relocated identical rows are unchanged when move detection is off")
}

func TestCompareTables_Symmetry(t *testing.T) {
	t.Parallel()

	oldContent := "name,phone\nA,1\nB,2\nC,3\n"
	newContent := "name,phone\nA,9\nC,3\nD,4\n"
	e := NewEngine(Options{KeyColumns: []string{"name"}})

	forward, err := e.CompareTables(mustTable(t, oldContent), mustTable(t, newContent))
	require.NoError(t, err)
	backward, err := e.CompareTables(mustTable(t, newContent), mustTable(t, oldContent))
	require.NoError(t, err)

	assert.Equal(t, forward.Statistics.RowsAdded, backward.Statistics.RowsRemoved)
	assert.Equal(t, forward.Statistics.RowsRemoved, backward.Statistics.RowsAdded)
	assert.Equal(t, forward.Statistics.RowsModified, backward.Statistics.RowsModified)

	modifiedKeys := func(r *Result) []string {
		var keys []string
		for _, rc := range r.RowChanges {
			if rc.ChangeType == ChangeModified {
				if rc.NewRow != nil {
					keys = append(keys, rc.NewRow["name"])
				}
			}
		}
		return keys
	}
	assert.ElementsMatch(t, modifiedKeys(forward), modifiedKeys(backward))
}

func TestCompareTables_Truncation(t *testing.T) {
	t.Parallel()

	e := NewEngine(Options{MaxRows: 2})
	oldTab := mustTable(t, "v\n1\n2\n3\n4\n")
	newTab := mustTable(t, "v\n1\n2\n3\n4\n")

	res, err := e.CompareTables(oldTab, newTab)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 2, res.Statistics.OldRowCount)
}

func TestCompareFiles_TextMode(t *testing.T) {
	t.Parallel()

	oldPath := writeFile(t, "old.csv", "name,phone\nA,1\nB,2\n")
	newPath := writeFile(t, "new.csv", "name,phone\nA,1\nB,9\nC,3\n")

	e := NewEngine(Options{Mode: ModeText})
	res, err := e.CompareFiles(oldPath, newPath)
	require.NoError(t, err)

	assert.Contains(t, res.TextDiff, "-B,2")
	assert.Contains(t, res.TextDiff, "+B,9")
	assert.Contains(t, res.TextDiff, "+C,3")
	assert.Equal(t, 1, res.Statistics.RowsModified)
	assert.Equal(t, 1, res.Statistics.RowsAdded)
	assert.Equal(t, 0, res.Statistics.RowsRemoved)
}

func TestCompareFiles_HybridIncludesTextDiff(t *testing.T) {
	t.Parallel()

	oldPath := writeFile(t, "old.csv", "name,phone\nA,1\n")
	newPath := writeFile(t, "new.csv", "name,phone\nA,2\n")

	e := NewEngine(Options{Mode: ModeHybrid})
	res, err := e.CompareFiles(oldPath, newPath)
	require.NoError(t, err)

	assert.NotEmpty(t, res.TextDiff)
	assert.Equal(t, 1, res.Statistics.RowsModified)
}

func TestCompareFiles_SchemaMode(t *testing.T) {
	t.Parallel()

	oldPath := writeFile(t, "old.csv", "name,address,phone\nA,x,1\n")
	newPath := writeFile(t, "new.csv", "name,phone,address,website\nA,1,x,\n")

	e := NewEngine(Options{Mode: ModeSchema})
	res, err := e.CompareFiles(oldPath, newPath)
	require.NoError(t, err)

	assert.Len(t, res.SchemaChanges, 3)
	assert.Empty(t, res.RowChanges, "schema mode reports no row changes")
}

func TestCompareFiles_UnreadableFile(t *testing.T) {
	t.Parallel()

	newPath := writeFile(t, "new.csv", "a\n1\n")
	e := NewEngine(Options{})
	_, err := e.CompareFiles(filepath.Join(t.TempDir(), "missing.csv"), newPath)
	assert.Error(t, err)
}

func TestStatistics_ChangePercentAndTopColumns(t *testing.T) {
	t.Parallel()

	e := NewEngine(Options{KeyColumns: []string{"id"}, TopColumns: 2})
	oldTab := mustTable(t, "id,a,b,c\n1,x,y,z\n2,x,y,z\n3,x,y,z\n4,x,y,z\n")
	newTab := mustTable(t, "id,a,b,c\n1,X,Y,z\n2,X,y,z\n3,x,y,z\n4,x,y,z\n")

	res, err := e.CompareTables(oldTab, newTab)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Statistics.RowsModified)
	assert.Equal(t, 3, res.Statistics.CellChanges)
	assert.InDelta(t, 50.0, res.Statistics.ChangePercent, 0.001)

	require.Len(t, res.Statistics.TopColumns, 2)
	assert.Equal(t, ColumnRank{Column: "a", Changes: 2}, res.Statistics.TopColumns[0])
	assert.Equal(t, ColumnRank{Column: "b", Changes: 1}, res.Statistics.TopColumns[1])
}
