package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
)

func sampleResult() *diff.Result {
	return &diff.Result{
		Mode:       diff.ModeStructured,
		OldPath:    "/data/shops.csv",
		NewPath:    "/data/shops.csv.new",
		OldHeaders: []string{"name", "address", "phone"},
		NewHeaders: []string{"name", "phone", "address", "website"},
		Statistics: diff.Statistics{
			RowsAdded:     1,
			RowsModified:  1,
			CellChanges:   1,
			OldRowCount:   3,
			NewRowCount:   4,
			ChangePercent: 50.0,
			TopColumns:    []diff.ColumnRank{{Column: "phone", Changes: 1}},
		},
		SchemaChanges: []diff.SchemaChange{
			{Column: "website", ChangeType: diff.ChangeAdded, OldIndex: -1, NewIndex: 3},
			{Column: "address", ChangeType: diff.ChangeMoved, OldIndex: 1, NewIndex: 2},
		},
		RowChanges: []diff.RowChange{
			{
				RowIndex:   0,
				OldIndex:   0,
				NewIndex:   0,
				ChangeType: diff.ChangeModified,
				CellChanges: []diff.CellChange{
					{Column: "phone", OldValue: "555-0101", NewValue: "555-0199", ChangeType: diff.ChangeModified},
				},
				OldRow:     map[string]string{"name": "Book Haven", "phone": "555-0101"},
				NewRow:     map[string]string{"name": "Book Haven", "phone": "555-0199"},
				Similarity: 0.75,
			},
			{
				RowIndex:   3,
				OldIndex:   -1,
				NewIndex:   3,
				ChangeType: diff.ChangeAdded,
				NewRow:     map[string]string{"name": "New Leaf", "phone": "555-0142"},
			},
		},
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestRegistry(t *testing.T) {
	t.Run("available formats", func(t *testing.T) {
		names := Available()
		assert.Contains(t, names, "console")
		assert.Contains(t, names, "html")
		assert.Contains(t, names, "json")
		assert.Contains(t, names, "markdown")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := Get("xml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown report format")
	})

	t.Run("custom registry", func(t *testing.T) {
		reg := NewRegistry()
		assert.Empty(t, reg.Available())
		reg.Register("console", func() Formatter { return &ConsoleFormatter{} })
		f, err := reg.Get("console")
		require.NoError(t, err)
		assert.IsType(t, &ConsoleFormatter{}, f)
	})
}

func TestRender_Deterministic(t *testing.T) {
	res := sampleResult()
	for _, format := range Available() {
		t.Run(format, func(t *testing.T) {
			first, err := Render(res, format)
			require.NoError(t, err)
			second, err := Render(res, format)
			require.NoError(t, err)
			assert.Equal(t, first, second, "rendering must be byte-identical across runs")
			assert.NotEmpty(t, first)
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	text, err := Render(sampleResult(), "console")
	require.NoError(t, err)

	assert.Contains(t, text, "/data/shops.csv -> /data/shops.csv.new")
	assert.Contains(t, text, `+ column "website"`)
	assert.Contains(t, text, `~ column "address" moved 1 -> 2`)
	assert.Contains(t, text, `phone: "555-0101" -> "555-0199"`)
	assert.Contains(t, text, "Most changed columns: phone (1)")
	assert.NotContains(t, text, "NOTE: result is partial")
}

func TestConsoleFormat_Truncated(t *testing.T) {
	res := sampleResult()
	res.Truncated = true
	text, err := Render(res, "console")
	require.NoError(t, err)
	assert.Contains(t, text, "result is partial")
}

func TestJSONFormat(t *testing.T) {
	text, err := Render(sampleResult(), "json")
	require.NoError(t, err)

	var doc struct {
		Meta struct {
			Generator   string `json:"generator"`
			GeneratedAt string `json:"generated_at"`
		} `json:"meta"`
		Result diff.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &doc))

	assert.Equal(t, "tabwatch", doc.Meta.Generator)
	assert.Equal(t, "2026-03-14T09:30:00Z", doc.Meta.GeneratedAt)
	assert.Equal(t, 1, doc.Result.Statistics.RowsModified)
	assert.Len(t, doc.Result.RowChanges, 2)
}

func TestMarkdownFormat(t *testing.T) {
	text, err := Render(sampleResult(), "markdown")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "# Change Report"))
	assert.Contains(t, text, "| website | added |")
	assert.Contains(t, text, "| Modified | 1 |")
	assert.Contains(t, text, "`555-0101`")
}

func TestMarkdownFormat_EscapesPipes(t *testing.T) {
	res := sampleResult()
	res.RowChanges[0].CellChanges[0].NewValue = "a|b"
	text, err := Render(res, "markdown")
	require.NoError(t, err)
	assert.Contains(t, text, `a\|b`)
}

func TestHTMLFormat(t *testing.T) {
	text, err := Render(sampleResult(), "html")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "<!DOCTYPE html>"))
	assert.Contains(t, text, "<code>/data/shops.csv</code>")
	assert.Contains(t, text, "website")
	assert.Contains(t, text, "2026-03-14T09:30:00Z")
}

func TestHTMLFormat_EscapesMarkup(t *testing.T) {
	res := sampleResult()
	res.NewPath = "<script>alert(1)</script>"
	text, err := Render(res, "html")
	require.NoError(t, err)
	assert.NotContains(t, text, "<script>alert(1)</script>")
}

func TestRenderToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	text, err := RenderToFile(sampleResult(), "markdown", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
}

func TestRenderToFile_UnknownFormat(t *testing.T) {
	_, err := RenderToFile(sampleResult(), "nope", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}
