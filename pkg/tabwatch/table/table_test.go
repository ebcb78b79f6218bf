package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shops.csv")
	content := "name,address,phone\nBook Haven,12 Main St,555-0101\nInk & Paper,9 Elm Rd,555-0102\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tab, err := Read(path, DefaultDialect())
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "address", "phone"}, tab.Headers)
	require.Len(t, tab.Rows, 2)
	assert.Equal(t, "Book Haven", tab.Rows[0][0])
	assert.Equal(t, path, tab.Path)
	assert.Equal(t, int64(len(content)), tab.Size)
}

func TestReadBytes_StripsBOM(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,phone\na,1\n")...)
	tab, err := ReadBytes(data, DefaultDialect())
	require.NoError(t, err)
	assert.Equal(t, "name", tab.Headers[0])
}

func TestReadReader_CustomDelimiter(t *testing.T) {
	t.Parallel()

	tab, err := ReadReader(strings.NewReader("a;b\n1;2\n"), Dialect{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tab.Headers)
	assert.Equal(t, "2", tab.Cell(0, 1))
}

func TestReadReader_Empty(t *testing.T) {
	t.Parallel()

	_, err := ReadReader(strings.NewReader(""), DefaultDialect())
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadReader_RaggedRows(t *testing.T) {
	t.Parallel()

	tab, err := ReadReader(strings.NewReader("a,b,c\n1,2\n1,2,3,4\n"), DefaultDialect())
	require.NoError(t, err)
	require.Len(t, tab.Rows, 2)

	// Short rows read as empty via Cell.
	assert.Equal(t, "", tab.Cell(0, 2))
	assert.Equal(t, "3", tab.Cell(1, 2))
}

func TestRowMap(t *testing.T) {
	t.Parallel()

	tab, err := ReadReader(strings.NewReader("name,phone\nBook Haven,555-0101\n"), DefaultDialect())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Book Haven", "phone": "555-0101"}, tab.RowMap(0))
}

func TestColumnIndex(t *testing.T) {
	t.Parallel()

	tab := &Table{Headers: []string{"name", "phone"}}
	assert.Equal(t, 1, tab.ColumnIndex("phone"))
	assert.Equal(t, -1, tab.ColumnIndex("missing"))
}

func TestIsEmptyRow(t *testing.T) {
	t.Parallel()

	tab, err := ReadReader(strings.NewReader("a,b\n , \nx,\n"), DefaultDialect())
	require.NoError(t, err)
	assert.True(t, tab.IsEmptyRow(0))
	assert.False(t, tab.IsEmptyRow(1))
	assert.True(t, tab.IsEmptyRow(99))
}
