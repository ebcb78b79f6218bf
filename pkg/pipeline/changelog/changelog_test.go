package changelog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwatch/tabwatch/pkg/pipeline/monitor"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func changeEvent(path string) monitor.Event {
	return monitor.Event{
		Kind:          monitor.EventChanged,
		Path:          path,
		Timestamp:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		CurrentDigest: "abc123",
		Size:          42,
	}
}

func TestAppend(t *testing.T) {
	l := openTestLog(t)

	valid := true
	entry, err := l.Append(changeEvent("/data/shops.csv"), &Metadata{
		BackupID: "backup-1",
		Valid:    &valid,
		RowCount: 10,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "/data/shops.csv", entry.Event.Path)
	assert.Equal(t, "backup-1", entry.Metadata.BackupID)

	second, err := l.Append(changeEvent("/data/shops.csv"), nil)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, entry.Seq, "sequence numbers increase monotonically")
	assert.NotEqual(t, entry.ID, second.ID)
}

func TestRecent(t *testing.T) {
	l := openTestLog(t)

	for _, path := range []string{"/a.csv", "/b.csv", "/c.csv"} {
		_, err := l.Append(changeEvent(path), nil)
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		entries, err := l.Recent(0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "/c.csv", entries[0].Event.Path)
		assert.Equal(t, "/a.csv", entries[2].Event.Path)
	})

	t.Run("limit", func(t *testing.T) {
		entries, err := l.Recent(2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "/c.csv", entries[0].Event.Path)
	})

	t.Run("empty log", func(t *testing.T) {
		empty := openTestLog(t)
		entries, err := empty.Recent(10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestByPath(t *testing.T) {
	l := openTestLog(t)

	_, err := l.Append(changeEvent("/data/shops.csv"), &Metadata{BackupID: "b1"})
	require.NoError(t, err)
	_, err = l.Append(changeEvent("/data/other.csv"), nil)
	require.NoError(t, err)
	_, err = l.Append(changeEvent("/data/shops.csv"), &Metadata{BackupID: "b2"})
	require.NoError(t, err)

	entries, err := l.ByPath("/data/shops.csv", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b2", entries[0].Metadata.BackupID, "newest first")
	assert.Equal(t, "b1", entries[1].Metadata.BackupID)

	limited, err := l.ByPath("/data/shops.csv", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b2", limited[0].Metadata.BackupID)

	none, err := l.ByPath("/nope.csv", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCount(t *testing.T) {
	l := openTestLog(t)

	count, err := l.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 0; i < 5; i++ {
		_, err := l.Append(changeEvent("/data/shops.csv"), nil)
		require.NoError(t, err)
	}

	count, err = l.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestExportJSON(t *testing.T) {
	l := openTestLog(t)

	first, err := l.Append(changeEvent("/a.csv"), nil)
	require.NoError(t, err)
	_, err = l.Append(changeEvent("/b.csv"), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, l.ExportJSON(&buf))

	var entries []Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID, "oldest first")
	assert.Equal(t, "/b.csv", entries[1].Event.Path)
}

func TestExportJSON_EmptyLogIsArray(t *testing.T) {
	l := openTestLog(t)

	var buf bytes.Buffer
	require.NoError(t, l.ExportJSON(&buf))
	assert.Equal(t, "[]", string(bytes.TrimSpace(buf.Bytes())))
}

func TestExportCSV(t *testing.T) {
	l := openTestLog(t)

	valid := false
	_, err := l.Append(changeEvent("/data/shops.csv"), &Metadata{
		BackupID:     "b1",
		Valid:        &valid,
		ErrorCount:   2,
		WarningCount: 1,
		RowCount:     30,
		ColumnCount:  4,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, l.ExportCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])

	row := records[1]
	assert.Equal(t, "changed", row[3])
	assert.Equal(t, "/data/shops.csv", row[4])
	assert.Equal(t, "b1", row[6])
	assert.Equal(t, "false", row[7])
	assert.Equal(t, "2", row[8])
}

func TestReopen_SequenceContinues(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	require.NoError(t, err)
	first, err := l.Append(changeEvent("/a.csv"), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(dir)
	require.NoError(t, err)
	defer l.Close()

	second, err := l.Append(changeEvent("/a.csv"), nil)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	entries, err := l.Recent(0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
