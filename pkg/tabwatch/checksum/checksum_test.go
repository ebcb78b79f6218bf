package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"xxhash64", XXHash64, false},
		{"XXHash", XXHash64, false},
		{"sha256", SHA256, false},
		{"SHA-256", SHA256, false},
		{"md5", XXHash64, true},
		{"", XXHash64, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownAlgorithm, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBytes_KnownValues(t *testing.T) {
	t.Parallel()

	// sha256 of "hello" is a well-known vector.
	sum, err := Bytes([]byte("hello"), SHA256)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	x1, err := Bytes([]byte("hello"), XXHash64)
	require.NoError(t, err)
	x2, err := Bytes([]byte("hello"), XXHash64)
	require.NoError(t, err)
	assert.Equal(t, x1, x2, "xxhash must be deterministic")

	x3, err := Bytes([]byte("hello!"), XXHash64)
	require.NoError(t, err)
	assert.NotEqual(t, x1, x3)
}

func TestFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,phone\na,1\n"), 0o644))

	fromFile, err := File(path, SHA256)
	require.NoError(t, err)

	fromReader, err := Reader(strings.NewReader("name,phone\na,1\n"), SHA256)
	require.NoError(t, err)
	assert.Equal(t, fromReader, fromFile)
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := File(filepath.Join(t.TempDir(), "nope.csv"), XXHash64)
	assert.Error(t, err)
}
