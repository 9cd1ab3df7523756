package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAndBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("mapped file contents")
	require.NoError(t, os.WriteFile(path, content, 0600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, len(content), m.Size())
	require.Equal(t, content, m.Bytes())
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, 0, m.Size())
	require.Empty(t, m.Bytes())
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	m, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.Nil(t, m.Bytes())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
