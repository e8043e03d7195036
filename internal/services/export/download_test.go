package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0644))
}

func TestFindNewDownload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old_export.csv")

	before, err := snapshotDir(dir)
	require.NoError(t, err)

	t.Run("pre-existing files ignored", func(t *testing.T) {
		path, err := findNewDownload(dir, before)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("in-progress transfer ignored", func(t *testing.T) {
		writeFile(t, dir, "export_20240101.csv.crdownload")
		path, err := findNewDownload(dir, before)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("non-csv ignored", func(t *testing.T) {
		writeFile(t, dir, "notes.txt")
		path, err := findNewDownload(dir, before)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("completed csv found", func(t *testing.T) {
		writeFile(t, dir, "export_20240101.csv")
		path, err := findNewDownload(dir, before)
		require.NoError(t, err)
		assert.Equal(t, "export_20240101.csv", filepath.Base(path))
		assert.True(t, filepath.IsAbs(path))
	})
}

func TestIsInProgress(t *testing.T) {
	assert.True(t, isInProgress("a.csv.crdownload"))
	assert.True(t, isInProgress("a.CSV.CRDOWNLOAD"))
	assert.True(t, isInProgress("a.part"))
	assert.True(t, isInProgress("a.tmp"))
	assert.False(t, isInProgress("a.csv"))
}

func TestSnapshotDirCreatesSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	before, err := snapshotDir(dir)
	require.NoError(t, err)
	assert.Empty(t, before)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
