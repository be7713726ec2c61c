package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStagedUploadIncrementsOnCollision(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	f1, staging1, err := newStagedUpload(dest)
	require.NoError(t, err)
	defer f1.Close()
	require.Equal(t, dest+"#1", staging1)

	f2, staging2, err := newStagedUpload(dest)
	require.NoError(t, err)
	defer f2.Close()
	require.Equal(t, dest+"#2", staging2)
}

func TestNewStagedUploadCreatesAncestorDirectories(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a", "b", "c", "file.bin")

	f, staging, err := newStagedUpload(dest)
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(staging)
	require.NoError(t, err)
}

func TestRemoveStagingBestEffortIgnoresMissing(t *testing.T) {
	require.NotPanics(t, func() {
		removeStagingBestEffort(filepath.Join(t.TempDir(), "nonexistent#1"))
	})
}
