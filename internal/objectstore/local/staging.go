package local

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/cobaltfs/objectstore/internal/objectstore"
)

// newStagedUpload opens a fresh "{dest}#{n}" file exclusively, creating the
// destination's ancestor directories on demand. n starts at 1 and
// increments past any collision, so concurrent writers to the same
// destination never contend for the same staging file.
func newStagedUpload(dest string) (*os.File, string, error) {
	n := 1
	for {
		staging := stagedUploadPath(dest, n)
		f, err := os.OpenFile(staging, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		switch {
		case err == nil:
			return f, staging, nil
		case errors.Is(err, os.ErrExist):
			n++
		case errors.Is(err, os.ErrNotExist):
			if mkErr := createParentDirs(staging); mkErr != nil {
				return nil, "", mkErr
			}
		default:
			return nil, "", objectstore.NewStoreError("LocalFileSystem", "create", staging, err)
		}
	}
}

// createParentDirs creates the full ancestor chain of path.
func createParentDirs(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return objectstore.NewStoreError("LocalFileSystem", "mkdir", dir, err)
	}
	return nil
}

// removeStagingBestEffort unlinks a staging file, ignoring the error: it is
// always called on an already-failing path and must never mask the
// original error or block retries on a dirty slate.
func removeStagingBestEffort(path string) {
	_ = os.Remove(path)
}
