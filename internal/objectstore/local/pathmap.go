package local

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cobaltfs/objectstore/internal/objectstore"
)

// rootConfig holds the backend's immutable root directory, established at
// construction and canonicalized (symlinks resolved) once.
type rootConfig struct {
	root string // absolute, OS-native, no trailing separator (except "/" itself)
}

// pathToFilesystem maps a logical Path onto an absolute filesystem path
// below the root, rejecting the reserved staging-file pattern.
func (c *rootConfig) pathToFilesystem(location objectstore.Path) (string, error) {
	if !location.IsValidFilePath() {
		name, _ := location.Filename()
		return "", objectstore.NewStoreError("LocalFileSystem", "path_to_filesystem", name, objectstore.ErrInvalidPath)
	}
	parts := location.Parts()
	joined := filepath.Join(append([]string{c.root}, parts...)...)
	return escapeWindowsColons(c.root, joined), nil
}

// filesystemToPath reverses pathToFilesystem, deriving the canonical
// logical Path for an absolute filesystem path known to be under the root.
func (c *rootConfig) filesystemToPath(absPath string) objectstore.Path {
	rel := strings.TrimPrefix(absPath, c.root)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	rel = unescapeWindowsColons(rel)
	segments := strings.Split(filepath.ToSlash(rel), "/")
	return objectstore.NewPath(strings.Join(segments, "/"))
}

// escapeWindowsColons percent-encodes any ':' appearing after the drive
// letter, matching the original's on-disk escaping for Windows paths (OS X
// and Linux permit ':' in filenames so no escaping is needed there).
func escapeWindowsColons(root, p string) string {
	if runtime.GOOS != "windows" {
		return p
	}
	if len(p) < 2 {
		return p
	}
	drive := p[:2]
	rest := strings.ReplaceAll(p[2:], ":", "%3A")
	return drive + rest
}

func unescapeWindowsColons(p string) string {
	if runtime.GOOS != "windows" {
		return p
	}
	return strings.ReplaceAll(p, "%3A", ":")
}

// stagedUploadPath returns the unique sibling path "{dest}#{n}".
func stagedUploadPath(dest string, n int) string {
	return fmt.Sprintf("%s#%d", dest, n)
}
