//go:build windows

package local

import "io/fs"

// inodeOf always returns 0 on Windows: os.FileInfo carries no inode-like
// field there, matching the original's "fallback to size and mtime" path.
func inodeOf(fi fs.FileInfo) uint64 {
	return 0
}
