//go:build !windows

package local

import (
	"io/fs"
	"syscall"
)

// inodeOf returns the inode number backing fi, or 0 if the platform's
// Stat_t shape doesn't expose one.
func inodeOf(fi fs.FileInfo) uint64 {
	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Ino)
}
