package local

import (
	"fmt"
	"io/fs"
)

// etag derives an advisory ETag from (inode, mtime, size), the same scheme
// used by Apache's mod_core FileETag and inherited here: collisions under
// heavy file churn are acceptable, the value is never treated as a strong
// identity check beyond If-Match comparisons.
func etag(fi fs.FileInfo) string {
	inode := inodeOf(fi)
	size := uint64(fi.Size())
	mtimeMicros := uint64(fi.ModTime().UnixMicro())
	if fi.ModTime().IsZero() {
		mtimeMicros = 0
	}
	return fmt.Sprintf("%x-%x-%x", inode, mtimeMicros, size)
}
