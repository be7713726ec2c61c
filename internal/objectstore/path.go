// Package objectstore defines the CAS-independent object-store contract the
// library's backends implement: a location type (Path), object metadata,
// put/get/list/copy option structs, and the ObjectStore/MultipartUpload
// interfaces. Concrete backends (local, and anything else) live in
// sub-packages; this package only describes the shape they share.
package objectstore

import (
	"regexp"
	"strings"
)

// stagingSuffixRe matches a final path segment ending in "#<digits>", the
// reserved staging-file pattern no public location may use.
var stagingSuffixRe = regexp.MustCompile(`#\d+$`)

// Path is a forward-slash-delimited logical object location. The empty Path
// refers to the root of a store. Construct one with NewPath; the zero value
// is already a valid (root) Path.
type Path struct {
	raw string
}

// NewPath parses s into a Path, discarding leading/trailing/duplicate
// slashes so that "a/b", "/a/b/", and "a//b" all normalize identically.
func NewPath(s string) Path {
	parts := splitNonEmpty(s)
	return Path{raw: strings.Join(parts, "/")}
}

func splitNonEmpty(s string) []string {
	segments := strings.Split(s, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// String returns the normalized "a/b/c" form, empty for the root.
func (p Path) String() string { return p.raw }

// IsRoot reports whether p refers to the store root.
func (p Path) IsRoot() bool { return p.raw == "" }

// Parts returns the path's segments in order.
func (p Path) Parts() []string {
	if p.raw == "" {
		return nil
	}
	return strings.Split(p.raw, "/")
}

// Filename returns the final segment and true, or ("", false) for the root.
func (p Path) Filename() (string, bool) {
	parts := p.Parts()
	if len(parts) == 0 {
		return "", false
	}
	return parts[len(parts)-1], true
}

// Child appends a single segment, returning the extended Path.
func (p Path) Child(segment string) Path {
	if p.raw == "" {
		return NewPath(segment)
	}
	return Path{raw: p.raw + "/" + strings.Trim(segment, "/")}
}

// HasPrefix reports whether prefix's segments are an exact leading run of
// p's segments (not merely a string prefix — "ab/c" is not prefixed by
// "a").
func (p Path) HasPrefix(prefix Path) bool {
	_, ok := p.StripPrefix(prefix)
	return ok
}

// StripPrefix returns the segments of p following prefix's segments, and
// true, if prefix is a genuine segment-wise prefix of p. It returns
// (nil, false) otherwise, including when p equals prefix (no remaining
// segments to iterate — the original's prefix_match skips such entries too).
func (p Path) StripPrefix(prefix Path) ([]string, bool) {
	pre := prefix.Parts()
	all := p.Parts()
	if len(all) <= len(pre) {
		return nil, false
	}
	for i, seg := range pre {
		if all[i] != seg {
			return nil, false
		}
	}
	return all[len(pre):], true
}

// Compare orders two Paths lexicographically over their normalized string
// form, matching the "lexicographic ordering over the logical path" the
// local backend's offset filter relies on.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.raw, other.raw)
}

// Less reports whether p sorts strictly before other.
func (p Path) Less(other Path) bool { return p.Compare(other) < 0 }

// Equal reports value equality.
func (p Path) Equal(other Path) bool { return p.raw == other.raw }

// IsValidFilePath reports whether p is safe to address on the local
// backend's public surface: its final segment must not match the reserved
// staging-file pattern `.*#\d+$`. The root path (no filename) is invalid —
// callers operating on files must have a filename.
func (p Path) IsValidFilePath() bool {
	name, ok := p.Filename()
	if !ok {
		return false
	}
	return !stagingSuffixRe.MatchString(name)
}

