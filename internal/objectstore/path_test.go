package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPathNormalizesSlashes(t *testing.T) {
	require.Equal(t, "a/b", NewPath("a/b").String())
	require.Equal(t, "a/b", NewPath("/a/b/").String())
	require.Equal(t, "a/b", NewPath("a//b").String())
	require.Equal(t, "", NewPath("").String())
	require.Equal(t, "", NewPath("///").String())
}

func TestPathIsRoot(t *testing.T) {
	require.True(t, NewPath("").IsRoot())
	require.False(t, NewPath("a").IsRoot())
}

func TestPathFilename(t *testing.T) {
	name, ok := NewPath("a/b/c.txt").Filename()
	require.True(t, ok)
	require.Equal(t, "c.txt", name)

	_, ok = NewPath("").Filename()
	require.False(t, ok)
}

func TestPathChild(t *testing.T) {
	require.Equal(t, "a/b", NewPath("a").Child("b").String())
	require.Equal(t, "b", NewPath("").Child("b").String())
}

func TestPathStripPrefix(t *testing.T) {
	rest, ok := NewPath("a/b/c").StripPrefix(NewPath("a"))
	require.True(t, ok)
	require.Equal(t, []string{"b", "c"}, rest)

	_, ok = NewPath("a").StripPrefix(NewPath("a"))
	require.False(t, ok, "equal paths have no remaining segments")

	_, ok = NewPath("ab/c").StripPrefix(NewPath("a"))
	require.False(t, ok, "segment-wise prefix only, not string prefix")
}

func TestPathHasPrefix(t *testing.T) {
	require.True(t, NewPath("a/b/c").HasPrefix(NewPath("a/b")))
	require.False(t, NewPath("a/b/c").HasPrefix(NewPath("x")))
}

func TestPathCompareAndLess(t *testing.T) {
	require.True(t, NewPath("a").Less(NewPath("b")))
	require.Equal(t, 0, NewPath("a").Compare(NewPath("a")))
}

func TestPathIsValidFilePath(t *testing.T) {
	require.True(t, NewPath("a/b.txt").IsValidFilePath())
	require.False(t, NewPath("a/b.txt#3").IsValidFilePath())
	require.False(t, NewPath("").IsValidFilePath())
}
