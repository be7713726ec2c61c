package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/objectstore"
)

func newTestFS(t *testing.T, opts ...Option) (*FileSystem, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewWithPrefix(dir, opts...)
	require.NoError(t, err)
	return fs, dir
}

func TestPutAndGetRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("a/b/c.txt")

	result, err := fs.Put(ctx, loc, []byte("hello world"))
	require.NoError(t, err)
	require.NotEmpty(t, result.ETag)

	got, err := fs.Get(ctx, loc)
	require.NoError(t, err)
	data, err := got.Read()
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestPutCreatesNestedDirectories(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("deep/nested/path/file.bin"), []byte("x"))
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "deep", "nested", "path", "file.bin"))
	require.NoError(t, statErr)
}

func TestPutLeavesNoStagingFileBehind(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("file.bin"), []byte("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "file.bin", entries[0].Name())
}

func TestPutModeCreateFailsIfExists(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("file.bin")

	_, err := fs.PutOpts(ctx, loc, []byte("x"), objectstore.PutOptions{Mode: objectstore.PutModeCreate})
	require.NoError(t, err)

	_, err = fs.PutOpts(ctx, loc, []byte("y"), objectstore.PutOptions{Mode: objectstore.PutModeCreate})
	require.Error(t, err)
	require.True(t, errors.Is(err, objectstore.ErrAlreadyExists))
}

func TestPutModeUpdateNotImplemented(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.PutOpts(ctx, objectstore.NewPath("file.bin"), []byte("x"), objectstore.PutOptions{Mode: objectstore.PutModeUpdate})
	require.True(t, errors.Is(err, objectstore.ErrNotImplemented))
}

func TestGetMissingObjectReturnsNotFound(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Get(ctx, objectstore.NewPath("missing.bin"))
	require.True(t, errors.Is(err, objectstore.ErrNotFound))
}

func TestGetRangeBeyondEndOfFile(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("small.bin")

	_, err := fs.Put(ctx, loc, make([]byte, 14))
	require.NoError(t, err)

	_, err = fs.GetRange(ctx, loc, objectstore.ByteRange{Start: 20, End: 30})
	require.True(t, errors.Is(err, objectstore.ErrInvalidRange))
}

func TestGetRangeClampsEnd(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("small.bin")

	_, err := fs.Put(ctx, loc, []byte("0123456789"))
	require.NoError(t, err)

	buf, err := fs.GetRange(ctx, loc, objectstore.ByteRange{Start: 5, End: 1000})
	require.NoError(t, err)
	require.Equal(t, "56789", string(buf))
}

func TestHeadReturnsStableETag(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("file.bin")

	_, err := fs.Put(ctx, loc, []byte("content"))
	require.NoError(t, err)

	m1, err := fs.Head(ctx, loc)
	require.NoError(t, err)
	m2, err := fs.Head(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, m1.ETag, m2.ETag)
	require.NotEmpty(t, m1.ETag)
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("file.bin")

	_, err := fs.Put(ctx, loc, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Delete(ctx, loc))

	_, err = fs.Get(ctx, loc)
	require.True(t, errors.Is(err, objectstore.ErrNotFound))
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.Delete(context.Background(), objectstore.NewPath("nope.bin"))
	require.True(t, errors.Is(err, objectstore.ErrNotFound))
}

func TestDeleteWithAutomaticCleanupRemovesEmptyParents(t *testing.T) {
	fs, dir := newTestFS(t, WithAutomaticCleanup(true))
	ctx := context.Background()
	loc := objectstore.NewPath("a/b/c/file.bin")

	_, err := fs.Put(ctx, loc, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Delete(ctx, loc))

	_, statErr := os.Stat(filepath.Join(dir, "a"))
	require.True(t, os.IsNotExist(statErr))
}

func TestDeleteWithoutAutomaticCleanupKeepsEmptyParents(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("a/b/file.bin")

	_, err := fs.Put(ctx, loc, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Delete(ctx, loc))

	_, statErr := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, statErr)
}

func TestPathRejectsStagingSuffix(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("file.bin#3"), []byte("x"))
	require.True(t, errors.Is(err, objectstore.ErrInvalidPath))
}

func TestListHidesStagingFiles(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("visible.bin"), []byte("x"))
	require.NoError(t, err)
	// Simulate a staging file left over from an aborted upload.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.bin#0"), []byte("partial"), 0o644))

	ch, err := fs.List(ctx, nil)
	require.NoError(t, err)

	var names []string
	for entry := range ch {
		require.NoError(t, entry.Err)
		name, _ := entry.Meta.Location.Filename()
		names = append(names, name)
	}
	require.Equal(t, []string{"visible.bin"}, names)
}

func TestListWithDelimiterSeparatesPrefixesAndObjects(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	for _, p := range []string{"dir1/a.bin", "dir1/b.bin", "dir2/c.bin", "top.bin"} {
		_, err := fs.Put(ctx, objectstore.NewPath(p), []byte("x"))
		require.NoError(t, err)
	}

	result, err := fs.ListWithDelimiter(ctx, nil)
	require.NoError(t, err)

	require.Len(t, result.Objects, 1)
	require.Equal(t, "top.bin", result.Objects[0].Location.String())

	var prefixNames []string
	for _, p := range result.CommonPrefixes {
		prefixNames = append(prefixNames, p.String())
	}
	require.ElementsMatch(t, []string{"dir1", "dir2"}, prefixNames)
}

func TestCopyIfNotExistsFailsWhenDestinationExists(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("src.bin"), []byte("x"))
	require.NoError(t, err)
	_, err = fs.Put(ctx, objectstore.NewPath("dst.bin"), []byte("y"))
	require.NoError(t, err)

	err = fs.CopyIfNotExists(ctx, objectstore.NewPath("src.bin"), objectstore.NewPath("dst.bin"))
	require.True(t, errors.Is(err, objectstore.ErrAlreadyExists))
}

func TestCopyCreatesIndependentCopy(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("src.bin"), []byte("original"))
	require.NoError(t, err)
	require.NoError(t, fs.Copy(ctx, objectstore.NewPath("src.bin"), objectstore.NewPath("dst.bin")))

	got, err := fs.Get(ctx, objectstore.NewPath("dst.bin"))
	require.NoError(t, err)
	data, err := got.Read()
	require.NoError(t, err)
	require.Equal(t, "original", string(data))

	_, err = fs.Get(ctx, objectstore.NewPath("src.bin"))
	require.NoError(t, err)
}

func TestRenameMovesObject(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Put(ctx, objectstore.NewPath("src.bin"), []byte("content"))
	require.NoError(t, err)
	require.NoError(t, fs.Rename(ctx, objectstore.NewPath("src.bin"), objectstore.NewPath("dst.bin")))

	_, err = fs.Get(ctx, objectstore.NewPath("src.bin"))
	require.True(t, errors.Is(err, objectstore.ErrNotFound))

	got, err := fs.Get(ctx, objectstore.NewPath("dst.bin"))
	require.NoError(t, err)
	data, err := got.Read()
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
}
