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

func TestMultipartUploadSequentialParts(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("multi.bin")

	upload, err := fs.PutMultipart(ctx, loc)
	require.NoError(t, err)

	part1, err := upload.PutPart(ctx, []byte("hello "))
	require.NoError(t, err)
	require.NoError(t, part1.Wait(ctx))

	part2, err := upload.PutPart(ctx, []byte("world"))
	require.NoError(t, err)
	require.NoError(t, part2.Wait(ctx))

	result, err := upload.Complete(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, result.ETag)

	got, err := fs.Get(ctx, loc)
	require.NoError(t, err)
	data, err := got.Read()
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestMultipartUploadAbortRemovesStaging(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("aborted.bin")

	upload, err := fs.PutMultipart(ctx, loc)
	require.NoError(t, err)

	_, err = upload.PutPart(ctx, []byte("partial"))
	require.NoError(t, err)
	require.NoError(t, upload.Abort(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = fs.Get(ctx, loc)
	require.True(t, errors.Is(err, objectstore.ErrNotFound))
}

func TestMultipartUploadCompleteAfterAbortFails(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	upload, err := fs.PutMultipart(ctx, objectstore.NewPath("x.bin"))
	require.NoError(t, err)
	require.NoError(t, upload.Abort(ctx))

	_, err = upload.Complete(ctx)
	require.True(t, errors.Is(err, objectstore.ErrAborted))
}

func TestMultipartUploadPutPartAfterCompleteFails(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	upload, err := fs.PutMultipart(ctx, objectstore.NewPath("x.bin"))
	require.NoError(t, err)
	_, err = upload.PutPart(ctx, []byte("data"))
	require.NoError(t, err)
	_, err = upload.Complete(ctx)
	require.NoError(t, err)

	_, err = upload.PutPart(ctx, []byte("more"))
	require.True(t, errors.Is(err, objectstore.ErrAborted))
}

func TestMultipartUploadCloseAbortsUnfinishedUpload(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()

	upload, err := fs.PutMultipart(ctx, objectstore.NewPath("x.bin"))
	require.NoError(t, err)
	_, err = upload.PutPart(ctx, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, upload.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMultipartUploadPartsLandAtCapturedOffsetsRegardlessOfCompletionOrder(t *testing.T) {
	fs, dir := newTestFS(t)
	ctx := context.Background()
	loc := objectstore.NewPath("ordered.bin")

	upload, err := fs.PutMultipart(ctx, loc)
	require.NoError(t, err)

	// Offsets are captured synchronously at PutPart call time, so issuing
	// part A then part B guarantees A's bytes precede B's regardless of
	// which write actually finishes first.
	partA, err := upload.PutPart(ctx, []byte("AAAA"))
	require.NoError(t, err)
	partB, err := upload.PutPart(ctx, []byte("BBBB"))
	require.NoError(t, err)
	require.NoError(t, partB.Wait(ctx))
	require.NoError(t, partA.Wait(ctx))

	_, err = upload.Complete(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "ordered.bin"))
	require.NoError(t, err)
	require.Equal(t, "AAAABBBB", string(data))
}
