package filesystem

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func contentHashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	content := []byte("hello blob storage")

	hash, err := s.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.Equal(t, contentHashOf(content), hash)

	r, err := s.Retrieve(ctx, hash)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestStoreWithDedupSecondStoreIsNotNew(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	content := []byte("duplicate content")

	hash1, isNew1, err := s.StoreWithDedup(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.True(t, isNew1)

	hash2, isNew2, err := s.StoreWithDedup(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.False(t, isNew2)
	require.Equal(t, hash1, hash2)
}

func TestRetrieveMissingBlobReturnsDomainError(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Retrieve(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000")
	require.True(t, errors.Is(err, domain.ErrBlobNotFound))
}

func TestDeleteMissingBlobReturnsDomainError(t *testing.T) {
	s := newTestStorage(t)
	err := s.Delete(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000")
	require.True(t, errors.Is(err, domain.ErrBlobNotFound))
}

func TestExistsReflectsStoredBlobs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	content := []byte("exists check")

	hash, err := s.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists(ctx, "deadbeef")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetSizeMatchesStoredLength(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	content := []byte("twelve bytes")

	hash, err := s.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	size, err := s.GetSize(ctx, hash)
	require.NoError(t, err)
	require.EqualValues(t, len(content), size)
}

func TestDeleteRemovesBlob(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	content := []byte("to be deleted")

	hash, err := s.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, hash))

	ok, err := s.Exists(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStatsCountsStoredBlobsExcludingTempPrefix(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.Store(ctx, bytes.NewReader([]byte("one")), 3)
	require.NoError(t, err)
	_, err = s.Store(ctx, bytes.NewReader([]byte("two!")), 4)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalBlobs)
	require.EqualValues(t, 7, stats.TotalSize)
}
