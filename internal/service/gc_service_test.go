package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/domain"
)

// gcMockBlobRepository is a minimal repository.BlobRepository double
// focused on the orphan-listing/deletion path the collector exercises.
type gcMockBlobRepository struct {
	mockBlobRepository2

	orphans     []*domain.Blob
	listErr     error
	deleted     []string
	deleteErr   error
	listOrphans func(ctx context.Context, gracePeriod time.Duration, limit int) ([]*domain.Blob, error)
}

func (m *gcMockBlobRepository) ListOrphans(ctx context.Context, gracePeriod time.Duration, limit int) ([]*domain.Blob, error) {
	if m.listOrphans != nil {
		return m.listOrphans(ctx, gracePeriod, limit)
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit < len(m.orphans) {
		return m.orphans[:limit], nil
	}
	return m.orphans, nil
}

func (m *gcMockBlobRepository) Delete(ctx context.Context, contentHash string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, contentHash)
	return nil
}

// gcMockStorageBackend is a minimal storage.Backend double.
type gcMockStorageBackend struct {
	mockStorageBackend2

	blobs       map[string][]byte
	retrieveErr error
	deleteErr   error
	deleted     []string
}

func newGCMockStorageBackend() *gcMockStorageBackend {
	return &gcMockStorageBackend{blobs: make(map[string][]byte)}
}

func (m *gcMockStorageBackend) Retrieve(ctx context.Context, hash string) (io.ReadCloser, error) {
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	data, ok := m.blobs[hash]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *gcMockStorageBackend) Delete(ctx context.Context, hash string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, hash)
	return nil
}

// gcMockLocker is an in-memory lock.Locker double.
type gcMockLocker struct {
	mu         sync.Mutex
	held       map[string]bool
	acquireErr error
	denyAll    bool
}

func newGCMockLocker() *gcMockLocker {
	return &gcMockLocker{held: make(map[string]bool)}
}

func (l *gcMockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denyAll || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *gcMockLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return l.Acquire(ctx, key, ttl)
}

func (l *gcMockLocker) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held[key] {
		return false, nil
	}
	delete(l.held, key)
	return true, nil
}

func (l *gcMockLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key], nil
}

func (l *gcMockLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key], nil
}

// gcMockMirror is a mirror.Mirror double that records what it was asked to replicate.
type gcMockMirror struct {
	mu           sync.Mutex
	replicated   []string
	replicateErr error
}

func (m *gcMockMirror) Replicate(ctx context.Context, contentHash string, r io.Reader, size int64) error {
	if m.replicateErr != nil {
		return m.replicateErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicated = append(m.replicated, contentHash)
	return nil
}

func newTestGC(blobRepo *gcMockBlobRepository, storage *gcMockStorageBackend, locker *gcMockLocker, config GCConfig) *GarbageCollector {
	return NewGarbageCollector(blobRepo, storage, locker, nil, zerolog.Nop(), config)
}

func TestGCDryRunDoesNotDeleteAnything(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 100},
		{ContentHash: "hash-2", Size: 200},
	}}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
		DryRun:      true,
	})

	result := gc.RunOnce(context.Background())

	require.Equal(t, 2, result.BlobsDeleted)
	require.Equal(t, int64(300), result.BytesFreed)
	require.Zero(t, result.Errors)
	require.Empty(t, storage.deleted)
	require.Empty(t, blobRepo.deleted)
}

func TestGCDeletesOrphansFromStorageAndRepo(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 100},
		{ContentHash: "hash-2", Size: 200},
	}}
	storage := newGCMockStorageBackend()
	storage.blobs["hash-1"] = []byte("a")
	storage.blobs["hash-2"] = []byte("b")
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	result := gc.RunOnce(context.Background())

	require.Equal(t, 2, result.BlobsDeleted)
	require.Equal(t, int64(300), result.BytesFreed)
	require.Zero(t, result.Errors)
	require.ElementsMatch(t, []string{"hash-1", "hash-2"}, storage.deleted)
	require.ElementsMatch(t, []string{"hash-1", "hash-2"}, blobRepo.deleted)
}

func TestGCToleratesStorageNotFoundAndStillDeletesFromRepo(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 100},
	}}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	result := gc.RunOnce(context.Background())

	require.Equal(t, 1, result.BlobsDeleted)
	require.Zero(t, result.Errors)
	require.Equal(t, []string{"hash-1"}, blobRepo.deleted)
}

func TestGCNoOrphansIsANoop(t *testing.T) {
	blobRepo := &gcMockBlobRepository{}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	result := gc.RunOnce(context.Background())
	require.Zero(t, result.BlobsDeleted)
	require.Zero(t, result.Errors)
}

func TestGCSkipsRunWhenLockAlreadyHeld(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{{ContentHash: "hash-1", Size: 1}}}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()
	locker.denyAll = true

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	result := gc.RunOnce(context.Background())
	require.Zero(t, result.BlobsDeleted)
	require.Zero(t, result.Errors)
	require.Empty(t, blobRepo.deleted)
}

func TestGCRecordsErrorOnLockAcquireFailure(t *testing.T) {
	blobRepo := &gcMockBlobRepository{}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()
	locker.acquireErr = errors.New("redis unavailable")

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	result := gc.RunOnce(context.Background())
	require.Equal(t, 1, result.Errors)
}

func TestGCReleasesLockAfterRun(t *testing.T) {
	blobRepo := &gcMockBlobRepository{}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	gc.RunOnce(context.Background())

	held, err := locker.IsHeld(context.Background(), "lock:gc:blob")
	require.NoError(t, err)
	require.False(t, held)
}

func TestGCMirrorsBeforeDeletingWhenConfigured(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 5},
	}}
	storage := newGCMockStorageBackend()
	storage.blobs["hash-1"] = []byte("hello")
	locker := newGCMockLocker()
	mirror := &gcMockMirror{}

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})
	gc.SetMirror(mirror)

	result := gc.RunOnce(context.Background())

	require.Equal(t, 1, result.BlobsDeleted)
	require.Zero(t, result.Errors)
	require.Equal(t, []string{"hash-1"}, mirror.replicated)
	require.Equal(t, []string{"hash-1"}, storage.deleted)
}

func TestGCSkipsDeletionWhenMirrorFails(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 5},
	}}
	storage := newGCMockStorageBackend()
	storage.blobs["hash-1"] = []byte("hello")
	locker := newGCMockLocker()
	mirror := &gcMockMirror{replicateErr: errors.New("upstream unreachable")}

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})
	gc.SetMirror(mirror)

	result := gc.RunOnce(context.Background())

	require.Zero(t, result.BlobsDeleted)
	require.Equal(t, 1, result.Errors)
	require.Empty(t, storage.deleted)
	require.Empty(t, blobRepo.deleted)
}

func TestGCMirrorSkippedWhenBlobAlreadyGoneFromStorage(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 5},
	}}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()
	mirror := &gcMockMirror{}

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})
	gc.SetMirror(mirror)

	result := gc.RunOnce(context.Background())

	require.Equal(t, 1, result.BlobsDeleted)
	require.Zero(t, result.Errors)
	require.Empty(t, mirror.replicated)
	require.Equal(t, []string{"hash-1"}, blobRepo.deleted)
}

func TestGCGetStatsSummarizesOrphans(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 100},
		{ContentHash: "hash-2", Size: 250},
	}}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: 24 * time.Hour,
		BatchSize:   10,
		Interval:    time.Hour,
	})

	stats, err := gc.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.OrphanBlobCount)
	require.Equal(t, int64(350), stats.OrphanBlobSize)
	require.False(t, stats.HasMoreOrphans)
	require.Equal(t, 24*time.Hour, stats.GracePeriod)
	require.Equal(t, time.Hour, stats.NextRunIn)
}

func TestGCGetStatsFlagsMoreOrphansBeyondBatchSize(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{
		{ContentHash: "hash-1", Size: 1},
		{ContentHash: "hash-2", Size: 1},
		{ContentHash: "hash-3", Size: 1},
	}}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   2,
	})

	stats, err := gc.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.OrphanBlobCount)
	require.True(t, stats.HasMoreOrphans)
}

func TestGCListOrphansErrorIsRecorded(t *testing.T) {
	blobRepo := &gcMockBlobRepository{listErr: errors.New("db down")}
	storage := newGCMockStorageBackend()
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
	})

	result := gc.RunOnce(context.Background())
	require.Equal(t, 1, result.Errors)
	require.Zero(t, result.BlobsDeleted)
}

func TestGCStartStopRunsAtLeastOnce(t *testing.T) {
	blobRepo := &gcMockBlobRepository{orphans: []*domain.Blob{{ContentHash: "hash-1", Size: 1}}}
	storage := newGCMockStorageBackend()
	storage.blobs["hash-1"] = []byte("x")
	locker := newGCMockLocker()

	gc := newTestGC(blobRepo, storage, locker, GCConfig{
		GracePeriod: time.Hour,
		BatchSize:   10,
		Interval:    time.Hour,
	})

	gc.Start()
	gc.Start() // second call is a no-op while already running
	time.Sleep(10 * time.Millisecond)
	gc.Stop()

	require.Equal(t, []string{"hash-1"}, blobRepo.deleted)
}
