package local

import (
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cobaltfs/objectstore/internal/objectstore"
)

// uploadState is the mutable state shared by every part written to a
// staged multipart upload, guarded by mu so Complete can fence in-flight
// writes before it renames the staging file into place.
type uploadState struct {
	mu   sync.Mutex
	file *os.File
	dest string
}

// localUploadPart is the handle PutPart hands back; its write already ran
// synchronously by the time PutPart returns, so Wait is a no-op, matching
// the local backend's lack of genuine async I/O.
type localUploadPart struct{ err error }

func (p *localUploadPart) Wait(ctx context.Context) error { return p.err }

// localUpload implements objectstore.MultipartUpload against a single
// staged file: PutPart captures its offset synchronously (so sequential
// calls never race for the same byte range regardless of completion
// order), then seeks and writes under the shared mutex.
type localUpload struct {
	state    *uploadState
	staging  string
	dest     string
	executor objectstore.Executor
	offset   uint64
	done     int32 // 0 = open, 1 = completed or aborted
	gcGuard  *finalizerGuard
}

// finalizerGuard exists only so runtime.SetFinalizer has something to hang
// off that isn't the localUpload itself (a finalizer on a value reachable
// from its own finalizer closure never runs).
type finalizerGuard struct {
	staging string
	done    *int32
}

func newLocalUpload(staging, dest string, file *os.File, executor objectstore.Executor) *localUpload {
	u := &localUpload{
		state:    &uploadState{file: file, dest: dest},
		staging:  staging,
		dest:     dest,
		executor: executor,
	}
	guard := &finalizerGuard{staging: staging, done: &u.done}
	u.gcGuard = guard
	runtime.SetFinalizer(guard, func(g *finalizerGuard) {
		if atomic.LoadInt32(g.done) == 0 {
			// Best-effort cleanup of an abandoned upload; logging would
			// need a logger threaded through here, so this silently
			// unlinks rather than risking a panic from a finalizer.
			_ = os.Remove(g.staging)
		}
	})
	return u
}

// PutPart implements objectstore.MultipartUpload.
func (u *localUpload) PutPart(ctx context.Context, data []byte) (objectstore.UploadPart, error) {
	if atomic.LoadInt32(&u.done) != 0 {
		return nil, objectstore.ErrAborted
	}
	offset := atomic.AddUint64(&u.offset, uint64(len(data))) - uint64(len(data))

	_, err := u.executor.Run(ctx, func() (any, error) {
		u.state.mu.Lock()
		defer u.state.mu.Unlock()
		if _, err := u.state.file.WriteAt(data, int64(offset)); err != nil {
			return nil, objectstore.NewStoreError(storeName, "put_part", u.staging, err)
		}
		return nil, nil
	})
	return &localUploadPart{err: err}, err
}

// Complete implements objectstore.MultipartUpload. Locking the shared
// mutex here fences any PutPart that raced Complete into finishing its
// write (or seeing done already set) before the rename is observed.
func (u *localUpload) Complete(ctx context.Context) (objectstore.PutResult, error) {
	if !atomic.CompareAndSwapInt32(&u.done, 0, 1) {
		return objectstore.PutResult{}, objectstore.ErrAborted
	}

	v, err := u.executor.Run(ctx, func() (any, error) {
		u.state.mu.Lock()
		defer u.state.mu.Unlock()

		info, err := u.state.file.Stat()
		if err != nil {
			u.state.file.Close()
			return nil, objectstore.NewStoreError(storeName, "stat", u.staging, err)
		}
		tag := etag(info)

		if err := u.state.file.Close(); err != nil {
			return nil, objectstore.NewStoreError(storeName, "close", u.staging, err)
		}
		if err := os.Rename(u.staging, u.dest); err != nil {
			return nil, objectstore.NewStoreError(storeName, "rename", u.staging, err)
		}
		return objectstore.PutResult{ETag: tag}, nil
	})
	if err != nil {
		return objectstore.PutResult{}, err
	}
	return v.(objectstore.PutResult), nil
}

// Abort implements objectstore.MultipartUpload.
func (u *localUpload) Abort(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&u.done, 0, 1) {
		return nil
	}
	_, err := u.executor.Run(ctx, func() (any, error) {
		u.state.mu.Lock()
		defer u.state.mu.Unlock()
		_ = u.state.file.Close()
		if rmErr := os.Remove(u.staging); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, objectstore.NewStoreError(storeName, "abort", u.staging, rmErr)
		}
		return nil, nil
	})
	return err
}

// Close implements objectstore.MultipartUpload: a synchronous backstop
// equivalent to the finalizer, for callers that defer Close but never
// reach Complete/Abort on an error path.
func (u *localUpload) Close() error {
	if atomic.LoadInt32(&u.done) != 0 {
		return nil
	}
	return u.Abort(context.Background())
}

var _ io.Closer = (*localUpload)(nil)
