// Package local implements the object-store contract directly on top of an
// ordinary POSIX/Windows file tree: atomic put/get/delete/list/copy/rename,
// a staged-upload protocol that makes writes appear atomically at their
// destination, and ETags derived from file metadata.
package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cobaltfs/objectstore/internal/objectstore"
)

const storeName = "LocalFileSystem"

// FileSystem is the local-disk ObjectStore backend.
type FileSystem struct {
	cfg              *rootConfig
	automaticCleanup bool
	executor         objectstore.Executor
}

// Option configures a FileSystem at construction.
type Option func(*FileSystem)

// WithAutomaticCleanup enables best-effort removal of empty parent
// directories after a successful Delete.
func WithAutomaticCleanup(enabled bool) Option {
	return func(fs *FileSystem) { fs.automaticCleanup = enabled }
}

// WithExecutor overrides the default InlineExecutor. Pass an
// *objectstore.PoolExecutor to bound concurrent blocking filesystem calls
// off the calling goroutine.
func WithExecutor(ex objectstore.Executor) Option {
	return func(fs *FileSystem) { fs.executor = ex }
}

// New builds a FileSystem rooted at the OS root ("/" or a drive root); most
// callers want NewWithPrefix instead.
func New(opts ...Option) *FileSystem {
	return newFileSystem(&rootConfig{root: string(filepath.Separator)}, opts)
}

// NewWithPrefix builds a FileSystem rooted at prefix, which is canonicalized
// (symlinks resolved) once at construction and must already exist.
func NewWithPrefix(prefix string, opts ...Option) (*FileSystem, error) {
	abs, err := filepath.Abs(prefix)
	if err != nil {
		return nil, objectstore.NewStoreError(storeName, "canonicalize", prefix, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, objectstore.NewStoreError(storeName, "canonicalize", prefix, err)
	}
	return newFileSystem(&rootConfig{root: resolved}, opts), nil
}

func newFileSystem(cfg *rootConfig, opts []Option) *FileSystem {
	fs := &FileSystem{cfg: cfg, executor: objectstore.InlineExecutor{}}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func (fs *FileSystem) String() string {
	return storeName + "(" + fs.cfg.root + ")"
}

func (fs *FileSystem) run(ctx context.Context, fn func() (any, error)) (any, error) {
	return fs.executor.Run(ctx, fn)
}

// Put implements objectstore.ObjectStore.
func (fs *FileSystem) Put(ctx context.Context, location objectstore.Path, payload []byte) (objectstore.PutResult, error) {
	return fs.PutOpts(ctx, location, payload, objectstore.PutOptions{Mode: objectstore.PutModeOverwrite})
}

// PutOpts implements objectstore.ObjectStore.
func (fs *FileSystem) PutOpts(ctx context.Context, location objectstore.Path, payload []byte, opts objectstore.PutOptions) (objectstore.PutResult, error) {
	if opts.Mode == objectstore.PutModeUpdate || !opts.Attributes.Empty() {
		return objectstore.PutResult{}, objectstore.ErrNotImplemented
	}

	dest, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return objectstore.PutResult{}, err
	}

	v, err := fs.run(ctx, func() (any, error) {
		return putLocal(dest, payload, opts.Mode)
	})
	if err != nil {
		return objectstore.PutResult{}, err
	}
	return v.(objectstore.PutResult), nil
}

func putLocal(dest string, payload []byte, mode objectstore.PutMode) (objectstore.PutResult, error) {
	file, staging, err := newStagedUpload(dest)
	if err != nil {
		return objectstore.PutResult{}, err
	}

	result, err := func() (objectstore.PutResult, error) {
		if _, err := file.Write(payload); err != nil {
			return objectstore.PutResult{}, objectstore.NewStoreError(storeName, "write", staging, err)
		}
		info, err := file.Stat()
		if err != nil {
			return objectstore.PutResult{}, objectstore.NewStoreError(storeName, "stat", staging, err)
		}
		tag := etag(info)

		switch mode {
		case objectstore.PutModeOverwrite:
			// Close first so FUSE-backed filesystems (e.g. blobfuse)
			// flush before the rename becomes visible.
			if cerr := file.Close(); cerr != nil {
				return objectstore.PutResult{}, objectstore.NewStoreError(storeName, "close", staging, cerr)
			}
			if err := os.Rename(staging, dest); err != nil {
				return objectstore.PutResult{}, objectstore.NewStoreError(storeName, "rename", staging, err)
			}
		case objectstore.PutModeCreate:
			if err := os.Link(staging, dest); err != nil {
				if errors.Is(err, os.ErrExist) {
					return objectstore.PutResult{}, objectstore.NewStoreError(storeName, "link", dest, combineErr(objectstore.ErrAlreadyExists, err))
				}
				return objectstore.PutResult{}, objectstore.NewStoreError(storeName, "link", dest, err)
			}
			removeStagingBestEffort(staging)
		default:
			return objectstore.PutResult{}, objectstore.ErrNotImplemented
		}

		return objectstore.PutResult{ETag: tag}, nil
	}()

	if err != nil {
		_ = file.Close()
		removeStagingBestEffort(staging)
		return objectstore.PutResult{}, err
	}
	return result, nil
}

// combineErr wraps sentinel with the underlying os error so errors.Is(err,
// sentinel) still succeeds while the original errno remains inspectable via
// errors.Unwrap.
type wrappedErr struct {
	sentinel error
	cause    error
}

func (w *wrappedErr) Error() string { return w.sentinel.Error() + ": " + w.cause.Error() }
func (w *wrappedErr) Is(target error) bool { return errors.Is(w.sentinel, target) }
func (w *wrappedErr) Unwrap() error { return w.cause }

func combineErr(sentinel, cause error) error {
	return &wrappedErr{sentinel: sentinel, cause: cause}
}

// PutMultipart implements objectstore.ObjectStore.
func (fs *FileSystem) PutMultipart(ctx context.Context, location objectstore.Path) (objectstore.MultipartUpload, error) {
	return fs.PutMultipartOpts(ctx, location, objectstore.PutMultipartOptions{})
}

// PutMultipartOpts implements objectstore.ObjectStore.
func (fs *FileSystem) PutMultipartOpts(ctx context.Context, location objectstore.Path, opts objectstore.PutMultipartOptions) (objectstore.MultipartUpload, error) {
	if !opts.Attributes.Empty() {
		return nil, objectstore.ErrNotImplemented
	}
	dest, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return nil, err
	}
	v, err := fs.run(ctx, func() (any, error) {
		file, staging, err := newStagedUpload(dest)
		if err != nil {
			return nil, err
		}
		return newLocalUpload(staging, dest, file, fs.executor), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(objectstore.MultipartUpload), nil
}

// Head implements objectstore.ObjectStore.
func (fs *FileSystem) Head(ctx context.Context, location objectstore.Path) (objectstore.ObjectMeta, error) {
	path, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return objectstore.ObjectMeta{}, err
	}
	v, err := fs.run(ctx, func() (any, error) {
		_, info, err := openFile(path)
		if err != nil {
			return nil, err
		}
		return convertMetadata(info, location), nil
	})
	if err != nil {
		return objectstore.ObjectMeta{}, err
	}
	return v.(objectstore.ObjectMeta), nil
}

// Get implements objectstore.ObjectStore.
func (fs *FileSystem) Get(ctx context.Context, location objectstore.Path) (objectstore.GetResult, error) {
	return fs.GetOpts(ctx, location, objectstore.GetOptions{})
}

// GetOpts implements objectstore.ObjectStore.
func (fs *FileSystem) GetOpts(ctx context.Context, location objectstore.Path, opts objectstore.GetOptions) (objectstore.GetResult, error) {
	path, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return objectstore.GetResult{}, err
	}
	v, err := fs.run(ctx, func() (any, error) {
		file, info, err := openFile(path)
		if err != nil {
			return nil, err
		}
		meta := convertMetadata(info, location)
		if err := opts.CheckPreconditions(meta); err != nil {
			file.Close()
			return nil, err
		}
		rng := objectstore.ByteRange{Start: 0, End: meta.Size}
		if opts.Range != nil {
			rng = *opts.Range
			if rng.Start >= meta.Size {
				file.Close()
				return nil, objectstore.NewStoreError(storeName, "get_range", path, objectstore.ErrInvalidRange)
			}
			if rng.End > meta.Size {
				rng.End = meta.Size
			}
		}
		if _, err := file.Seek(int64(rng.Start), io.SeekStart); err != nil {
			file.Close()
			return nil, objectstore.NewStoreError(storeName, "seek", path, err)
		}
		return objectstore.GetResult{
			Payload:    file,
			Meta:       meta,
			Range:      rng,
			Attributes: objectstore.Attributes{},
		}, nil
	})
	if err != nil {
		return objectstore.GetResult{}, err
	}
	return v.(objectstore.GetResult), nil
}

// GetRange implements objectstore.ObjectStore.
func (fs *FileSystem) GetRange(ctx context.Context, location objectstore.Path, r objectstore.ByteRange) ([]byte, error) {
	path, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return nil, err
	}
	v, err := fs.run(ctx, func() (any, error) {
		file, _, err := openFile(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return readRange(file, path, r)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// GetRanges implements objectstore.ObjectStore. The file is opened once and
// each range is read with its own seek, matching the original's
// single-open-many-seeks strategy.
func (fs *FileSystem) GetRanges(ctx context.Context, location objectstore.Path, ranges []objectstore.ByteRange) ([][]byte, error) {
	path, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return nil, err
	}
	v, err := fs.run(ctx, func() (any, error) {
		file, _, err := openFile(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		out := make([][]byte, len(ranges))
		for i, r := range ranges {
			buf, err := readRange(file, path, r)
			if err != nil {
				return nil, err
			}
			out[i] = buf
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]byte), nil
}

func readRange(file *os.File, path string, r objectstore.ByteRange) ([]byte, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, objectstore.NewStoreError(storeName, "stat", path, err)
	}
	length := uint64(info.Size())
	if r.Start >= length {
		return nil, objectstore.NewStoreError(storeName, "get_range", path, objectstore.ErrInvalidRange)
	}
	end := r.End
	if end > length {
		end = length
	}
	toRead := end - r.Start

	if _, err := file.Seek(int64(r.Start), io.SeekStart); err != nil {
		return nil, objectstore.NewStoreError(storeName, "seek", path, err)
	}

	buf := make([]byte, toRead)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, objectstore.NewStoreError(storeName, "read", path, err)
	}
	if uint64(n) != toRead {
		return nil, objectstore.NewStoreError(storeName, "get_range", path, objectstore.ErrOutOfRange)
	}
	return buf[:n], nil
}

func openFile(path string) (*os.File, os.FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, objectstore.NewStoreError(storeName, "open", path, objectstore.ErrNotFound)
		}
		return nil, nil, objectstore.NewStoreError(storeName, "open", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, objectstore.NewStoreError(storeName, "stat", path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, objectstore.NewStoreError(storeName, "open", path, objectstore.ErrNotFound)
	}
	return file, info, nil
}

func convertMetadata(info os.FileInfo, location objectstore.Path) objectstore.ObjectMeta {
	return objectstore.ObjectMeta{
		Location:     location,
		LastModified: info.ModTime().UTC(),
		Size:         uint64(info.Size()),
		ETag:         etag(info),
	}
}

// Delete implements objectstore.ObjectStore.
func (fs *FileSystem) Delete(ctx context.Context, location objectstore.Path) error {
	path, err := fs.cfg.pathToFilesystem(location)
	if err != nil {
		return err
	}
	root := fs.cfg.root
	cleanup := fs.automaticCleanup
	_, err = fs.run(ctx, func() (any, error) {
		if rmErr := os.Remove(path); rmErr != nil {
			if errors.Is(rmErr, os.ErrNotExist) {
				return nil, objectstore.NewStoreError(storeName, "delete", path, objectstore.ErrNotFound)
			}
			return nil, objectstore.NewStoreError(storeName, "delete", path, rmErr)
		}
		if cleanup {
			cleanupEmptyParents(filepath.Dir(path), root)
		}
		return nil, nil
	})
	return err
}

// cleanupEmptyParents walks upward from dir removing empty directories,
// stopping at the first non-empty ancestor, any error, or root itself
// (root is never removed). Failures here are never surfaced.
func cleanupEmptyParents(dir, root string) {
	for dir != root && dir != "" && dir != string(filepath.Separator) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// List implements objectstore.ObjectStore.
func (fs *FileSystem) List(ctx context.Context, prefix *objectstore.Path) (<-chan objectstore.ListEntry, error) {
	return fs.listWithMaybeOffset(ctx, prefix, nil)
}

// ListWithOffset implements objectstore.ObjectStore.
func (fs *FileSystem) ListWithOffset(ctx context.Context, prefix *objectstore.Path, offset objectstore.Path) (<-chan objectstore.ListEntry, error) {
	return fs.listWithMaybeOffset(ctx, prefix, &offset)
}

func (fs *FileSystem) listWithMaybeOffset(ctx context.Context, prefix *objectstore.Path, offset *objectstore.Path) (<-chan objectstore.ListEntry, error) {
	var root string
	if prefix != nil {
		p, err := fs.cfg.prefixToFilesystem(*prefix)
		if err != nil {
			return nil, err
		}
		root = p
	} else {
		root = fs.cfg.root
	}

	out := make(chan objectstore.ListEntry, 1024)

	emit := func(entries []objectstore.ListEntry) {
		for _, e := range entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}

	producer := func() {
		defer close(out)
		batch := make([]objectstore.ListEntry, 0, 1024)
		flush := func() bool {
			if _, err := fs.run(ctx, func() (any, error) {
				emit(batch)
				return nil, nil
			}); err != nil {
				return false
			}
			batch = batch[:0]
			return true
		}

		err := walkEntries(root, func(absPath string, info os.FileInfo, isDir bool) error {
			if isDir {
				return nil
			}
			loc := fs.cfg.filesystemToPath(absPath)
			if offset != nil && loc.Compare(*offset) <= 0 {
				return nil
			}
			if !loc.IsValidFilePath() {
				return nil
			}
			refreshed, statErr := os.Stat(absPath)
			if statErr != nil {
				if errors.Is(statErr, os.ErrNotExist) {
					return nil // vanished during walk; swallow per spec 7
				}
				batch = append(batch, objectstore.ListEntry{Err: objectstore.NewStoreError(storeName, "stat", absPath, statErr)})
				return nil
			}
			batch = append(batch, objectstore.ListEntry{Meta: convertMetadata(refreshed, loc)})
			if len(batch) >= 1024 {
				if !flush() {
					return errStopWalk
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			batch = append(batch, objectstore.ListEntry{Err: objectstore.NewStoreError(storeName, "list", root, err)})
		}
		flush()
	}
	go producer()

	return out, nil
}

var errStopWalk = errors.New("list: context canceled")

// ListWithDelimiter implements objectstore.ObjectStore: a single-level walk
// where directories become common prefixes and files become objects.
func (fs *FileSystem) ListWithDelimiter(ctx context.Context, prefix *objectstore.Path) (objectstore.ListResult, error) {
	p := objectstore.Path{}
	if prefix != nil {
		p = *prefix
	}
	root, err := fs.cfg.prefixToFilesystem(p)
	if err != nil {
		return objectstore.ListResult{}, err
	}

	v, err := fs.run(ctx, func() (any, error) {
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return objectstore.ListResult{}, nil
			}
			return nil, objectstore.NewStoreError(storeName, "readdir", root, err)
		}

		prefixSet := map[string]struct{}{}
		var commonPrefixes []objectstore.Path
		var objects []objectstore.ObjectMeta

		for _, entry := range entries {
			absPath := filepath.Join(root, entry.Name())
			isDir := entry.IsDir()

			if entry.Type()&os.ModeSymlink != 0 {
				info, err := os.Stat(absPath)
				if err != nil {
					continue // broken symlink, silently dropped
				}
				isDir = info.IsDir()
			}

			entryLoc := fs.cfg.filesystemToPath(absPath)
			if !isDir && !entryLoc.IsValidFilePath() {
				continue
			}

			rest, ok := entryLoc.StripPrefix(p)
			if !ok {
				continue
			}
			if len(rest) == 0 {
				continue
			}
			head := rest[0]

			if isDir {
				if _, seen := prefixSet[head]; !seen {
					prefixSet[head] = struct{}{}
					commonPrefixes = append(commonPrefixes, p.Child(head))
				}
				continue
			}

			info, err := entry.Info()
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, objectstore.NewStoreError(storeName, "stat", absPath, err)
			}
			objects = append(objects, convertMetadata(info, entryLoc))
		}

		sort.Slice(commonPrefixes, func(i, j int) bool { return commonPrefixes[i].Less(commonPrefixes[j]) })

		return objectstore.ListResult{CommonPrefixes: commonPrefixes, Objects: objects}, nil
	})
	if err != nil {
		return objectstore.ListResult{}, err
	}
	return v.(objectstore.ListResult), nil
}

// prefixToFilesystem maps a (possibly root) prefix onto a filesystem path
// without requiring it name an existing file — List/ListWithDelimiter walk
// whatever exists under it, or return empty if it doesn't.
func (c *rootConfig) prefixToFilesystem(prefix objectstore.Path) (string, error) {
	parts := prefix.Parts()
	return filepath.Join(append([]string{c.root}, parts...)...), nil
}

// Copy implements objectstore.ObjectStore: hard-link source to a fresh
// staging file under destination, then atomically rename onto destination.
func (fs *FileSystem) Copy(ctx context.Context, from, to objectstore.Path) error {
	fromPath, err := fs.cfg.pathToFilesystem(from)
	if err != nil {
		return err
	}
	toPath, err := fs.cfg.pathToFilesystem(to)
	if err != nil {
		return err
	}
	_, err = fs.run(ctx, func() (any, error) {
		return nil, copyViaStaging(fromPath, toPath)
	})
	return err
}

func copyViaStaging(from, to string) error {
	n := 0
	for {
		staged := stagedUploadPath(to, n)
		err := os.Link(from, staged)
		switch {
		case err == nil:
			if rerr := os.Rename(staged, to); rerr != nil {
				removeStagingBestEffort(staged)
				return objectstore.NewStoreError(storeName, "copy", to, rerr)
			}
			return nil
		case errors.Is(err, os.ErrExist):
			n++
		case errors.Is(err, os.ErrNotExist):
			if _, statErr := os.Stat(from); statErr == nil {
				if mkErr := createParentDirs(to); mkErr != nil {
					return mkErr
				}
			} else {
				return objectstore.NewStoreError(storeName, "copy", from, objectstore.ErrNotFound)
			}
		default:
			return objectstore.NewStoreError(storeName, "copy", to, err)
		}
	}
}

// CopyIfNotExists implements objectstore.ObjectStore via a direct hard
// link: it fails atomically if the destination already exists.
func (fs *FileSystem) CopyIfNotExists(ctx context.Context, from, to objectstore.Path) error {
	fromPath, err := fs.cfg.pathToFilesystem(from)
	if err != nil {
		return err
	}
	toPath, err := fs.cfg.pathToFilesystem(to)
	if err != nil {
		return err
	}
	_, err = fs.run(ctx, func() (any, error) {
		for {
			err := os.Link(fromPath, toPath)
			switch {
			case err == nil:
				return nil, nil
			case errors.Is(err, os.ErrExist):
				return nil, objectstore.NewStoreError(storeName, "link", toPath, objectstore.ErrAlreadyExists)
			case errors.Is(err, os.ErrNotExist):
				if _, statErr := os.Stat(fromPath); statErr == nil {
					if mkErr := createParentDirs(toPath); mkErr != nil {
						return nil, mkErr
					}
					continue
				}
				return nil, objectstore.NewStoreError(storeName, "link", fromPath, objectstore.ErrNotFound)
			default:
				return nil, objectstore.NewStoreError(storeName, "link", toPath, err)
			}
		}
	})
	return err
}

// Rename implements objectstore.ObjectStore.
func (fs *FileSystem) Rename(ctx context.Context, from, to objectstore.Path) error {
	fromPath, err := fs.cfg.pathToFilesystem(from)
	if err != nil {
		return err
	}
	toPath, err := fs.cfg.pathToFilesystem(to)
	if err != nil {
		return err
	}
	_, err = fs.run(ctx, func() (any, error) {
		for {
			err := os.Rename(fromPath, toPath)
			switch {
			case err == nil:
				return nil, nil
			case errors.Is(err, os.ErrNotExist):
				if _, statErr := os.Stat(fromPath); statErr == nil {
					if mkErr := createParentDirs(toPath); mkErr != nil {
						return nil, mkErr
					}
					continue
				}
				return nil, objectstore.NewStoreError(storeName, "rename", fromPath, objectstore.ErrNotFound)
			default:
				return nil, objectstore.NewStoreError(storeName, "rename", toPath, err)
			}
		}
	})
	return err
}

// walkEntries walks root depth-first (min_depth=1, following symlinks),
// skipping broken symlinks and non-file entries, invoking fn for every
// surviving file.
func walkEntries(root string, fn func(path string, info os.FileInfo, isDir bool) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if path == root {
			return nil // min_depth=1: exclude the root itself
		}

		if d.Type()&os.ModeSymlink != 0 {
			info, statErr := os.Stat(path) // follows the link
			if statErr != nil {
				return nil // broken symlink: silently dropped
			}
			if info.IsDir() {
				return nil
			}
			return fn(path, info, false)
		}

		if d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			if errors.Is(infoErr, os.ErrNotExist) {
				return nil
			}
			return infoErr
		}
		return fn(path, info, false)
	})
}
