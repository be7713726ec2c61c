// Package filesystem adapts the local object-store backend into the
// content-addressable Backend contract the blob service depends on: blobs
// are named by their SHA-256 hash and sharded across directories via
// storage.ComputePath, with the actual durability and atomicity guarantees
// (staged writes, atomic rename) coming from objectstore/local.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/objectstore"
	"github.com/cobaltfs/objectstore/internal/objectstore/local"
	"github.com/cobaltfs/objectstore/internal/storage"
)

// partSize is the chunk size Store reads from its source reader and
// writes as one multipart part, bounding memory use for large uploads.
const partSize = 8 * 1024 * 1024

// Config configures a Storage instance.
type Config struct {
	DataDir string
	TempDir string

	// ShardConfig overrides the default 2-level/2-char sharding.
	ShardConfig *storage.PathConfig

	// Executor dispatches the local backend's blocking filesystem calls;
	// nil uses objectstore.InlineExecutor.
	Executor objectstore.Executor
}

// Storage is the filesystem-backed ContentAddressableStorage.
type Storage struct {
	fs     *local.FileSystem
	shard  storage.PathConfig
	logger zerolog.Logger
}

// NewStorage builds a Storage rooted at cfg.DataDir.
func NewStorage(cfg Config, logger zerolog.Logger) (*Storage, error) {
	opts := []local.Option{local.WithAutomaticCleanup(true)}
	if cfg.Executor != nil {
		opts = append(opts, local.WithExecutor(cfg.Executor))
	}
	fs, err := local.NewWithPrefix(cfg.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("filesystem storage: %w", err)
	}

	shard := storage.DefaultPathConfig("")
	if cfg.ShardConfig != nil {
		shard = *cfg.ShardConfig
		shard.BasePath = ""
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("filesystem storage backend ready")

	return &Storage{fs: fs, shard: shard, logger: logger}, nil
}

// blobPath returns the logical Path for contentHash, sharded the same way
// storage.ComputePath lays out the directory tree.
func (s *Storage) blobPath(contentHash string) objectstore.Path {
	rel := storage.ComputePath(s.shard, contentHash)
	return objectstore.NewPath(filepath.ToSlash(rel))
}

func (s *Storage) tempPath() objectstore.Path {
	return objectstore.NewPath("tmp/" + uuid.New().String())
}

// GetPath implements storage.Backend.
func (s *Storage) GetPath(contentHash string) string {
	return storage.ComputeDefaultPath(s.shard.BasePath, contentHash)
}

// Store implements storage.Backend.
func (s *Storage) Store(ctx context.Context, reader io.Reader, size int64) (string, error) {
	hash, _, err := s.StoreWithDedup(ctx, reader, size)
	return hash, err
}

// StoreWithDedup implements storage.ContentAddressableStorage.
func (s *Storage) StoreWithDedup(ctx context.Context, reader io.Reader, size int64) (string, bool, error) {
	temp := s.tempPath()
	upload, err := s.fs.PutMultipart(ctx, temp)
	if err != nil {
		return "", false, fmt.Errorf("staging blob upload: %w", err)
	}

	h := sha256.New()
	buf := make([]byte, partSize)
	tee := io.TeeReader(reader, h)
	for {
		n, readErr := io.ReadFull(tee, buf)
		if n > 0 {
			if _, err := upload.PutPart(ctx, append([]byte(nil), buf[:n]...)); err != nil {
				_ = upload.Abort(ctx)
				return "", false, fmt.Errorf("writing blob part: %w", err)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			_ = upload.Abort(ctx)
			return "", false, fmt.Errorf("reading blob content: %w", readErr)
		}
	}

	contentHash := hex.EncodeToString(h.Sum(nil))
	dest := s.blobPath(contentHash)

	if _, err := s.fs.Head(ctx, dest); err == nil {
		// Identical content already stored: discard the staged upload
		// rather than overwrite, so no window exists where the
		// existing blob is briefly replaced by a byte-identical copy.
		_ = upload.Abort(ctx)
		return contentHash, false, nil
	} else if !errors.Is(err, objectstore.ErrNotFound) {
		_ = upload.Abort(ctx)
		return "", false, fmt.Errorf("checking existing blob: %w", err)
	}

	if _, err := upload.Complete(ctx); err != nil {
		return "", false, fmt.Errorf("completing blob upload: %w", err)
	}
	if err := s.fs.Rename(ctx, temp, dest); err != nil {
		return "", false, fmt.Errorf("finalizing blob: %w", err)
	}
	return contentHash, true, nil
}

// Retrieve implements storage.Backend.
func (s *Storage) Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error) {
	result, err := s.fs.Get(ctx, s.blobPath(contentHash))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, err
	}
	return result.Payload, nil
}

// Delete implements storage.Backend.
func (s *Storage) Delete(ctx context.Context, contentHash string) error {
	err := s.fs.Delete(ctx, s.blobPath(contentHash))
	if errors.Is(err, objectstore.ErrNotFound) {
		return domain.ErrBlobNotFound
	}
	return err
}

// Exists implements storage.Backend.
func (s *Storage) Exists(ctx context.Context, contentHash string) (bool, error) {
	_, err := s.fs.Head(ctx, s.blobPath(contentHash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, objectstore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// GetSize implements storage.Backend.
func (s *Storage) GetSize(ctx context.Context, contentHash string) (int64, error) {
	meta, err := s.fs.Head(ctx, s.blobPath(contentHash))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return 0, domain.ErrBlobNotFound
		}
		return 0, err
	}
	return int64(meta.Size), nil
}

// Stats implements storage.ContentAddressableStorage, counting blobs under
// the store root (the "tmp/" staging prefix is excluded).
func (s *Storage) Stats(ctx context.Context) (*storage.StorageStats, error) {
	entries, err := s.fs.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats := &storage.StorageStats{}
	for entry := range entries {
		if entry.Err != nil {
			return nil, entry.Err
		}
		if strings.HasPrefix(entry.Meta.Location.String(), "tmp/") {
			continue
		}
		stats.TotalBlobs++
		stats.TotalSize += int64(entry.Meta.Size)
	}
	stats.UsedSpace = stats.TotalSize
	return stats, nil
}

var _ storage.ContentAddressableStorage = (*Storage)(nil)
