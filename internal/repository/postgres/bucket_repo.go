package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/repository"
)

// bucketRepository implements repository.BucketRepository for PostgreSQL.
type bucketRepository struct {
	db *DB
}

// NewBucketRepository creates a new PostgreSQL bucket repository.
func NewBucketRepository(db *DB) repository.BucketRepository {
	return &bucketRepository{db: db}
}

// Create creates a new bucket.
func (r *bucketRepository) Create(ctx context.Context, bucket *domain.Bucket) error {
	if bucket.ACL == "" {
		bucket.ACL = domain.ACLPrivate
	}

	query := `
		INSERT INTO buckets (owner_id, name, region, versioning, object_lock, created_at, acl)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		bucket.OwnerID,
		bucket.Name,
		bucket.Region,
		bucket.Versioning,
		bucket.ObjectLock,
		bucket.CreatedAt,
		bucket.ACL,
	).Scan(&bucket.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrBucketAlreadyExists, bucket.Name)
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// GetByID retrieves a bucket by ID.
func (r *bucketRepository) GetByID(ctx context.Context, id int64) (*domain.Bucket, error) {
	query := `
		SELECT id, owner_id, name, region, versioning, object_lock, created_at, acl
		FROM buckets
		WHERE id = $1
	`

	bucket := &domain.Bucket{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&bucket.ID,
		&bucket.OwnerID,
		&bucket.Name,
		&bucket.Region,
		&bucket.Versioning,
		&bucket.ObjectLock,
		&bucket.CreatedAt,
		&bucket.ACL,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to get bucket by ID: %w", err)
	}

	return bucket, nil
}

// GetByName retrieves a bucket by name.
func (r *bucketRepository) GetByName(ctx context.Context, name string) (*domain.Bucket, error) {
	query := `
		SELECT id, owner_id, name, region, versioning, object_lock, created_at, acl
		FROM buckets
		WHERE name = $1
	`

	bucket := &domain.Bucket{}
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(
		&bucket.ID,
		&bucket.OwnerID,
		&bucket.Name,
		&bucket.Region,
		&bucket.Versioning,
		&bucket.ObjectLock,
		&bucket.CreatedAt,
		&bucket.ACL,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to get bucket by name: %w", err)
	}

	return bucket, nil
}

// List returns all buckets for a user (or all if userID is 0).
func (r *bucketRepository) List(ctx context.Context, userID int64) ([]*domain.Bucket, error) {
	var query string
	var args []any

	if userID > 0 {
		query = `
			SELECT id, owner_id, name, region, versioning, object_lock, created_at, acl
			FROM buckets
			WHERE owner_id = $1
			ORDER BY name ASC
		`
		args = []any{userID}
	} else {
		query = `
			SELECT id, owner_id, name, region, versioning, object_lock, created_at, acl
			FROM buckets
			ORDER BY name ASC
		`
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*domain.Bucket
	for rows.Next() {
		bucket := &domain.Bucket{}
		err := rows.Scan(
			&bucket.ID,
			&bucket.OwnerID,
			&bucket.Name,
			&bucket.Region,
			&bucket.Versioning,
			&bucket.ObjectLock,
			&bucket.CreatedAt,
			&bucket.ACL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buckets: %w", err)
	}

	return buckets, nil
}

// Update updates an existing bucket.
func (r *bucketRepository) Update(ctx context.Context, bucket *domain.Bucket) error {
	query := `
		UPDATE buckets
		SET versioning = $1, object_lock = $2
		WHERE id = $3
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		bucket.Versioning,
		bucket.ObjectLock,
		bucket.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update bucket: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}

	return nil
}

// UpdateVersioning updates the versioning status of a bucket.
func (r *bucketRepository) UpdateVersioning(ctx context.Context, id int64, status domain.VersioningStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE buckets SET versioning = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update versioning status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}

	return nil
}

// GetACLByName returns the canned ACL for a bucket by name.
func (r *bucketRepository) GetACLByName(ctx context.Context, name string) (domain.BucketACL, error) {
	var acl domain.BucketACL
	err := r.db.Pool.QueryRow(ctx, `SELECT acl FROM buckets WHERE name = $1`, name).Scan(&acl)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrBucketNotFound
		}
		return "", fmt.Errorf("failed to get bucket acl: %w", err)
	}
	return acl, nil
}

// UpdateACL sets the canned ACL for a bucket.
func (r *bucketRepository) UpdateACL(ctx context.Context, id int64, acl domain.BucketACL) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE buckets SET acl = $1 WHERE id = $2`, acl, id)
	if err != nil {
		return fmt.Errorf("failed to update bucket acl: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}
	return nil
}

// Delete deletes a bucket by ID.
func (r *bucketRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM buckets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}

	return nil
}

// DeleteByName deletes a bucket by name.
func (r *bucketRepository) DeleteByName(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM buckets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrBucketNotFound
	}

	return nil
}

// ExistsByName checks if a bucket with the given name exists.
func (r *bucketRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM buckets WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return exists, nil
}

// IsEmpty checks if a bucket contains any objects.
func (r *bucketRepository) IsEmpty(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM objects WHERE bucket_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if bucket is empty: %w", err)
	}
	return !exists, nil
}

// Ensure bucketRepository implements repository.BucketRepository.
var _ repository.BucketRepository = (*bucketRepository)(nil)
