package storage

import (
	"errors"

	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/objectstore"
)

// IsNotFound reports whether err indicates the requested blob does not
// exist, regardless of which Backend implementation raised it: the
// filesystem backend surfaces domain.ErrBlobNotFound at this interface's
// boundary, wrapping objectstore.ErrNotFound from the local engine
// underneath.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrBlobNotFound) || errors.Is(err, objectstore.ErrNotFound)
}
