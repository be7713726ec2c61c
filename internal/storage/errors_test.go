package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/objectstore"
)

func TestIsNotFoundRecognizesBothSentinels(t *testing.T) {
	require.True(t, IsNotFound(domain.ErrBlobNotFound))
	require.True(t, IsNotFound(objectstore.ErrNotFound))
	require.True(t, IsNotFound(objectstore.NewStoreError("LocalFileSystem", "open", "x", objectstore.ErrNotFound)))
}

func TestIsNotFoundRejectsUnrelatedErrors(t *testing.T) {
	require.False(t, IsNotFound(errors.New("some other failure")))
}
