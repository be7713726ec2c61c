package mirror

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/credentials"
)

func TestNewDisabledReturnsNoop(t *testing.T) {
	m, err := New(context.Background(), Config{Enabled: false}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Replicate(context.Background(), "hash", nil, 0))
}

func TestNewEnabledRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, Region: "us-east-1"}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestNewEnabledBuildsClient(t *testing.T) {
	cache := credentials.NewCache(credentials.NewStaticProvider("AKIA", "secret", ""))
	m, err := New(context.Background(), Config{
		Enabled:      true,
		Region:       "us-east-1",
		Bucket:       "mirror-bucket",
		UsePathStyle: true,
	}, cache, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, m)
	require.IsType(t, &Client{}, m)
}
