package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/credentials"
	"github.com/cobaltfs/objectstore/internal/sigv4"
)

func TestCredentialsAdapterRetrieve(t *testing.T) {
	cache := credentials.NewCache(credentials.NewStaticProvider("AKIA", "secret", "token"))
	adapter := newCredentialsAdapter(cache)

	creds, err := adapter.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AKIA", creds.AccessKeyID)
	require.Equal(t, "secret", creds.SecretAccessKey)
	require.Equal(t, "token", creds.SessionToken)
	require.False(t, creds.CanExpire)
}

type expiringProvider struct{ expiry time.Time }

func (p expiringProvider) FetchToken(ctx context.Context) (*credentials.TemporaryToken, error) {
	return &credentials.TemporaryToken{
		Credential: sigv4.NewCredential("AKIAEXP", "secret", ""),
		Expiry:     p.expiry,
	}, nil
}

func TestCredentialsAdapterPropagatesExpiry(t *testing.T) {
	cache := credentials.NewCache(expiringProvider{expiry: time.Now().Add(time.Hour)})
	adapter := newCredentialsAdapter(cache)

	creds, err := adapter.Retrieve(context.Background())
	require.NoError(t, err)
	require.True(t, creds.CanExpire)
	require.False(t, creds.Expires.IsZero())
}
