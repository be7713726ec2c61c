package credentials

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/sigv4"
)

var errBoom = errors.New("boom")

type countingProvider struct {
	calls int32
	token *TemporaryToken
	err   error
}

func (p *countingProvider) FetchToken(ctx context.Context) (*TemporaryToken, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return nil, p.err
	}
	return p.token, nil
}

func TestCacheFetchesOnceAndReuses(t *testing.T) {
	provider := &countingProvider{token: &TemporaryToken{Credential: sigv4.NewCredential("AKIA", "secret", "")}}
	cache := NewCache(provider)

	for i := 0; i < 5; i++ {
		tok, err := cache.GetCredential(t.Context())
		require.NoError(t, err)
		require.Equal(t, "AKIA", tok.Credential.AccessKeyID)
	}
	require.EqualValues(t, 1, provider.calls)
}

func TestCacheRefreshesAfterExpiry(t *testing.T) {
	now := time.Now()
	provider := &countingProvider{token: &TemporaryToken{
		Credential: sigv4.NewCredential("AKIA", "secret", ""),
		Expiry:     now.Add(time.Millisecond),
	}}
	cache := NewCache(provider)
	cache.now = func() time.Time { return now }

	_, err := cache.GetCredential(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.calls)

	cache.now = func() time.Time { return now.Add(time.Hour) }
	_, err = cache.GetCredential(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 2, provider.calls)
}

func TestCacheRefreshesBeforeLiteralExpiry(t *testing.T) {
	now := time.Now()
	provider := &countingProvider{token: &TemporaryToken{
		Credential: sigv4.NewCredential("AKIA", "secret", ""),
		Expiry:     now.Add(time.Minute),
	}}
	cache := NewCache(provider)
	cache.now = func() time.Time { return now }

	_, err := cache.GetCredential(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.calls)

	// Still inside the 1 minute window, but within refreshMargin of expiry:
	// the cache must refresh rather than serve the stale token.
	cache.now = func() time.Time { return now.Add(time.Minute - refreshMargin/2) }
	_, err = cache.GetCredential(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 2, provider.calls)
}

func TestCacheCoalescesConcurrentRefreshes(t *testing.T) {
	provider := &countingProvider{token: &TemporaryToken{Credential: sigv4.NewCredential("AKIA", "secret", "")}}
	cache := NewCache(provider)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetCredential(t.Context())
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, provider.calls)
}
