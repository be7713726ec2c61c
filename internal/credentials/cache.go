package credentials

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshMargin is subtracted from a token's Expiry to decide when to
// refresh: a cached token is served until margin before it actually expires,
// so a request signed just before refresh doesn't land upstream after the
// credential has gone stale in transit.
const refreshMargin = 30 * time.Second

// Cache wraps a Provider with a read-mostly in-memory cache and coalesces
// concurrent refreshes through a singleflight.Group, so a stampede of
// callers hitting an expired token triggers exactly one fetch.
type Cache struct {
	provider Provider
	now      func() time.Time
	margin   time.Duration

	mu    sync.RWMutex
	token *TemporaryToken

	group singleflight.Group
}

// NewCache builds a Cache around provider.
func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider, now: time.Now, margin: refreshMargin}
}

func (c *Cache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// GetCredential returns a currently-valid token, fetching (and caching) a
// new one if the cached token is missing or expired.
func (c *Cache) GetCredential(ctx context.Context) (*TemporaryToken, error) {
	c.mu.RLock()
	cur := c.token
	c.mu.RUnlock()
	if cur != nil && !cur.expired(c.clock(), c.margin) {
		return cur, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		c.mu.RLock()
		cur := c.token
		c.mu.RUnlock()
		if cur != nil && !cur.expired(c.clock(), c.margin) {
			return cur, nil
		}

		fresh, err := c.provider.FetchToken(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.token = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TemporaryToken), nil
}
