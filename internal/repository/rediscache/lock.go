package rediscache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cobaltfs/objectstore/internal/repository"
)

var _ repository.DistributedLock = (*Client)(nil)

// releaseScript deletes key only if its value still matches the caller's
// token, so a lock that expired and was re-acquired by someone else is
// never released out from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// extendScript resets the TTL only if the caller still holds the lock.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

func lockValueKey(key string) string { return "lock:token:" + key }

// Acquire implements repository.DistributedLock via SET key token NX PX ttl.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockValueKey(key), token, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		c.rememberToken(key, token)
	}
	return ok, nil
}

// AcquireWithRetry retries Acquire up to maxRetries times, sleeping
// retryDelay between attempts.
func (c *Client) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		ok, err := c.Acquire(ctx, key, ttl)
		if err != nil || ok || attempt >= maxRetries {
			return ok, err
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release implements repository.DistributedLock.
func (c *Client) Release(ctx context.Context, key string) (bool, error) {
	token := c.tokenFor(key)
	if token == "" {
		return false, nil
	}
	n, err := releaseScript.Run(ctx, c.rdb, []string{lockValueKey(key)}, token).Int()
	if err != nil {
		return false, err
	}
	c.forgetToken(key)
	return n == 1, nil
}

// Extend implements repository.DistributedLock.
func (c *Client) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := c.tokenFor(key)
	if token == "" {
		return false, nil
	}
	n, err := extendScript.Run(ctx, c.rdb, []string{lockValueKey(key)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsHeld implements repository.DistributedLock.
func (c *Client) IsHeld(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, lockValueKey(key)).Result()
	return n > 0, err
}

// rememberToken/tokenFor/forgetToken track this process's own lock tokens
// so Release/Extend can prove ownership without a second round trip to
// fetch the current value first.
func (c *Client) rememberToken(key, token string) {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	if c.tokens == nil {
		c.tokens = make(map[string]string)
	}
	c.tokens[key] = token
}

func (c *Client) tokenFor(key string) string {
	c.tokensMu.RLock()
	defer c.tokensMu.RUnlock()
	return c.tokens[key]
}

func (c *Client) forgetToken(key string) {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	delete(c.tokens, key)
}
