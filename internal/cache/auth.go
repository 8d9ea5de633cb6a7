package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenapi/tokenapi/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for authenticated token contexts.
	authCachePrefix = "auth:token:"
	// authRevokedPrefix marks a token whose context must not be cached again.
	authRevokedPrefix = "auth:revoked:"
	// authRevokedGrace keeps the marker alive past the longest cache entry
	// a lookup that started before the revocation could still write.
	authRevokedGrace = time.Minute
	// DefaultAuthCacheTTL is used when no TTL is given.
	DefaultAuthCacheTTL = 5 * time.Minute
)

// setUnlessRevokedScript stores an auth context only when the token has
// not been revoked.
var setUnlessRevokedScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[2]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
`)

// CachedAuthContext represents auth context stored in Redis.
type CachedAuthContext struct {
	UserID       int64  `json:"uid"`
	Username     string `json:"u"`
	IsStaff      bool   `json:"s,omitempty"`
	TokenKey     string `json:"k"`
	TokenCreated int64  `json:"c"` // Unix milliseconds
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		UserID:       cached.UserID,
		Username:     cached.Username,
		IsStaff:      cached.IsStaff,
		TokenKey:     cached.TokenKey,
		TokenCreated: time.UnixMilli(cached.TokenCreated).UTC(),
	}, nil
}

// SetAuthContext caches an auth context for ttl, or DefaultAuthCacheTTL
// when ttl is not positive. The write is skipped when the token has been
// revoked through RevokeAuthContext.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultAuthCacheTTL
	}

	data, err := json.Marshal(CachedAuthContext{
		UserID:       auth.UserID,
		Username:     auth.Username,
		IsStaff:      auth.IsStaff,
		TokenKey:     auth.TokenKey,
		TokenCreated: auth.TokenCreated.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	keys := []string{authCachePrefix + cacheKey, authRevokedPrefix + cacheKey}
	return setUnlessRevokedScript.Run(ctx, c.client, keys, data, ttl.Milliseconds()).Err()
}

// DeleteAuthContext removes a cached auth context after a refresh.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}

// RevokeAuthContext drops a cached auth context and blocks SetAuthContext
// for the key until ttl plus a grace period has passed. ttl should be the
// longest lifetime any cache entry is written with.
func (c *Cache) RevokeAuthContext(ctx context.Context, cacheKey string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultAuthCacheTTL
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, authRevokedPrefix+cacheKey, "1", ttl+authRevokedGrace)
		pipe.Del(ctx, authCachePrefix+cacheKey)
		return nil
	})
	return err
}
