//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()

	c, err := New(ctx, redisURL, Options{})
	if err != nil {
		t.Fatalf("failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("failed to flush Redis: %v", err)
	}
	return ctx, c
}

func TestIntegrationAuthCache_RoundTrip(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ac := &model.AuthContext{
		UserID:       42,
		Username:     "admin",
		IsStaff:      true,
		TokenKey:     "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b",
		TokenCreated: created,
	}

	if err := c.SetAuthContext(ctx, "hash-1", ac, time.Minute); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	got, err := c.GetAuthContext(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetAuthContext failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.UserID != 42 || got.Username != "admin" || !got.IsStaff || got.TokenKey != ac.TokenKey {
		t.Errorf("unexpected cached context: %+v", got)
	}
	if !got.TokenCreated.Equal(created) {
		t.Errorf("TokenCreated = %v, want %v", got.TokenCreated, created)
	}

	if err := c.DeleteAuthContext(ctx, "hash-1"); err != nil {
		t.Fatalf("DeleteAuthContext failed: %v", err)
	}
	got, _ = c.GetAuthContext(ctx, "hash-1")
	if got != nil {
		t.Error("expected cache miss after delete")
	}
}

func TestIntegrationAuthCache_RevokeBlocksLaterWrites(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	ac := &model.AuthContext{
		UserID:       7,
		Username:     "user",
		TokenKey:     "0123456789abcdef0123456789abcdef01234567",
		TokenCreated: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := c.SetAuthContext(ctx, "hash-2", ac, time.Minute); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	if err := c.RevokeAuthContext(ctx, "hash-2", time.Minute); err != nil {
		t.Fatalf("RevokeAuthContext failed: %v", err)
	}
	if got, _ := c.GetAuthContext(ctx, "hash-2"); got != nil {
		t.Fatal("expected cache miss after revoke")
	}

	if err := c.SetAuthContext(ctx, "hash-2", ac, time.Minute); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}
	if got, _ := c.GetAuthContext(ctx, "hash-2"); got != nil {
		t.Error("a revoked token's context must not be cached again")
	}
}

func TestIntegrationLoginRateLimit_Burst(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	for i := 0; i < 3; i++ {
		res, err := c.CheckLoginRateLimit(ctx, "203.0.113.7", 1, 3)
		if err != nil {
			t.Fatalf("CheckLoginRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}

	res, err := c.CheckLoginRateLimit(ctx, "203.0.113.7", 1, 3)
	if err != nil {
		t.Fatalf("CheckLoginRateLimit failed: %v", err)
	}
	if res.Allowed {
		t.Error("request past burst should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	other, _ := c.CheckLoginRateLimit(ctx, "203.0.113.8", 1, 3)
	if !other.Allowed {
		t.Error("a different IP should have its own bucket")
	}
}
