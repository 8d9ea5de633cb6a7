package token_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenapi/tokenapi/internal/audit"
	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/metrics"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/testutil"
	"github.com/tokenapi/tokenapi/internal/testutil/memstore"
	"github.com/tokenapi/tokenapi/internal/token"
)

type env struct {
	store   *memstore.Store
	cache   *mapCache
	audit   *audit.Recorder
	metrics *metrics.InMemoryRecorder
	clock   *testutil.FixedClock
	mgr     *token.Manager
}

func newEnv(t *testing.T, ttl time.Duration) *env {
	t.Helper()

	e := &env{
		store:   memstore.New(),
		cache:   newMapCache(),
		audit:   &audit.Recorder{},
		metrics: metrics.NewInMemory(),
		clock:   testutil.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	e.mgr = token.NewManager(e.store, token.Config{
		TTL:     ttl,
		Cache:   e.cache,
		Audit:   e.audit,
		Metrics: e.metrics,
		Now:     e.clock.Now,
	})
	return e
}

func (e *env) user(t *testing.T, username string) *model.User {
	t.Helper()
	u := testutil.NewTestUser(t, username, "unused")
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func TestIssueOrRefresh_CreatesToken(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")

	tok, created, err := e.mgr.IssueOrRefresh(context.Background(), u.ID)
	require.NoError(t, err)

	assert.True(t, created)
	assert.True(t, tok.IsActive)
	assert.Equal(t, u.ID, tok.UserID)
	assert.True(t, auth.ValidateKeyFormat(tok.Key))
	assert.True(t, tok.Created.Equal(e.clock.Now()))
	assert.Equal(t, 1, e.store.ActiveTokenCount(u.ID))
	assert.Equal(t, uint64(1), e.metrics.Snapshot().TokensIssued)

	events := e.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventIssued, events[0].Type)
	assert.Equal(t, tok.Prefix(), events[0].TokenPrefix)
}

func TestIssueOrRefresh_RefreshKeepsKey(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	first, created, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, created)

	e.clock.Advance(time.Hour)

	second, created, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.Key, second.Key)
	assert.True(t, second.Created.After(first.Created), "created should advance on refresh")

	stored, err := e.store.GetTokenByKey(ctx, first.Key)
	require.NoError(t, err)
	assert.True(t, second.Created.Equal(stored.Created))
	assert.Equal(t, 1, e.store.TokenCount(u.ID))
	assert.Equal(t, uint64(1), e.metrics.Snapshot().TokensRefreshed)
}

func TestIssueOrRefresh_ExpiredTokenReplaced(t *testing.T) {
	e := newEnv(t, time.Hour)
	u := e.user(t, "admin")
	ctx := context.Background()

	first, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	e.clock.Advance(2 * time.Hour)

	second, created, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEqual(t, first.Key, second.Key)

	old, err := e.store.GetTokenByKey(ctx, first.Key)
	require.NoError(t, err)
	assert.False(t, old.IsActive, "expired token should be deactivated")
	assert.Equal(t, 1, e.store.ActiveTokenCount(u.ID))
	assert.Equal(t, 2, e.store.TokenCount(u.ID))

	types := make([]string, 0)
	for _, ev := range e.audit.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{audit.EventIssued, audit.EventExpired, audit.EventIssued}, types)
}

func TestIssueOrRefresh_AfterDeactivateIssuesNewKey(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	first, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)
	_, err = e.mgr.Deactivate(ctx, u.ID, first.Key)
	require.NoError(t, err)

	second, created, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.Key, second.Key)
}

func TestIssueOrRefresh_UnknownUser(t *testing.T) {
	e := newEnv(t, 0)

	_, _, err := e.mgr.IssueOrRefresh(context.Background(), 999)
	assert.ErrorIs(t, err, token.ErrUserNotFound)
	assert.Empty(t, e.audit.Events())
}

func TestIssueOrRefresh_ConcurrentSingleActiveToken(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")

	const workers = 20
	keys := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, _, err := e.mgr.IssueOrRefresh(context.Background(), u.ID)
			if err == nil {
				keys[i] = tok.Key
			}
		}(i)
	}
	wg.Wait()

	for _, k := range keys {
		assert.Equal(t, keys[0], k, "all callers should see the same key")
	}
	assert.Equal(t, 1, e.store.ActiveTokenCount(u.ID))
	assert.Equal(t, uint64(1), e.metrics.Snapshot().TokensIssued)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	ac, err := e.mgr.Authenticate(ctx, tok.Key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, ac.UserID)
	assert.Equal(t, "admin", ac.Username)
	assert.Equal(t, tok.Key, ac.TokenKey)

	// Second lookup is served from cache.
	_, err = e.mgr.Authenticate(ctx, tok.Key)
	require.NoError(t, err)
	snap := e.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.AuthCacheHits)
	assert.Equal(t, uint64(1), snap.AuthCacheMisses)
	assert.Equal(t, uint64(2), snap.AuthSuccess)
}

func TestAuthenticate_NeverIssued(t *testing.T) {
	e := newEnv(t, 0)

	tests := []struct {
		name string
		key  string
	}{
		{"well formed", "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b"},
		{"malformed", "not-a-token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.mgr.Authenticate(context.Background(), tt.key)
			assert.ErrorIs(t, err, token.ErrNotFound)
		})
	}
}

func TestAuthenticate_InactiveAfterDeactivate(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	// Warm the cache so deactivation must invalidate it.
	_, err = e.mgr.Authenticate(ctx, tok.Key)
	require.NoError(t, err)

	d, err := e.mgr.Deactivate(ctx, u.ID, tok.Key)
	require.NoError(t, err)
	assert.Contains(t, d.Message, tok.Key)

	_, err = e.mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrInactive)
	assert.Equal(t, 0, e.cache.Len())
}

func TestAuthenticate_DeactivatedMidLookupIsNotCached(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	store := &interleavedStore{Store: e.store}
	store.hook = func() {
		_, err := e.mgr.Deactivate(ctx, u.ID, tok.Key)
		require.NoError(t, err)
	}
	mgr := token.NewManager(store, token.Config{Cache: e.cache, Now: e.clock.Now})

	_, err = mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrInactive)
	assert.Equal(t, 0, e.cache.Len())

	_, err = mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrInactive)
}

func TestAuthenticate_StaleEntryDroppedAfterCommit(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	// A cache that lost the revocation marker still gets corrected by the
	// reload that follows every write.
	c := newMapCache()
	store := &interleavedStore{Store: e.store}
	store.hook = func() {
		_, err := e.mgr.Deactivate(ctx, u.ID, tok.Key)
		require.NoError(t, err)
	}
	mgr := token.NewManager(store, token.Config{Cache: c, Now: e.clock.Now})

	_, err = mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrInactive)
	assert.Equal(t, 0, c.Len())
}

func TestDeactivate_CacheFailureKeepsTokenActive(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	c := &brokenCache{mapCache: newMapCache(), down: true}
	mgr := token.NewManager(e.store, token.Config{Cache: c, Audit: e.audit, Now: e.clock.Now})

	tok, _, err := mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)
	_, err = mgr.Authenticate(ctx, tok.Key)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	_, err = mgr.Deactivate(ctx, u.ID, tok.Key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, token.ErrBadCredentials)

	stored, err := e.store.GetTokenByKey(ctx, tok.Key)
	require.NoError(t, err)
	assert.True(t, stored.IsActive, "deactivation must roll back when the cache cannot be cleared")
	for _, ev := range e.audit.Events() {
		assert.NotEqual(t, audit.EventDeactivated, ev.Type)
	}

	c.down = false
	_, err = mgr.Deactivate(ctx, u.ID, tok.Key)
	require.NoError(t, err)

	_, err = mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrInactive)
}

func TestAuthenticate_Expired(t *testing.T) {
	e := newEnv(t, time.Hour)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)
	_, err = e.mgr.Authenticate(ctx, tok.Key)
	require.NoError(t, err)

	e.clock.Advance(time.Hour)

	_, err = e.mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrExpired)
	assert.Equal(t, uint64(1), e.metrics.Snapshot().AuthExpired)
}

func TestAuthenticate_RefreshExtendsLifetime(t *testing.T) {
	e := newEnv(t, time.Hour)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	e.clock.Advance(50 * time.Minute)
	_, _, err = e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	e.clock.Advance(50 * time.Minute)
	_, err = e.mgr.Authenticate(ctx, tok.Key)
	assert.NoError(t, err)
}

func TestAuthenticate_UserInactive(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, e.store.SetUserActive(ctx, u.ID, false))

	_, err = e.mgr.Authenticate(ctx, tok.Key)
	assert.ErrorIs(t, err, token.ErrUserInactive)
	assert.Equal(t, 0, e.cache.Len(), "failures must not be cached")
}

func TestDeactivate_FailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	ctx := context.Background()

	aliceTok, _, err := e.mgr.IssueOrRefresh(ctx, alice.ID)
	require.NoError(t, err)
	bobTok, _, err := e.mgr.IssueOrRefresh(ctx, bob.ID)
	require.NoError(t, err)

	_, err = e.mgr.Deactivate(ctx, alice.ID, aliceTok.Key)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID int64
		key    string
	}{
		{"already inactive", alice.ID, aliceTok.Key},
		{"nonexistent key", alice.ID, "0000000000000000000000000000000000000000"},
		{"someone else's token", alice.ID, bobTok.Key},
		{"unknown user", 999, bobTok.Key},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.mgr.Deactivate(ctx, tt.userID, tt.key)
			assert.Nil(t, d)
			assert.True(t, errors.Is(err, token.ErrBadCredentials), "got %v", err)
		})
	}

	// Bob's token is untouched.
	_, err = e.mgr.Authenticate(ctx, bobTok.Key)
	assert.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	e := newEnv(t, 0)
	u := e.user(t, "admin")
	ctx := context.Background()

	tok, _, err := e.mgr.IssueOrRefresh(ctx, u.ID)
	require.NoError(t, err)

	_, err = e.mgr.Revoke(ctx, "0000000000000000000000000000000000000000", "root")
	assert.ErrorIs(t, err, token.ErrNotFound)

	d, err := e.mgr.Revoke(ctx, tok.Key, "root")
	require.NoError(t, err)
	assert.Equal(t, u.ID, d.UserID)

	_, err = e.mgr.Revoke(ctx, tok.Key, "root")
	assert.ErrorIs(t, err, token.ErrBadCredentials)

	events := e.audit.Events()
	last := events[len(events)-1]
	assert.Equal(t, audit.EventDeactivated, last.Type)
	assert.Equal(t, "root", last.Actor)
}

// mapCache is an in-memory token.Cache.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]model.AuthContext
	revoked map[string]bool
}

func newMapCache() *mapCache {
	return &mapCache{
		entries: make(map[string]model.AuthContext),
		revoked: make(map[string]bool),
	}
}

func (c *mapCache) GetAuthContext(ctx context.Context, key string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ac, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &ac, nil
}

func (c *mapCache) SetAuthContext(ctx context.Context, key string, ac *model.AuthContext, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked[key] {
		return nil
	}
	c.entries[key] = *ac
	return nil
}

func (c *mapCache) DeleteAuthContext(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) RevokeAuthContext(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.revoked[key] = true
	return nil
}

func (c *mapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// brokenCache is a mapCache whose revocations always fail.
type brokenCache struct {
	*mapCache
	down bool
}

func (c *brokenCache) RevokeAuthContext(ctx context.Context, key string, ttl time.Duration) error {
	if c.down {
		return errors.New("redis: connection refused")
	}
	return c.mapCache.RevokeAuthContext(ctx, key, ttl)
}

// interleavedStore runs hook once, between the token and owner lookups
// of an Authenticate call.
type interleavedStore struct {
	*memstore.Store
	once sync.Once
	hook func()
}

func (s *interleavedStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	s.once.Do(s.hook)
	return s.Store.GetUserByID(ctx, id)
}
