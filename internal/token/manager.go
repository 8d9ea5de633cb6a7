// Package token manages the lifecycle of bearer tokens: issue, refresh,
// authenticate and deactivate.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokenapi/tokenapi/internal/audit"
	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/metrics"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
)

// Config holds Manager dependencies. Only the store is required.
type Config struct {
	// TTL is the token lifetime measured from its last refresh.
	// Zero disables expiry.
	TTL time.Duration
	// CacheTTL bounds how long an authenticated context is cached.
	CacheTTL time.Duration

	Cache   Cache
	Audit   audit.Sink
	Metrics metrics.Recorder
	Logger  *slog.Logger
	Now     func() time.Time
}

// Manager owns creation, lookup, refresh and deactivation of tokens.
type Manager struct {
	store    Store
	ttl      time.Duration
	cacheTTL time.Duration
	cache    Cache
	audit    audit.Sink
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Deactivation confirms a successful logout.
type Deactivation struct {
	Key     string
	UserID  int64
	Message string
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, cfg Config) *Manager {
	m := &Manager{
		store:    store,
		ttl:      cfg.TTL,
		cacheTTL: cfg.CacheTTL,
		cache:    cfg.Cache,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if m.metrics == nil {
		m.metrics = metrics.NewNoop()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.logger = m.logger.With("component", "token.manager")
	return m
}

// IssueOrRefresh returns the user's live token, creating one if needed.
// A live token has its created timestamp bumped and keeps its key; an
// expired one is deactivated and replaced. created reports whether a new
// token was inserted. Concurrent calls for the same user are serialized
// on the user row, so at most one active token ever exists.
func (m *Manager) IssueOrRefresh(ctx context.Context, userID int64) (*model.Token, bool, error) {
	var (
		result  *model.Token
		created bool
		expired *model.Token
	)

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		result, created, expired = nil, false, nil

		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		now := m.timestamp()

		current, err := tx.GetActiveTokenByUser(ctx, userID)
		switch {
		case err == nil:
			if !current.IsExpired(m.ttl, now) {
				if err := tx.TouchToken(ctx, current.Key, now); err != nil {
					return err
				}
				current.Created = now
				result = current
				return nil
			}
			if err := tx.DeactivateToken(ctx, current.Key); err != nil {
				return err
			}
			current.IsActive = false
			expired = current
		case errors.Is(err, repository.ErrTokenNotFound):
		default:
			return err
		}

		key, err := auth.GenerateTokenKey()
		if err != nil {
			return err
		}
		token := &model.Token{Key: key, UserID: userID, Created: now, IsActive: true}
		if err := tx.CreateToken(ctx, token); err != nil {
			return err
		}
		result, created = token, true
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, fmt.Errorf("issue token: %w", err)
	}

	if expired != nil {
		m.invalidate(ctx, expired.Key)
		m.metrics.IncTokenDeactivated()
		m.publish(audit.EventExpired, expired, "")
		m.logger.Info("expired token replaced",
			"user_id", userID,
			"token_prefix", expired.Prefix(),
		)
	}

	if created {
		m.metrics.IncTokenIssued()
		m.publish(audit.EventIssued, result, "")
		m.logger.Info("token issued",
			"user_id", userID,
			"token_prefix", result.Prefix(),
		)
	} else {
		m.invalidate(ctx, result.Key)
		m.metrics.IncTokenRefreshed()
		m.publish(audit.EventRefreshed, result, "")
		m.logger.Debug("token refreshed",
			"user_id", userID,
			"token_prefix", result.Prefix(),
		)
	}

	return result, created, nil
}

// Authenticate resolves a presented key to the owning user.
// It returns ErrNotFound, ErrInactive, ErrExpired or ErrUserInactive on failure.
func (m *Manager) Authenticate(ctx context.Context, key string) (*model.AuthContext, error) {
	start := time.Now()
	defer func() {
		m.metrics.ObserveAuthDuration(time.Since(start))
	}()

	if !auth.ValidateKeyFormat(key) {
		m.metrics.IncAuthAttempt(metrics.AuthNotFound)
		return nil, ErrNotFound
	}

	cacheKey := auth.QuickHash(key)

	if m.cache != nil {
		cached, err := m.cache.GetAuthContext(ctx, cacheKey)
		if err == nil && cached != nil && cached.TokenKey == key && !m.expiredAt(cached.TokenCreated) {
			m.metrics.IncAuthCacheHit()
			m.metrics.IncAuthAttempt(metrics.AuthSuccess)
			return cached, nil
		}
		m.metrics.IncAuthCacheMiss()
	}

	token, err := m.store.GetTokenByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			m.metrics.IncAuthAttempt(metrics.AuthNotFound)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	if !token.IsActive {
		m.metrics.IncAuthAttempt(metrics.AuthInactive)
		return nil, ErrInactive
	}
	if token.IsExpired(m.ttl, m.now()) {
		m.metrics.IncAuthAttempt(metrics.AuthExpired)
		return nil, ErrExpired
	}

	user, err := m.store.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			m.metrics.IncAuthAttempt(metrics.AuthUserInactive)
			return nil, ErrUserInactive
		}
		return nil, fmt.Errorf("lookup token owner: %w", err)
	}
	if !user.IsActive {
		m.metrics.IncAuthAttempt(metrics.AuthUserInactive)
		return nil, ErrUserInactive
	}

	ac := &model.AuthContext{
		UserID:       user.ID,
		Username:     user.Username,
		IsStaff:      user.IsStaff,
		TokenKey:     token.Key,
		TokenCreated: token.Created,
	}

	if m.cache != nil {
		if err := m.cache.SetAuthContext(ctx, cacheKey, ac, m.cacheLifetime(token)); err != nil {
			m.logger.Warn("failed to cache auth context",
				"token_prefix", token.Prefix(),
				"error", err,
			)
		} else if err := m.recheck(ctx, key, cacheKey); err != nil {
			return nil, err
		}
	}

	m.metrics.IncAuthAttempt(metrics.AuthSuccess)
	return ac, nil
}

// recheck reloads a token after its context was cached. A deactivation
// that committed while the lookup was in flight drops the entry again.
func (m *Manager) recheck(ctx context.Context, key, cacheKey string) error {
	token, err := m.store.GetTokenByKey(ctx, key)
	switch {
	case err == nil && token.IsActive:
		return nil
	case err == nil:
		err = ErrInactive
	case errors.Is(err, repository.ErrTokenNotFound):
		err = ErrNotFound
	default:
		err = fmt.Errorf("recheck token: %w", err)
	}

	if derr := m.cache.DeleteAuthContext(ctx, cacheKey); derr != nil {
		m.logger.Error("failed to drop stale auth context",
			"token_prefix", model.KeyPrefix(key),
			"error", derr,
		)
	}
	switch {
	case errors.Is(err, ErrInactive):
		m.metrics.IncAuthAttempt(metrics.AuthInactive)
	case errors.Is(err, ErrNotFound):
		m.metrics.IncAuthAttempt(metrics.AuthNotFound)
	}
	return err
}

// Deactivate marks the user's token inactive. Every failure, including an
// unknown pair or an already inactive token, is reported as ErrBadCredentials.
func (m *Manager) Deactivate(ctx context.Context, userID int64, key string) (*Deactivation, error) {
	return m.deactivate(ctx, userID, key, "")
}

// Revoke deactivates a token by key on behalf of an administrator.
// It returns ErrNotFound for unknown keys and ErrBadCredentials for
// tokens that are already inactive.
func (m *Manager) Revoke(ctx context.Context, key, actor string) (*Deactivation, error) {
	if !auth.ValidateKeyFormat(key) {
		return nil, ErrNotFound
	}
	token, err := m.store.GetTokenByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	return m.deactivate(ctx, token.UserID, key, actor)
}

func (m *Manager) deactivate(ctx context.Context, userID int64, key, actor string) (*Deactivation, error) {
	var token *model.Token

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.GetTokenForUser(ctx, userID, key)
		if err != nil {
			if errors.Is(err, repository.ErrTokenNotFound) || errors.Is(err, repository.ErrUserNotFound) {
				return ErrBadCredentials
			}
			return err
		}
		if !t.IsActive {
			return ErrBadCredentials
		}
		if err := tx.DeactivateToken(ctx, key); err != nil {
			if errors.Is(err, repository.ErrTokenNotFound) {
				return ErrBadCredentials
			}
			return err
		}
		// The row stays active unless the cached context is gone too.
		if err := m.revoke(ctx, key); err != nil {
			return err
		}
		t.IsActive = false
		token = t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("deactivate token: %w", err)
	}

	m.metrics.IncTokenDeactivated()
	m.publish(audit.EventDeactivated, token, actor)
	m.logger.Info("token deactivated",
		"user_id", userID,
		"token_prefix", token.Prefix(),
		"actor", actor,
	)

	return &Deactivation{
		Key:     key,
		UserID:  userID,
		Message: fmt.Sprintf("Token %s has been deactivated.", key),
	}, nil
}

// timestamp returns now at the precision PostgreSQL stores.
func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

func (m *Manager) expiredAt(created time.Time) bool {
	t := model.Token{Created: created}
	return t.IsExpired(m.ttl, m.now())
}

// cacheLifetime caps the cache TTL at the token's remaining lifetime.
func (m *Manager) cacheLifetime(token *model.Token) time.Duration {
	ttl := m.cacheTTL
	if m.ttl > 0 {
		remaining := token.Created.Add(m.ttl).Sub(m.now())
		if ttl <= 0 || remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

func (m *Manager) invalidate(ctx context.Context, key string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.DeleteAuthContext(ctx, auth.QuickHash(key)); err != nil {
		m.logger.Warn("failed to invalidate cached auth context",
			"token_prefix", model.KeyPrefix(key),
			"error", err,
		)
	}
}

// revoke removes the cached context for key and keeps it from being
// cached again for as long as any entry could live.
func (m *Manager) revoke(ctx context.Context, key string) error {
	if m.cache == nil {
		return nil
	}
	if err := m.cache.RevokeAuthContext(ctx, auth.QuickHash(key), m.cacheTTL); err != nil {
		return fmt.Errorf("revoke cached auth context: %w", err)
	}
	return nil
}

func (m *Manager) publish(eventType string, token *model.Token, actor string) {
	if m.audit == nil {
		return
	}
	m.audit.PublishAsync(audit.Event{
		Type:        eventType,
		TokenPrefix: token.Prefix(),
		UserID:      token.UserID,
		Actor:       actor,
		At:          m.now().UnixMilli(),
	})
}
