package token

import (
	"context"
	"time"

	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
)

// Tx is the transactional view of token storage. Lookups return
// repository.ErrTokenNotFound and repository.ErrUserNotFound on misses.
type Tx interface {
	LockUser(ctx context.Context, userID int64) error
	GetActiveTokenByUser(ctx context.Context, userID int64) (*model.Token, error)
	GetTokenForUser(ctx context.Context, userID int64, key string) (*model.Token, error)
	CreateToken(ctx context.Context, token *model.Token) error
	TouchToken(ctx context.Context, key string, at time.Time) error
	DeactivateToken(ctx context.Context, key string) error
}

// Store is the persistence the Manager depends on.
type Store interface {
	GetTokenByKey(ctx context.Context, key string) (*model.Token, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Cache holds authenticated contexts keyed by a hash of the token key.
// A miss returns nil, nil. After RevokeAuthContext, SetAuthContext for the
// same key must not store anything for at least ttl.
type Cache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext, ttl time.Duration) error
	DeleteAuthContext(ctx context.Context, cacheKey string) error
	RevokeAuthContext(ctx context.Context, cacheKey string, ttl time.Duration) error
}

type postgresStore struct {
	*repository.Repository
}

// NewPostgresStore adapts a Repository to Store.
func NewPostgresStore(repo *repository.Repository) Store {
	return postgresStore{Repository: repo}
}

func (s postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.Repository.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		return fn(ctx, tx)
	})
}
