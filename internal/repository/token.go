package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tokenapi/tokenapi/internal/model"
)

// Common errors for token repository operations.
var (
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenKeyExists    = errors.New("token key already exists")
	ErrActiveTokenExists = errors.New("user already has an active token")
)

const tokenColumns = `key, user_id, created, is_active`

// CreateToken inserts a new token.
func (r *Repository) CreateToken(ctx context.Context, token *model.Token) error {
	query := `
		INSERT INTO auth_tokens (key, user_id, created, is_active)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn(ctx).Exec(ctx, query, token.Key, token.UserID, token.Created, token.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			if token.IsActive && isActiveIndexViolation(err) {
				return ErrActiveTokenExists
			}
			return ErrTokenKeyExists
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// GetTokenByKey retrieves a token by key regardless of state.
func (r *Repository) GetTokenByKey(ctx context.Context, key string) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens WHERE key = $1`

	token, err := scanToken(r.conn(ctx).QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// GetActiveTokenByUser retrieves the user's active token.
func (r *Repository) GetActiveTokenByUser(ctx context.Context, userID int64) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens WHERE user_id = $1 AND is_active`

	token, err := scanToken(r.conn(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get active token: %w", err)
	}
	return token, nil
}

// GetTokenForUser retrieves a token matching both user and key.
func (r *Repository) GetTokenForUser(ctx context.Context, userID int64, key string) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens WHERE user_id = $1 AND key = $2`

	token, err := scanToken(r.conn(ctx).QueryRow(ctx, query, userID, key))
	if err != nil {
		return nil, fmt.Errorf("failed to get token for user: %w", err)
	}
	return token, nil
}

// TouchToken sets the created timestamp of an active token.
func (r *Repository) TouchToken(ctx context.Context, key string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE auth_tokens SET created = $2 WHERE key = $1 AND is_active`, key, at)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeactivateToken marks an active token inactive.
// Returns ErrTokenNotFound if no active token has the key.
func (r *Repository) DeactivateToken(ctx context.Context, key string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE auth_tokens SET is_active = FALSE WHERE key = $1 AND is_active`, key)
	if err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ListTokens returns tokens joined with their owners, newest first.
// A non-empty search matches username or email case-insensitively.
func (r *Repository) ListTokens(ctx context.Context, search string) ([]*model.TokenListing, error) {
	query := `
		SELECT t.key, t.user_id, u.username, u.email, t.created, t.is_active
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE $1 = '' OR u.username ILIKE $2 OR u.email ILIKE $2
		ORDER BY t.created DESC
	`

	rows, err := r.conn(ctx).Query(ctx, query, search, containsPattern(search))
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	listings := make([]*model.TokenListing, 0)
	for rows.Next() {
		var l model.TokenListing
		if err := rows.Scan(&l.Key, &l.UserID, &l.Username, &l.Email, &l.Created, &l.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		listings = append(listings, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	return listings, nil
}

// containsPattern builds an ILIKE pattern matching s anywhere, with wildcards escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanToken(row pgx.Row) (*model.Token, error) {
	var token model.Token
	err := row.Scan(&token.Key, &token.UserID, &token.Created, &token.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}
