package model

import "time"

// Token is a bearer credential owned by a user.
// Tokens are deactivated instead of deleted so the row survives as an audit trail.
type Token struct {
	Key      string    `json:"key"`
	UserID   int64     `json:"user_id"`
	Created  time.Time `json:"created"`
	IsActive bool      `json:"is_active"`
}

// String returns the token key.
func (t *Token) String() string {
	return t.Key
}

// IsExpired reports whether the token is older than ttl at now.
// A zero or negative ttl means tokens never expire.
func (t *Token) IsExpired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(t.Created) >= ttl
}

// Prefix returns the first characters of the key, safe for logs.
func (t *Token) Prefix() string {
	return KeyPrefix(t.Key)
}

// KeyPrefix truncates a token key to a short prefix for logging.
func KeyPrefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}

// TokenListing is a token row joined with its owner, used by the admin listing.
type TokenListing struct {
	Key      string    `json:"key"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"user"`
	Email    string    `json:"email"`
	Created  time.Time `json:"created"`
	IsActive bool      `json:"is_active"`
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	IsStaff      bool      `json:"is_staff"`
	TokenKey     string    `json:"token_key"`
	TokenCreated time.Time `json:"token_created"`
}
