package token

import "errors"

// Lifecycle errors.
var (
	// ErrNotFound means no token has the presented key.
	ErrNotFound = errors.New("token not found")
	// ErrInactive means the token has been deactivated.
	ErrInactive = errors.New("token is inactive")
	// ErrExpired means the token is older than the configured TTL.
	ErrExpired = errors.New("token has expired")
	// ErrUserInactive means the token owner is disabled or gone.
	ErrUserInactive = errors.New("user inactive or deleted")
	// ErrUserNotFound means a token was requested for an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrBadCredentials is the single failure reported by Deactivate,
	// whether the token is unknown, belongs to someone else, or is already inactive.
	ErrBadCredentials = errors.New("bad credentials")
)
