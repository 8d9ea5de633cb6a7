package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/token"
)

// AuthKeyword is the scheme expected in the Authorization header.
const AuthKeyword = "Token"

// Authenticator resolves a token key to the identity it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	// MinDuration pads failed and successful checks to a constant time.
	// Zero disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates requests carrying
// "Authorization: Token <key>" and injects the auth context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MinDuration > 0 {
				startTime := time.Now()
				defer func() {
					if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
						time.Sleep(cfg.MinDuration - elapsed)
					}
				}()
			}

			key, reason, msg := extractTokenKey(r)
			if key == "" {
				logAuthFailure(cfg.Logger, r, reason)
				writeAuthError(w, msg)
				return
			}

			authCtx, err := cfg.Authenticator.Authenticate(r.Context(), key)
			if err != nil {
				reason, msg := classifyAuthError(err)
				if reason == "internal" {
					cfg.Logger.Error("token lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeDetail(w, http.StatusInternalServerError, msgServerError)
					return
				}
				logAuthFailure(cfg.Logger, r, reason)
				writeAuthError(w, msg)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.Int64("user_id", authCtx.UserID),
				slog.String("token_prefix", model.KeyPrefix(authCtx.TokenKey)),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractTokenKey parses the Authorization header. When no key can be
// extracted it returns the log reason and client-facing message.
func extractTokenKey(r *http.Request) (key, reason, msg string) {
	header := r.Header.Get("Authorization")
	parts := strings.Fields(header)

	if len(parts) == 0 || !strings.EqualFold(parts[0], AuthKeyword) {
		return "", "missing_credentials", msgNotAuthenticated
	}
	switch len(parts) {
	case 1:
		return "", "empty_token", msgNoCredentials
	case 2:
		return parts[1], "", ""
	default:
		return "", "malformed_header", msgKeyHasSpaces
	}
}

func classifyAuthError(err error) (reason, msg string) {
	switch {
	case errors.Is(err, token.ErrNotFound):
		return "invalid_token", msgInvalidToken
	case errors.Is(err, token.ErrInactive):
		return "inactive_token", msgTokenInactive
	case errors.Is(err, token.ErrExpired):
		return "expired_token", msgTokenExpired
	case errors.Is(err, token.ErrUserInactive):
		return "inactive_user", msgUserInactive
	default:
		return "internal", msgServerError
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", ClientIP(r)),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes a 401 response with the authentication challenge.
func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", AuthKeyword)
	writeDetail(w, http.StatusUnauthorized, msg)
}
