package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/service"
	"github.com/tokenapi/tokenapi/internal/token"
)

// TokenDeactivator ends a user's session token.
type TokenDeactivator interface {
	Deactivate(ctx context.Context, userID int64, key string) (*token.Deactivation, error)
}

// AccountHandler serves registration, login, logout and user lookup.
type AccountHandler struct {
	users  *service.UserService
	tokens TokenDeactivator
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(users *service.UserService, tokens TokenDeactivator, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// SessionResponse describes the caller of an authenticated request.
type SessionResponse struct {
	User string `json:"user"`
	Auth string `json:"auth"`
}

// CreateUser handles POST /create/
func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, reqErr := decodePayload(r, false)
	if reqErr != nil {
		reqErr.write(w)
		return
	}

	user, _, err := h.users.CreateUser(r.Context(), service.CreateUserInput{
		Username: p.str("username"),
		Password: p.str("password"),
		Email:    p.str("email"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user.ToResponse())
}

// Login handles POST /api-token-auth/. Only JSON bodies are accepted.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	p, reqErr := decodePayload(r, true)
	if reqErr != nil {
		reqErr.write(w)
		return
	}

	result, err := h.users.Login(r.Context(), service.LoginInput{
		Username: p.str("username"),
		Password: p.str("password"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:  result.Token.Key,
		UserID: result.User.ID,
		Email:  result.User.Email,
	})
}

// Logout handles POST /api-token-logout/ by deactivating the presented token.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustAuthFromContext(r.Context())

	result, err := h.tokens.Deactivate(r.Context(), authCtx.UserID, authCtx.TokenKey)
	if err != nil {
		if errors.Is(err, token.ErrBadCredentials) {
			w.Header().Set("WWW-Authenticate", "Token")
			writeDetail(w, http.StatusUnauthorized, "Invalid token.")
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user logged out",
		slog.Int64("user_id", authCtx.UserID),
		slog.String("token_prefix", model.KeyPrefix(authCtx.TokenKey)),
	)
	writeDetail(w, http.StatusOK, result.Message)
}

// Session handles GET /data/
func (h *AccountHandler) Session(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustAuthFromContext(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{
		User: authCtx.Username,
		Auth: authCtx.TokenKey,
	})
}

// ListUsers handles GET /users/
func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := make([]model.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, u.ToResponse())
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser handles GET /users/{id}/
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, msgNotFound)
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToResponse())
}
