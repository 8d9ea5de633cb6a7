package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tokenapi/tokenapi/internal/audit"
	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/token"
)

const (
	defaultAuditCount = 50
	maxAuditCount     = 500
)

// AdminTokenLister lists tokens with their owners.
type AdminTokenLister interface {
	ListTokens(ctx context.Context, search string) ([]*model.TokenListing, error)
}

// AdminTokenRevoker deactivates any user's token.
type AdminTokenRevoker interface {
	Revoke(ctx context.Context, key, actor string) (*token.Deactivation, error)
}

// AuditReader reads recent token lifecycle events.
type AuditReader interface {
	Recent(ctx context.Context, count int64) ([]audit.Entry, error)
}

// AdminHandler provides staff-only token management endpoints.
type AdminHandler struct {
	tokens  AdminTokenLister
	revoker AdminTokenRevoker
	audit   AuditReader
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. auditReader may be nil when
// the audit stream is disabled.
func NewAdminHandler(tokens AdminTokenLister, revoker AdminTokenRevoker, auditReader AuditReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		tokens:  tokens,
		revoker: revoker,
		audit:   auditReader,
		logger:  logger,
	}
}

// TokenListResponse is the admin token listing.
type TokenListResponse struct {
	Tokens []*model.TokenListing `json:"tokens"`
	Total  int                   `json:"total"`
}

// ListTokens handles GET /admin/tokens/?search={username|email}
// Newest tokens come first.
func (h *AdminHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tokens, err := h.tokens.ListTokens(ctx, search)
	if err != nil {
		h.logger.Error("failed to list tokens",
			"error", err,
			"search", truncateForLog(search, 100),
		)
		writeDetail(w, http.StatusInternalServerError, msgServerError)
		return
	}

	writeJSON(w, http.StatusOK, TokenListResponse{Tokens: tokens, Total: len(tokens)})
}

// DeactivateToken handles POST /admin/tokens/{key}/deactivate/
func (h *AdminHandler) DeactivateToken(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	actor := auth.MustAuthFromContext(r.Context()).Username

	result, err := h.revoker.Revoke(r.Context(), key, actor)
	switch {
	case errors.Is(err, token.ErrNotFound):
		writeDetail(w, http.StatusNotFound, msgNotFound)
		return
	case errors.Is(err, token.ErrBadCredentials):
		writeDetail(w, http.StatusBadRequest, "Token is already inactive.")
		return
	case err != nil:
		h.logger.Error("failed to deactivate token",
			"error", err,
			"token_prefix", model.KeyPrefix(key),
		)
		writeDetail(w, http.StatusInternalServerError, msgServerError)
		return
	}

	h.logger.Info("token deactivated by staff",
		"actor", actor,
		"user_id", result.UserID,
		"token_prefix", model.KeyPrefix(key),
	)
	writeDetail(w, http.StatusOK, result.Message)
}

// AuditLogResponse lists recent lifecycle events.
type AuditLogResponse struct {
	Events []audit.Entry `json:"events"`
	Total  int           `json:"total"`
}

// AuditLog handles GET /admin/audit/?count={n}
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Audit stream is disabled.")
		return
	}

	count := int64(defaultAuditCount)
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"count": {"A valid integer is required."}})
			return
		}
		count = min(n, maxAuditCount)
	}

	entries, err := h.audit.Recent(r.Context(), count)
	if err != nil {
		h.logger.Error("failed to read audit stream", "error", err)
		writeDetail(w, http.StatusInternalServerError, msgServerError)
		return
	}

	writeJSON(w, http.StatusOK, AuditLogResponse{Events: entries, Total: len(entries)})
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
