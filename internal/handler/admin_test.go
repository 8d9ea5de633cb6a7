package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenapi/tokenapi/internal/audit"
	"github.com/tokenapi/tokenapi/internal/model"
)

func newAdminRouter(env *testEnv, staff *model.User, staffTok *model.Token) http.Handler {
	h := NewAdminHandler(env.store, env.tokens, env.audit, env.logger)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, asUser(r, staff, staffTok))
		})
	})
	r.Get("/admin/tokens/", h.ListTokens)
	r.Post("/admin/tokens/{key}/deactivate/", h.DeactivateToken)
	r.Get("/admin/audit/", h.AuditLog)
	return r
}

func TestAdmin_ListTokens(t *testing.T) {
	env := newTestEnv(t)
	staff, staffTok := env.createUser(t, "root", true)
	env.createUser(t, "alice", false)
	env.createUser(t, "bob", false)
	r := newAdminRouter(env, staff, staffTok)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/admin/tokens/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[TokenListResponse](t, rec)
	assert.Equal(t, 3, all.Total)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/admin/tokens/?search=ALI", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[TokenListResponse](t, rec)
	require.Equal(t, 1, found.Total)
	assert.Equal(t, "alice", found.Tokens[0].Username)
}

func TestAdmin_DeactivateToken(t *testing.T) {
	env := newTestEnv(t)
	staff, staffTok := env.createUser(t, "root", true)
	alice, aliceTok := env.createUser(t, "alice", false)
	r := newAdminRouter(env, staff, staffTok)

	rec := serve(r, httptest.NewRequest(http.MethodPost, "/admin/tokens/"+aliceTok.Key+"/deactivate/", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, env.store.ActiveTokenCount(alice.ID))

	rec = serve(r, httptest.NewRequest(http.MethodPost, "/admin/tokens/"+aliceTok.Key+"/deactivate/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodPost, "/admin/tokens/0000000000000000000000000000000000000000/deactivate/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	events := env.audit.Events()
	last := events[len(events)-1]
	assert.Equal(t, audit.EventDeactivated, last.Type)
	assert.Equal(t, "root", last.Actor)
}

func TestAdmin_AuditLog(t *testing.T) {
	env := newTestEnv(t)
	staff, staffTok := env.createUser(t, "root", true)
	env.createUser(t, "alice", false)
	r := newAdminRouter(env, staff, staffTok)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/admin/audit/?count=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	log := decodeBody[AuditLogResponse](t, rec)
	require.Equal(t, 1, log.Total)
	assert.Equal(t, audit.EventIssued, log.Events[0].Event.Type)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/admin/audit/?count=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := NewAdminHandler(env.store, env.tokens, nil, env.logger)
	rec = serve(http.HandlerFunc(disabled.AuditLog), httptest.NewRequest(http.MethodGet, "/admin/audit/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
