package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/token"
)

const validKey = "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b"

type fakeAuthenticator struct {
	results map[string]error
	calls   []string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, key string) (*model.AuthContext, error) {
	f.calls = append(f.calls, key)
	if err, ok := f.results[key]; ok {
		return nil, err
	}
	if key != validKey {
		return nil, token.ErrNotFound
	}
	return &model.AuthContext{UserID: 7, Username: "admin", TokenKey: key}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["detail"]
}

func TestAuth_HeaderParsing(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantDetail string
		wantCalled bool
	}{
		{"missing header", "", http.StatusUnauthorized, msgNotAuthenticated, false},
		{"other scheme", "Bearer " + validKey, http.StatusUnauthorized, msgNotAuthenticated, false},
		{"keyword only", "Token", http.StatusUnauthorized, msgNoCredentials, false},
		{"keyword with trailing space", "Token   ", http.StatusUnauthorized, msgNoCredentials, false},
		{"key with spaces", "Token abc def", http.StatusUnauthorized, msgKeyHasSpaces, false},
		{"unknown key", "Token 0000000000000000000000000000000000000000", http.StatusUnauthorized, msgInvalidToken, true},
		{"valid key", "Token " + validKey, http.StatusOK, "", true},
		{"keyword is case insensitive", "token " + validKey, http.StatusOK, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := &fakeAuthenticator{}
			var got *model.AuthContext
			handler := Auth(AuthConfig{Logger: discardLogger(), Authenticator: authn})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = auth.AuthFromContext(r.Context())
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/data/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, len(authn.calls) > 0)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, int64(7), got.UserID)
				return
			}
			assert.Equal(t, AuthKeyword, rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rec))
		})
	}
}

func TestAuth_LifecycleFailures(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantDetail string
	}{
		{token.ErrInactive, http.StatusUnauthorized, msgTokenInactive},
		{token.ErrExpired, http.StatusUnauthorized, msgTokenExpired},
		{token.ErrUserInactive, http.StatusUnauthorized, msgUserInactive},
		{errors.New("connection refused"), http.StatusInternalServerError, msgServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			authn := &fakeAuthenticator{results: map[string]error{validKey: tt.err}}
			handler := Auth(AuthConfig{Logger: discardLogger(), Authenticator: authn})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler must not run")
				}))

			req := httptest.NewRequest(http.MethodPost, "/api-token-logout/", nil)
			req.Header.Set("Authorization", "Token "+validKey)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rec))
		})
	}
}
