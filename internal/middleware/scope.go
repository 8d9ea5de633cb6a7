package middleware

import (
	"net/http"

	"github.com/tokenapi/tokenapi/internal/auth"
)

// RequireStaff rejects callers whose user is not flagged as staff.
// Must be applied after Auth middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			writeAuthError(w, msgNotAuthenticated)
			return
		}
		if !authCtx.IsStaff {
			writeDetail(w, http.StatusForbidden, msgPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}
