package middleware

import (
	"encoding/json"
	"net/http"
)

// Detail messages shared by the middleware that reject requests.
const (
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgNoCredentials    = "Invalid token header. No credentials provided."
	msgKeyHasSpaces     = "Invalid token header. Token string should not contain spaces."
	msgInvalidToken     = "Invalid token."
	msgTokenInactive    = "Token is inactive."
	msgTokenExpired     = "Token has expired."
	msgUserInactive     = "User inactive or deleted."
	msgPermissionDenied = "You do not have permission to perform this action."
	msgServerError      = "A server error occurred."
)

// writeDetail writes a {"detail": msg} JSON body with the given status.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
