package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"nomadHubAPI/internal/apperr"
)

const (
	AdminPasswordHeader = "X-Admin-Password"
	bearerPrefix        = "Bearer "
)

var (
	ErrForbidden    = apperr.Auth(http.StatusForbidden, "Forbidden")
	ErrUnauthorized = apperr.Auth(http.StatusUnauthorized, "Unauthorized")
)

// RequireAdminPassword guards the partner write endpoint with the
// X-Admin-Password header. Failures are 403.
func RequireAdminPassword(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secretMatches(r.Header.Get(AdminPasswordHeader), secret) {
				authRejections.WithLabelValues("403_forbidden").Inc()
				respondWithAppError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminBearer guards the dashboard with "Authorization: Bearer <secret>".
// Failures are 401.
func RequireAdminBearer(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || !secretMatches(token, secret) {
				authRejections.WithLabelValues("401_unauthorized").Inc()
				respondWithAppError(w, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// An unset secret never matches.
func secretMatches(given, secret string) bool {
	if secret == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

func respondWithAppError(w http.ResponseWriter, err *apperr.Error) {
	respondWithError(w, err.Status, err.Message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
