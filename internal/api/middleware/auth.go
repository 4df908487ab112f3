// Package middleware provides the HTTP middleware for the dashboard API.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clariohq/clario/internal/api/ctxkeys"
	pkgauth "github.com/clariohq/clario/pkg/auth"
)

// AuthMiddleware validates the Bearer JWT token and injects claims into
// context. Applied to all /api/v1/* routes; the public widget chat endpoint
// and /auth/* never pass through it.
//
// Flow:
//  1. Read "Authorization: Bearer <token>" header
//  2. Reject if missing or not Bearer scheme with 401
//  3. Parse and validate the JWT, 401 on invalid or expired
//  4. Inject ctxkeys.UserID and ctxkeys.TenantID into context
//  5. Call the next handler
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearerToken(r)
		if tokenString == "" {
			writeUnauthorized(w, "missing or invalid Authorization header")
			return
		}

		claims, err := pkgauth.ParseJWT(tokenString)
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := r.Context()
		ctx = ctxkeys.WithValue(ctx, ctxkeys.UserID, claims.UserID)
		ctx = ctxkeys.WithValue(ctx, ctxkeys.TenantID, claims.TenantID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// Returns empty string if the header is missing, uses another scheme, or
// carries an empty token.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	// Scheme is case-sensitive per RFC 7235
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// writeUnauthorized writes a 401 JSON response in the same shape as
// writeError in the handlers package.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
