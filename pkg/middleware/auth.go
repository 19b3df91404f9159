package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shanialy/HRM/internal/core/services"
)

type contextKey string

// PrincipalKey carries the authenticated principal bound at handshake.
const PrincipalKey contextKey = "principal"

// AuthMiddleware verifies the bearer credential before any event handling is
// registered. Browsers cannot set headers on a WebSocket handshake, so a
// token query parameter is accepted as the fallback.
func AuthMiddleware(tokenSvc *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
					return
				}
				token = parts[1]
			} else {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}
			principal, err := tokenSvc.VerifyToken(token)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
