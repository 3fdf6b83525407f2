package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/core/services/audit"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware ensures the request carries a valid session.
func AuthMiddleware(authService ports.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get token from cookie
			cookie, err := r.Cookie("session_token")
			var token string
			if err == nil {
				token = cookie.Value
			}

			// Fallback to Header (for API clients)
			if token == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					token = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := authService.ValidateToken(r.Context(), token)
			if err != nil {
				// Clear cookie if invalid
				http.SetCookie(w, &http.Cookie{
					Name:   "session_token",
					Value:  "",
					Path:   "/",
					MaxAge: -1,
				})
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}

			// Attach user both for handlers and for audit attribution.
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = audit.WithUser(ctx, *user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromRequest returns the authenticated user set by AuthMiddleware.
func UserFromRequest(r *http.Request) (*domain.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

// RequireEditor rejects viewers: mutations (imports, runs, finding edits)
// need the analyst or admin role.
func RequireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !user.CanEdit() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin restricts a route to administrators.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !user.IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
