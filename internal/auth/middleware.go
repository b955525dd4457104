package auth

import (
	"context"
	"net/http"
)

// tokenCookieName is where the login handlers store the JWT. HttpOnly, so
// page scripts can't read it — the browser just sends it back on every
// request and the middleware below does the rest.
const tokenCookieName = "token"

// contextKey keeps this package's context values private: context.WithValue
// keys are compared by type AND value, so a key of an unexported type can't
// be read or shadowed by any other package. A bare string key could.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth guards protected routes. It validates the JWT cookie and puts
// the member's ID into the request context; a missing or invalid token ends
// the request with a 401 before the handler runs.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromCookie(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the member's ID when a valid token is present and
// does nothing otherwise — no 401, the request proceeds anonymously. For
// public routes that show extra data to logged-in members.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := userIDFromCookie(r, tokens); err == nil && userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated member's ID, or ("", false)
// when the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// userIDFromCookie reads and validates the JWT cookie. Shared by both
// middlewares; http.ErrNoCookie just means the caller isn't logged in.
func userIDFromCookie(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
