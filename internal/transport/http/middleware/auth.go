package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-accounts-api/internal/domain"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AccessCookie carries the access token for browser clients.
const AccessCookie = "token"

type tokenVerifier interface {
	Verify(token string) (string, error)
}

// Auth resolves the caller from the Authorization header, falling back to
// the access-token cookie, and stores the user ID in the request context.
// Any failure ends the request with 401 before the handler runs.
func Auth(verifier tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := verifier.Verify(tokenFromRequest(r))
			if err != nil {
				var re *domain.ReasonError
				if !errors.As(err, &re) {
					slog.Error("token verification failed", "err", err)
					re = domain.ErrTokenInvalid
				}
				writeJSONError(w, http.StatusUnauthorized, re.Message, re.Code)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// tokenFromRequest returns "" when no token was presented. A header without
// a token part counts as absent and does not fall back to the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Fields(h)
		if len(parts) < 2 {
			return ""
		}
		return parts[1]
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
