package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/server/auth"
)

type userIDContextKey struct{}

// AuthMiddleware validates a bearer JWT and stores the user ID in the
// request context. An expired token gets 401 so clients can refresh and
// retry.
func AuthMiddleware(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := auth.GetUserIDFromToken(strings.TrimPrefix(header, prefix), secretKey)
			if err != nil {
				if errors.Is(err, common.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, "token expired")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDContextKey{}).(string); ok {
		return v
	}
	return ""
}
