package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidnote/vidnote/internal/httputil"
)

type contextKey string

const userIDKey contextKey = "userID"

// LocalUser owns progress and captures when authentication is disabled.
const LocalUser = "local"

// Middleware authenticates requests with a bearer token. Browsers cannot set
// headers on websocket upgrades, so an access_token query parameter is also
// accepted. With an empty secret every request runs as LocalUser.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), LocalUser)))
				return
			}

			tokenStr := r.URL.Query().Get("access_token")
			if tokenStr == "" {
				header := r.Header.Get("Authorization")
				if header == "" {
					httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
					return
				}
				var found bool
				tokenStr, found = strings.CutPrefix(header, "Bearer ")
				if !found {
					httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
					return
				}
			}

			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
