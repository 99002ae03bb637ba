package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jayampathiw/task-escrow/logging"
	"github.com/jayampathiw/task-escrow/utils"
)

type contextKey string

const callerKey contextKey = "caller"

// JWTAuthMiddleware validates the bearer token and stores the authenticated
// account address in the request context for the handlers.
func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logging.Logger.Warnf("Event ID: JWT_AUTH_MISSING_HEADER, Description: Authorization header missing for request to %s %s", r.Method, r.URL.Path)
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := utils.ValidateToken(tokenStr)
		if err != nil {
			logging.Logger.Warnf("Event ID: JWT_AUTH_INVALID_TOKEN, Description: Invalid token provided for request to %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, claims.Address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFromContext returns the authenticated account address placed in the
// context by JWTAuthMiddleware.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey).(string)
	return caller, ok && caller != ""
}

// WithCaller is used by tests to exercise handlers without a real token.
func WithCaller(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, callerKey, address)
}
