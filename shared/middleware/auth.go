package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/patcharinz/healthmate-api/shared/auth"
)

type contextKey struct{}

// UserClaimsKey is the context key under which validated access token
// claims are stored.
var UserClaimsKey = contextKey{}

// RequireAuth validates the request's bearer token against the gateway's
// shared secret and places the parsed claims into the request context.
func RequireAuth(jwtAuth auth.JWTAuthenticator, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims := &auth.AccessTokenClaims{}
			if _, err := jwtAuth.ValidateTokenWithClaims(tokenStr, secret, claims); err != nil {
				unauthorized(w, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*auth.AccessTokenClaims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*auth.AccessTokenClaims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"data":null,"error":{"message":"` + message + `"}}`))
}
