package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"photohunter/services"
	"photohunter/utils/errors"
)

type contextKey string

const claimsKey contextKey = "claims"

// bearerToken returns the token of an "Authorization: Bearer" header. ok is
// false when the header is absent.
func bearerToken(r *http.Request) (token string, ok bool, err error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", true, errors.ErrUnauthorized
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true, nil
}

func authenticate(tokens *services.TokenService, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, present, err := bearerToken(r)
			if err != nil {
				WriteError(w, err)
				return
			}
			if !present {
				if required {
					WriteError(w, errors.ErrUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.ParseToken(tokenString)
			if err != nil {
				glog.V(1).Infof("Rejected bearer token on %s: %v", r.URL.Path, err)
				WriteError(w, errors.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(tokens *services.TokenService) func(http.Handler) http.Handler {
	return authenticate(tokens, true)
}

// OptionalAuth lets anonymous requests through but still rejects a
// malformed or expired token.
func OptionalAuth(tokens *services.TokenService) func(http.Handler) http.Handler {
	return authenticate(tokens, false)
}

func ClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.Claims)
	return claims, ok
}
