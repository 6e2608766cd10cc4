package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
)

type ownerCtxKey struct{}

// ownerFromContext returns the authenticated owner, empty for anonymous callers.
func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}

func withOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, owner)
}

func parseOwner(secret []byte, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}

// authenticate resolves the bearer token, if any, into the request owner.
// Requests without a token pass through anonymously, broken tokens are refused.
func authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || len(secret) == 0 {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, unauthorizedResponse)
				return
			}

			owner, err := parseOwner(secret, strings.TrimSpace(tokenString))
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, unauthorizedResponse)
				return
			}

			next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), owner)))
		})
	}
}

func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ownerFromContext(r.Context()) == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, unauthorizedResponse)
			return
		}

		next.ServeHTTP(w, r)
	})
}
