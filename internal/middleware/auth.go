package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const (
	RequesterKey contextKey = "requester"
)

// SessionAuth resolves the caller to a stable requester ID. Two credential
// forms are accepted on the Authorization header:
//   - a JWT bearer session token signed with jwtSecret (subject = requester)
//   - a raw API key from the configured key table (key -> requester)
//
// A request with neither is a precondition failure (401), never a pipeline
// state.
func SessionAuth(validKeys map[string]string, jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health and metrics probes
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			requester := ""
			if len(jwtSecret) > 0 && strings.Count(token, ".") == 2 {
				requester = requesterFromJWT(token, jwtSecret)
			}
			if requester == "" {
				requester = requesterFromAPIKey(token, validKeys)
			}
			if requester == "" {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), RequesterKey, requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requesterFromJWT(token string, secret []byte) string {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return ""
	}
	return claims.Subject
}

// requesterFromAPIKey uses constant-time comparison to prevent timing attacks.
func requesterFromAPIKey(key string, validKeys map[string]string) string {
	for k, requester := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			return requester
		}
	}
	return ""
}

// GetRequesterFromContext extracts the authenticated requester ID.
func GetRequesterFromContext(ctx context.Context) string {
	if requester, ok := ctx.Value(RequesterKey).(string); ok {
		return requester
	}
	return ""
}
