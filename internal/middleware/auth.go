// Package middleware provides HTTP middleware: authentication, request
// IDs, and per-client rate limiting.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gridlake/internal/domain"
)

// Auth tries a JWT Bearer token first, then the static API key.
// Returns 401 if both fail. The resolved principal is stored in the
// request context. Bearer tokens are only considered when a non-empty
// secret is configured: HS256 verifies against whatever key it is given,
// so an empty secret would accept tokens signed with the empty key.
func Auth(jwtSecret []byte, apiKey string) func(http.Handler) http.Handler {
	apiKeyHash := sha256.Sum256([]byte(apiKey))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); len(jwtSecret) > 0 && strings.HasPrefix(auth, "Bearer ") {
				tokenStr := strings.TrimPrefix(auth, "Bearer ")
				token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
					return jwtSecret, nil
				}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

				if err == nil && token.Valid {
					if claims, ok := token.Claims.(jwt.MapClaims); ok {
						if sub, ok := claims["sub"].(string); ok && sub != "" {
							ctx := domain.WithPrincipal(r.Context(), sub)
							next.ServeHTTP(w, r.WithContext(ctx))
							return
						}
					}
				}
			}

			if key := r.Header.Get("X-API-Key"); key != "" && apiKey != "" {
				keyHash := sha256.Sum256([]byte(key))
				if subtle.ConstantTimeCompare(keyHash[:], apiKeyHash[:]) == 1 {
					ctx := domain.WithPrincipal(r.Context(), "api-key")
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    401,
				"message": "unauthorized: provide a valid JWT Bearer token or API key",
			})
		})
	}
}
