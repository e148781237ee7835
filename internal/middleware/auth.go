package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth creates middleware that authenticates the local control surface
// with a bcrypt-hashed API key. An empty hash disables auth, which is the
// expected mode when the agent only listens on loopback.
func APIKeyAuth(apiKeyHash, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKeyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Health stays open for supervisors
			path := r.URL.Path
			if path == "/health" || path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(path, "/api") && path != "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				unauthorized(w, "API key is required.")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(providedKey)); err != nil {
				unauthorized(w, "Invalid API key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
