package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/logging"
)

// APIKeyAuth rejects requests that do not carry one of cfg.APIKeys, either
// in X-API-Key or as an "Authorization: Bearer" token. It is a no-op when
// RequireAPIKey is false. Preflight requests always pass so CORS keeps
// working.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			log := logging.WithFields(r.Context(),
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)

			key := requestKey(r)
			if key == "" {
				log.Warn("auth: missing API key")
				denyJSON(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}
			if !isValidAPIKey(key, cfg.APIKeys) {
				log.Warn("auth: invalid API key")
				denyJSON(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// isValidAPIKey compares key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

func denyJSON(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg,
		"message": msg,
		"code":    code,
	})
}
