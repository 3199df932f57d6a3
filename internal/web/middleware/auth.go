package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/JonMunkholm/sheetstore/internal/config"
	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// ActorHeader names the caller when API keys are not required.
const ActorHeader = "X-Actor"

// APIKeyAuth returns middleware that attributes each request to an actor.
//
// With RequireAPIKey set, X-API-Key must match one of the configured
// name:key pairs and the matching name becomes the audit actor. Otherwise
// requests pass through and the X-Actor header, when present, is the actor.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := cfg.APIKeyMap()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				ctx := store.ContextWithActor(r.Context(), r.Header.Get(ActorHeader))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}

			name, ok := lookupKey(apiKey, keys)
			if !ok {
				logging.FromContext(r.Context()).Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}

			next.ServeHTTP(w, r.WithContext(store.ContextWithActor(r.Context(), name)))
		})
	}
}

// lookupKey compares key against every configured key in constant time and
// returns the name of the match.
func lookupKey(key string, keys map[string]string) (string, bool) {
	var name string
	found := 0
	for candidate, n := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			name = n
			found = 1
		}
	}
	return name, found == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","message":"` + message + `","code":"` + code + `"}` + "\n"))
}
