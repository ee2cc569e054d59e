package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/api-sage/escrow-engine/src/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

// BasicAuth gates the API behind a single channel credential. When
// channelKeyHash is set it is a bcrypt hash and takes precedence over the
// plain channelKey.
func BasicAuth(channelID, channelKey, channelKeyHash string) func(http.Handler) http.Handler {
	verifyKey := func(key string) bool {
		if channelKeyHash != "" {
			return bcrypt.CompareHashAndPassword([]byte(channelKeyHash), []byte(key)) == nil
		}
		return secureEqual(key, channelKey)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if channelID == "" || (channelKey == "" && channelKeyHash == "") {
				logger.Error("basic auth middleware missing server configuration", nil, logger.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				})
				http.Error(w, "server auth configuration is missing", http.StatusInternalServerError)
				return
			}

			id, key, ok := r.BasicAuth()
			if !ok || !secureEqual(id, channelID) || !verifyKey(key) {
				logger.Info("basic auth middleware unauthorized request", logger.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"credentials": "invalid_or_missing",
				})
				w.Header().Set("WWW-Authenticate", `Basic realm="escrow-engine"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
