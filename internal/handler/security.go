package handler

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/go-faster/sdk/zctx"
)

// APIKeyHeader carries the till API key.
const APIKeyHeader = "X-API-Key"

// requireAPIKey rejects requests without the configured key. Keys are
// compared through their SHA-256 digests in constant time.
func requireAPIKey(key string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(key))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := sha256.Sum256([]byte(r.Header.Get(APIKeyHeader)))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				zctx.From(r.Context()).Debug("Rejected request without valid API key")
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
