package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/skyfuse/skyfuse/internal/api/models"
)

// apiKeyNameKey is the context key for the authenticated API key name.
type apiKeyNameKey struct{}

// APIKeyAuth creates authentication middleware that validates the X-Api-Key
// header against a set of named keys. Comparison is constant time so timing
// cannot distinguish near-miss keys.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Api-Key")
			if provided == "" {
				writeUnauthorized(w, r, "missing api key")
				return
			}

			// Always compare against every configured key so that the
			// time taken does not reveal which key matched.
			matched := ""
			for name, key := range keys {
				if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
					matched = name
				}
			}

			if matched == "" {
				writeUnauthorized(w, r, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyNameKey{}, matched)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetAPIKeyName retrieves the authenticated API key name from the context.
// Returns an empty string if not authenticated.
func GetAPIKeyName(ctx context.Context) string {
	if name, ok := ctx.Value(apiKeyNameKey{}).(string); ok {
		return name
	}
	return ""
}
