package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// TokenHeader carries a freshly minted access token back to clients.
const TokenHeader = "X-GM-Token"

// Local storefront and admin dev servers.
var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS allows the configured storefront origins; none configured means the
// local dev hosts. Clients can read the refreshed token and request id.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = devOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"Idempotency-Key",
			requestIDHeader,
			TokenHeader,
		},
		ExposedHeaders:   []string{TokenHeader, requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
