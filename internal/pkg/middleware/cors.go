package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS aplica a política de origem. Os headers "token" e Authorization
// precisam passar no preflight para o app mobile/web.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "token"},
	})
	return c.Handler
}
