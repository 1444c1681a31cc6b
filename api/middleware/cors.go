package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dev
	"https://soundpost.app",
	"https://www.soundpost.app",
}

// CORS returns middleware that applies the API's allowed origin policy.
// Range and conditional headers are exposed so browser audio players can
// seek through streamed media.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Range", "If-Range", "X-Requested-With"},
		ExposedHeaders:   []string{"Accept-Ranges", "Content-Range", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
