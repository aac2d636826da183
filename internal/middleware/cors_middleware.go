package middleware

import (
	"net/http"

	"stickyboard-server/internal/config"

	"github.com/rs/cors"
)

func CORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: config.SplitList(cfg.AllowedOrigins),
		AllowedMethods: config.SplitList(cfg.AllowedMethods),
		AllowedHeaders: config.SplitList(cfg.AllowedHeaders),
		ExposedHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:         3600,
	})
	return c.Handler
}
