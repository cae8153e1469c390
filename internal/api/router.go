package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"duck-intake/internal/credential"
	"duck-intake/internal/metrics"
	"duck-intake/internal/middleware"
)

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Handler            *Handler
	Gate               *credential.Gate
	CORSAllowedOrigins []string
	// RateLimit, when set, throttles the intake route per client.
	RateLimit *middleware.RateLimitConfig
}

// NewRouter builds the gateway's route table. ctx bounds background work
// owned by the middleware.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", cfg.Handler.Hello)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(middleware.RateLimiter(ctx, *cfg.RateLimit))
		}
		r.With(middleware.IntakeAuth(cfg.Gate, CollectionParam)).
			Post("/intake/{collection}.json", cfg.Handler.Intake)
	})

	return r
}
