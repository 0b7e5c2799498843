package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/adapter/http/handler"
	"github.com/iho/trustledger/internal/adapter/http/middleware"
	"github.com/iho/trustledger/internal/infrastructure/auth"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
	"github.com/iho/trustledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TrustHandler     *handler.TrustHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	// JWTManager enables bearer authentication. When nil, the caller is
	// taken from the X-Actor-ID and X-Actor-Role headers.
	JWTManager     *auth.JWTManager
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager, cfg.Metrics))
		} else {
			r.Use(middleware.HeaderActor(cfg.Metrics))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.Logger).WithTTL(cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/matters/{id}/trust", func(r chi.Router) {
			r.Get("/", cfg.TrustHandler.Get)
			r.Post("/", cfg.TrustHandler.Record)
			r.Get("/export", cfg.TrustHandler.Export)
			r.Get("/verify", cfg.TrustHandler.Verify)
			r.Post("/reconcile", cfg.TrustHandler.Reconcile)
		})

		r.Post("/trust/transactions/{id}/reverse", cfg.TrustHandler.Reverse)
		r.Post("/firm-accounts/{id}/reconcile", cfg.TrustHandler.ReconcileFirm)
	})

	return r
}
