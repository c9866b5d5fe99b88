package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/adapter/http/handler"
	"github.com/vendora/payouts/internal/adapter/http/middleware"
	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/infrastructure/auth"
	"github.com/vendora/payouts/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	PayeeHandler     *handler.PayeeHandler
	PaymentHandler   *handler.PaymentHandler
	WebhookHandler   *handler.WebhookHandler
	AuthHandler      *handler.AuthHandler
	HealthHandler    *handler.HealthHandler
	JWTManager       *auth.JWTManager
	IdempotencyStore usecase.IdempotencyStore
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Processor webhooks. Unauthenticated by design: correlation and the
	// (processor, event id) dedupe ledger gate what an event can do.
	r.Post("/webhooks/{processor}", cfg.WebhookHandler.Receive)

	if cfg.AuthHandler != nil {
		r.Post("/api/v1/auth/login", cfg.AuthHandler.Login)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		if cfg.AuthHandler != nil {
			r.Get("/auth/me", cfg.AuthHandler.GetCurrentUser)
		}

		// Payees
		r.Route("/payees/{id}", func(r chi.Router) {
			r.Get("/eligibility", cfg.PayeeHandler.Eligibility)
			r.Get("/estimate", cfg.PayeeHandler.Estimate)
			r.Get("/payments", cfg.PayeeHandler.ListPayments)
			r.Get("/credits", cfg.PayeeHandler.ListCredits)
			r.Get("/notes", cfg.PayeeHandler.ListNotes)

			r.Group(func(r chi.Router) {
				if cfg.JWTManager != nil {
					r.Use(middleware.RequireRole(domain.RoleOperator))
				}
				r.Post("/payouts", cfg.PayeeHandler.TriggerPayout)
				r.Post("/notes", cfg.PayeeHandler.AddNote)
			})

			r.Group(func(r chi.Router) {
				if cfg.JWTManager != nil {
					r.Use(middleware.RequireRole(domain.RoleAdmin))
				}
				r.Post("/payouts/pause", cfg.PayeeHandler.PausePayouts)
				r.Post("/payouts/resume", cfg.PayeeHandler.ResumePayouts)
			})
		})

		// Payments
		r.Get("/payments/{id}", cfg.PaymentHandler.Get)
	})

	return r
}
