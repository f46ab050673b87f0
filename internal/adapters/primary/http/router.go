package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/lorrc/support-chat-gateway/internal/adapters/primary/http/middleware"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// RouterDeps collects everything the HTTP surface is built from. Optional
// fields may be nil.
type RouterDeps struct {
	Verifier      ports.TokenVerifier
	WebSocket     *WebSocketHandler
	Notifications *NotificationHandler
	Conversations *ConversationHandler
	Assignment    *AssignmentHandler
	Me            *MeHandler
	UserStatus    *UserStatusHandler
	Health        *HealthHandler

	// Optional
	Metrics     http.Handler
	HTTPMetrics mw.HTTPRecorder
	RateLimiter *mw.RateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter wires the middleware stack and routes.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	if deps.HTTPMetrics != nil {
		r.Use(mw.Metrics(deps.HTTPMetrics))
	}
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
			ExposedHeaders:   []string{mw.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Apply general rate limiting if enabled
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard orchestrator paths)
	if deps.Health != nil {
		deps.Health.RegisterRoutes(r)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket route (authentication is handled by the gateway)
		if deps.WebSocket != nil {
			r.Get("/ws", deps.WebSocket.ServeHTTP)
		}

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(deps.Verifier))

			if deps.Me != nil {
				r.Route("/me", deps.Me.RegisterRoutes)
			}
			if deps.Notifications != nil {
				r.Route("/notifications", deps.Notifications.RegisterRoutes)
			}
			if deps.Conversations != nil {
				r.Route("/conversations", deps.Conversations.RegisterRoutes)
			}
			if deps.UserStatus != nil {
				r.Route("/users", func(r chi.Router) {
					r.Use(mw.RequireStaff)
					deps.UserStatus.RegisterRoutes(r)
				})
			}
			if deps.Assignment != nil {
				r.Route("/internal/tickets", func(r chi.Router) {
					r.Use(mw.RequireStaff)
					deps.Assignment.RegisterRoutes(r)
				})
			}
		})
	})

	return r
}
