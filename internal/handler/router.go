package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/knowledge-chat/internal/controller"
	"github.com/capitalize-ai/knowledge-chat/internal/middleware"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Controller *controller.Controller
	Hub        *Hub
	Logger     *logger.Logger
	Checks     []ReadinessCheck

	CORSOrigins []string

	AuthEnabled bool
	JWTSecret   string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.Checks...)
	conversationHandler := NewConversationHandler(cfg.Controller, cfg.Logger)
	messageHandler := NewMessageHandler(cfg.Controller, cfg.Logger)
	streamHandler := NewStreamHandler(cfg.Controller, cfg.Hub, cfg.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/state", conversationHandler.State)
		r.Get("/active", conversationHandler.Active)
		r.Get("/stream", streamHandler.Stream)

		r.Group(func(r chi.Router) {
			if cfg.AuthEnabled {
				r.Use(middleware.RequireScope(middleware.ScopeChatWrite))
			}
			r.Post("/conversations", conversationHandler.Create)
			r.Put("/active", conversationHandler.Select)
			r.Post("/messages", messageHandler.Submit)
		})
	})

	return r
}
