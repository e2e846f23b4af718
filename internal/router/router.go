package router

import (
	"net/http"

	"pricetracker/internal/handler"
	"pricetracker/internal/middleware"
	"pricetracker/pkg/apierror"
	"pricetracker/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DefaultWebhookPath is where Telegram posts updates in webhook mode.
const DefaultWebhookPath = "/telegram/webhook"

// Config holds the configuration for creating a router.
type Config struct {
	Handler *handler.Handler
	Logger  *zap.Logger

	// Webhook receives Telegram updates; nil leaves the route unmounted.
	Webhook       http.HandlerFunc
	WebhookPath   string
	WebhookSecret string

	// Metrics overrides the /metrics handler. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger.Named("http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound(""))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.MethodNotAllowed(""))
	})

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		})
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	if cfg.Webhook != nil {
		path := cfg.WebhookPath
		if path == "" {
			path = DefaultWebhookPath
		}
		r.With(middleware.WebhookSecret(cfg.WebhookSecret)).Post(path, cfg.Webhook)
	}

	return r
}
