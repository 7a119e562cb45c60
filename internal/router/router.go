package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samims/notify/internal/handler"
	"github.com/samims/notify/internal/middleware"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Notifications *handler.NotificationHandler
	Channels      *handler.ChannelHandler
	Health        *handler.HealthHandler
}

// NewRouter mounts the API. Requests under /api/v1 require a bearer token
// when authSecret is non-empty.
func NewRouter(h Handlers, authSecret string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.MetricsMiddleware)

	r.Get("/healthz", h.Health.Liveness)
	r.Get("/readyz", h.Health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		if authSecret != "" {
			r.Use(middleware.AuthMiddleware(authSecret))
		}

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", h.Notifications.Create)
			r.Get("/{id}", h.Notifications.Get)
		})
		r.Get("/channels", h.Channels.List)
	})
	return r
}
