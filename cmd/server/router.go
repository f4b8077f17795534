package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockpulse/stockpulse-api/internal/api"
	apiMiddleware "github.com/stockpulse/stockpulse-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Authentication is applied to the API group only when a JWT
// secret is configured; health and metrics stay public either way.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.queue, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		if app.config.Auth.JWTSecret != "" {
			authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)
			r.Use(authMiddleware.Authenticate)
		}

		r.Post("/analyses", taskHandler.SubmitAnalysis)
		r.Get("/analyses/{id}", taskHandler.GetAnalysis)
		r.Get("/queue/stats", taskHandler.GetQueueStats)
		r.Post("/queue/cleanup", taskHandler.CleanupTasks)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
