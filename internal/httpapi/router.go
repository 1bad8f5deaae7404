package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the HTTP routes and middleware stack
func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(sessionMiddleware)
	r.Use(recoverMiddleware(logger))
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", handler.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/", handler.search)
			r.Get("/unified", handler.unifiedSearch)
		})
		r.Get("/suggestions", handler.suggestions)
		r.Post("/smart-search", handler.smartSearch)

		r.Route("/services/{id}", func(r chi.Router) {
			r.Get("/components", handler.packageComponents)
			r.Get("/branches", handler.serviceBranches)
		})
		r.Get("/branches", handler.cartBranches)

		r.Route("/reference", func(r chi.Router) {
			r.Post("/refresh", handler.refreshReference)
			r.Get("/{dataset}", handler.referenceData)
		})

		r.Delete("/cache", handler.clearCache)
		r.Get("/cache/status", handler.cacheStatus)
	})

	return r
}
