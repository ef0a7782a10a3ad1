package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookcatalog/internal/book"
	"bookcatalog/internal/config"
	"bookcatalog/internal/httpx"
)

// newRouter wires the middleware chain, probes and the versioned book routes.
func newRouter(cfg config.Config, h *book.HTTPHandler, limiter *httpx.RateLimitMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.RecoveryMiddleware)
	r.Use(httpx.AccessLogMiddleware)
	r.Use(httpx.SecurityHeadersMiddleware(false))
	r.Use(httpx.CORSMiddleware(cfg.CORSOrigins))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Use(httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/api/v1", h.Routes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONErrorWithRequest(r, w, http.StatusNotFound, book.CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONErrorWithRequest(r, w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}
