// internal/app/features/csp/routes.go
package csp

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the violation report endpoint. Mount at
// ReportPath.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Serve)
	return r
}
