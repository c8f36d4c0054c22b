// internal/app/features/authstatus/routes.go
package authstatus

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the status probe. Mount at Path.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	return r
}
