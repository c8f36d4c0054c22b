// internal/app/features/organizations/routes.go
package organizations

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter mounted at /admin/api/organizations.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/new", h.Create)
	r.Post("/update", h.Update)
	r.Post("/validate-slug", h.ValidateSlug)
	r.Get("/{id}", h.Get)

	return r
}
