// internal/app/features/users/routes.go
package users

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter mounted at /admin/api/users.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/check", h.Check)
	r.Post("/edit", h.Update)
	r.Get("/roles", h.AvailableRoles)

	r.Get("/current", h.Current)
	r.Post("/current/edit", h.EditCurrent)
	r.Post("/current/update-password", h.UpdateCurrentPassword)

	r.Post("/{id}/enable/{enable}", h.SetEnabled)
	r.Put("/{id}/reset-password", h.ResetPassword)
	r.Delete("/{id}", h.Delete)

	return r
}

// APIKeyRoutes returns the subrouter mounted at /admin/api/api-keys.
func APIKeyRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/bulk", h.BulkAPIKeys)
	return r
}
