// internal/app/features/openid/routes.go
package openid

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the federated-login endpoints. Mount at
// /openid.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/authentication", h.BeginAuth)
	r.Get("/callback", h.Callback)
	return r
}
