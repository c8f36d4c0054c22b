// internal/app/features/login/routes.go
package login

import (
	"github.com/go-chi/chi/v5"

	"github.com/openrsvp/backstage/internal/app/system/auth"
)

// Routes returns a subrouter serving the sign-in form and its processing
// endpoint. Mount it at the root: the paths below are absolute by
// convention.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get(auth.LoginPath, h.ServeLogin)
	r.Post(auth.LoginProcessingPath, h.HandleAuthenticate)
	return r
}
