// internal/app/features/audits/routes.go
package audits

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter mounted at /admin/api/audits.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/reservation/{reservationId}", h.ByReservation)
	r.Get("/{entityType}/{entityId}", h.ByEntity)
	return r
}
