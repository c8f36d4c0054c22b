// internal/app/features/audits/handler.go

// Package audits serves read access to the audit trail under
// /admin/api/audits.
package audits

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/shared/respond"
	"github.com/openrsvp/backstage/internal/app/store/audit"
	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
)

type Handler struct {
	Log    *zap.Logger
	Audits *audit.Store
}

func NewHandler(audits *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, Audits: audits}
}

// ByReservation handles GET /admin/api/audits/reservation/{reservationId}.
// Optional from/to query parameters (RFC 3339) bound the time range; the
// result is ordered oldest first so it reads as a timeline.
func (h *Handler) ByReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	if reservationID == "" {
		respond.Err(w, r, h.Log, apperr.Validation("reservationId", "reservation id is required"))
		return
	}

	from, err := timeParam(r, "from")
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	to, err := timeParam(r, "to")
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	records, err := h.Audits.QueryByReservation(ctx, reservationID, from, to)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, records)
}

// ByEntity handles GET /admin/api/audits/{entityType}/{entityId}, newest
// first with an optional limit.
func (h *Handler) ByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := audit.EntityType(chi.URLParam(r, "entityType"))
	entityID := chi.URLParam(r, "entityId")
	if entityID == "" {
		respond.Err(w, r, h.Log, apperr.Validation("entityId", "entity id is required"))
		return
	}

	var limit int64
	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			respond.Err(w, r, h.Log, apperr.Validation("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	records, err := h.Audits.QueryByEntity(ctx, entityType, entityID, limit)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, records)
}

func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := query.Get(r, name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.Validation(name, "expected RFC 3339 timestamp")
	}
	return &t, nil
}
