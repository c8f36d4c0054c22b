// internal/app/features/shared/respond/respond.go

// Package respond renders JSON payloads and maps the error taxonomy to
// HTTP statuses so every admin API endpoint fails the same way.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/limits"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON request body into v with the standard size cap.
// The returned error is already a validation error suitable for Err.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("", "malformed request body")
	}
	return nil
}

type errorBody struct {
	Error  string              `json:"error"`
	Field  string              `json:"field,omitempty"`
	Code   string              `json:"code,omitempty"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

// Err maps an error from the managers onto the response. Authentication
// failures defer to the session layer so browsers get redirects and
// programmatic clients get 401s.
func Err(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case apperr.IsAuthentication(err):
		auth.RejectUnauthenticated(w, r)
	case apperr.IsAuthorization(err):
		JSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, apperr.ErrSelfOperation):
		JSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		JSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		if ve, ok := apperr.AsValidation(err); ok {
			JSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: ve.Fields})
			return
		}
		if ce, ok := apperr.AsConflict(err); ok {
			JSON(w, http.StatusConflict, errorBody{Error: "conflict", Field: ce.Field, Code: ce.Code})
			return
		}
		log.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
		JSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
