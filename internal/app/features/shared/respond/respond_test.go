package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/shared/respond"
	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/auth"
)

func TestErrMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"authorization is 403", apperr.Authorization("nope"), http.StatusForbidden},
		{"self operation is 409", apperr.ErrSelfOperation, http.StatusConflict},
		{"not found is 404", apperr.ErrNotFound, http.StatusNotFound},
		{"validation is 422", apperr.Validation("email", "required"), http.StatusUnprocessableEntity},
		{"conflict is 409", apperr.Conflict("slug", apperr.CodeValueAlreadyInUse), http.StatusConflict},
		{"unknown is 500", errors.New("database on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/admin/api/users", nil)
			respond.Err(rec, req, zap.NewNop(), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type: got %q", ct)
			}
		})
	}
}

func TestErr_AuthenticationDefersToSessionLayer(t *testing.T) {
	t.Run("programmatic gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/admin/api/users", nil)
		req.Header.Set(auth.XRequestedWith, auth.XMLHttpRequest)
		respond.Err(rec, req, zap.NewNop(), apperr.Authentication("session expired"))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("browser gets login redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/admin/api/users", nil)
		respond.Err(rec, req, zap.NewNop(), apperr.Authentication("session expired"))

		if rec.Code != http.StatusSeeOther {
			t.Errorf("status: got %d, want 303", rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Location"), auth.LoginPath) {
			t.Errorf("location: got %q", rec.Header().Get("Location"))
		}
	})
}

func TestErr_ValidationCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/api/users", nil)
	respond.Err(rec, req, zap.NewNop(), apperr.ValidationFields(
		apperr.FieldError{Field: "username", Message: "username is required"},
		apperr.FieldError{Field: "email", Message: "email is required"},
	))

	var body struct {
		Fields []apperr.FieldError `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Fields) != 2 {
		t.Errorf("fields: got %v, want 2 entries", body.Fields)
	}
}

func TestDecode(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		var p struct {
			Name string `json:"name"`
		}
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Summer Fest"}`))
		if err := respond.Decode(httptest.NewRecorder(), req, &p); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if p.Name != "Summer Fest" {
			t.Errorf("name: got %q", p.Name)
		}
	})

	t.Run("malformed body is a validation error", func(t *testing.T) {
		var p struct{}
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{nope`))
		err := respond.Decode(httptest.NewRecorder(), req, &p)
		if _, ok := apperr.AsValidation(err); !ok {
			t.Errorf("want validation error, got %v", err)
		}
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		var p struct {
			Blob string `json:"blob"`
		}
		huge := `{"blob":"` + strings.Repeat("x", 2<<20) + `"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(huge))
		if err := respond.Decode(httptest.NewRecorder(), req, &p); err == nil {
			t.Error("body above the cap must be rejected")
		}
	})
}
