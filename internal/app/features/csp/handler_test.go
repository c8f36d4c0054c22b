package csp_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/csp"
)

func TestServe(t *testing.T) {
	h := csp.NewHandler(zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"well-formed report", `{"csp-report":{"document-uri":"https://example.com/admin","violated-directive":"script-src","blocked-uri":"https://evil.example.com/x.js","line-number":12}}`},
		{"malformed body still acknowledged", `not json at all`},
		{"empty body still acknowledged", ``},
		{"oversized body truncated not errored", `{"csp-report":{"document-uri":"` + strings.Repeat("a", 32<<10) + `"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", csp.ReportPath, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Serve(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Errorf("status: got %d, want 204", rec.Code)
			}
		})
	}
}
