// internal/app/features/csp/handler.go

// Package csp accepts browser Content-Security-Policy violation reports.
// The endpoint is open and CSRF-exempt because browsers post reports
// without any application context.
package csp

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/limits"
)

// ReportPath is the fixed endpoint browsers are pointed at via the
// report-uri directive.
const ReportPath = "/report-csp-violation"

type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// report mirrors the csp-report envelope browsers send.
type report struct {
	Body struct {
		DocumentURI       string `json:"document-uri"`
		ViolatedDirective string `json:"violated-directive"`
		BlockedURI        string `json:"blocked-uri"`
		SourceFile        string `json:"source-file"`
		LineNumber        int    `json:"line-number"`
	} `json:"csp-report"`
}

// Serve handles POST /report-csp-violation. Reports are logged and
// dropped; a malformed body still gets a 204 so browsers do not retry.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var rep report
	body := io.LimitReader(r.Body, limits.MaxCSPReportSize)
	if err := json.NewDecoder(body).Decode(&rep); err != nil {
		h.Log.Debug("unreadable csp report", zap.Error(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Log.Warn("csp violation reported",
		zap.String("documentUri", rep.Body.DocumentURI),
		zap.String("violatedDirective", rep.Body.ViolatedDirective),
		zap.String("blockedUri", rep.Body.BlockedURI),
		zap.String("sourceFile", rep.Body.SourceFile),
		zap.Int("line", rep.Body.LineNumber))
	w.WriteHeader(http.StatusNoContent)
}
