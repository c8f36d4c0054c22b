// internal/app/features/errors/errors.go

// Package errors renders the friendly error pages browsers land on when
// a request is denied.
package errors

import (
	"html/template"
	"net/http"

	"github.com/openrsvp/backstage/internal/app/system/auth"
)

// pageData is the basic view model for error pages.
type pageData struct {
	Title      string
	IsLoggedIn bool
	UserName   string
	Message    string
	BackURL    string
}

var errorPage = template.Must(template.New("error").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .IsLoggedIn}}<p>Signed in as {{.UserName}}.</p>{{end}}
<p><a href="{{.BackURL}}">Go back</a></p>
</body></html>`))

// Handler is the errors feature handler. No DB needed.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden renders a friendly "access denied" page.
// GET /forbidden
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusForbidden, pageData{
		Title:   "Access denied",
		Message: "You don't have permission to view this page.",
		BackURL: "/",
	})
}

// Unauthorized renders a friendly "sign in required" page.
// GET /unauthorized
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusUnauthorized, pageData{
		Title:   "Sign in required",
		Message: "Please sign in to continue.",
		BackURL: auth.LoginPath,
	})
}

func render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if u, ok := auth.CurrentUser(r); ok {
		data.IsLoggedIn = true
		data.UserName = u.Name
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPage.Execute(w, data)
}
