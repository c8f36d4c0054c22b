// Package testutil holds helpers shared by handler tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/authz"
)

// SessionUser builds an authenticated user with the given roles, most
// privileged first.
func SessionUser(username string, roles ...authz.Role) *auth.SessionUser {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return &auth.SessionUser{
		ID:       primitive.NewObjectID().Hex(),
		Username: username,
		Name:     "Test " + username,
		Email:    username + "@example.com",
		Role:     string(authz.MostPrivileged(roles)),
		Roles:    names,
	}
}

// AdminUser returns a session user holding the ADMIN grant.
func AdminUser() *auth.SessionUser {
	return SessionUser("admin", authz.RoleAdmin)
}

// OwnerUser returns a session user holding the OWNER grant.
func OwnerUser() *auth.SessionUser {
	return SessionUser("owner", authz.RoleOwner)
}

// OperatorUser returns a session user holding the OPERATOR grant.
func OperatorUser() *auth.SessionUser {
	return SessionUser("operator", authz.RoleOperator)
}

// NewAuthenticatedRequest creates an HTTP request with a user already in
// context, bypassing the session middleware.
func NewAuthenticatedRequest(method, target string, u *auth.SessionUser) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return auth.WithUser(req, u)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
