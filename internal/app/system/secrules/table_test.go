package secrules_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/secrules"
	"github.com/openrsvp/backstage/internal/testutil"
)

func TestDefaultRules_FirstMatchDecisions(t *testing.T) {
	e := secrules.NewEngine(secrules.DefaultRules())

	tests := []struct {
		name      string
		method    string
		path      string
		access    secrules.Access
		roles     []authz.Role
		ownership bool
	}{
		{
			name:   "machine namespace denied before any catch-all",
			method: "GET",
			path:   "/api/v1/admin/reservations",
			access: secrules.DenyAll,
		},
		{
			name:   "current user profile readable by supervisor",
			method: "GET",
			path:   "/admin/api/users/current",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin, authz.RoleOwner, authz.RoleSupervisor},
		},
		{
			name:   "password change allowed for read roles",
			method: "POST",
			path:   "/admin/api/users/current/update-password",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin, authz.RoleOwner, authz.RoleSupervisor},
		},
		{
			name:   "user management needs write roles even on GET",
			method: "GET",
			path:   "/admin/api/users/abc123",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin, authz.RoleOwner},
		},
		{
			name:   "organization creation is admin only",
			method: "POST",
			path:   "/admin/api/organizations/new",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin},
		},
		{
			name:      "sponsored export needs ownership on top of role",
			method:    "GET",
			path:      "/admin/api/events/summer-fest/export",
			access:    secrules.RequireRole,
			roles:     []authz.Role{authz.RoleAdmin, authz.RoleOwner},
			ownership: true,
		},
		{
			name:      "reservation audit trail is ownership gated",
			method:    "GET",
			path:      "/admin/api/reservation/event/summer/res-1/audit",
			access:    secrules.RequireRole,
			roles:     []authz.Role{authz.RoleAdmin, authz.RoleOwner},
			ownership: true,
		},
		{
			name:   "generic admin GET falls through to read roles",
			method: "GET",
			path:   "/admin/api/events",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin, authz.RoleOwner, authz.RoleSupervisor},
		},
		{
			name:   "supervisor may create reservations",
			method: "POST",
			path:   "/admin/api/reservation/event/summer/new",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin, authz.RoleOwner, authz.RoleSupervisor},
		},
		{
			name:   "generic admin mutation needs write roles",
			method: "DELETE",
			path:   "/admin/api/events/summer-fest",
			access: secrules.RequireRole,
			roles:  []authz.Role{authz.RoleAdmin, authz.RoleOwner},
		},
		{
			name:   "attendee bulk api is closed",
			method: "POST",
			path:   "/api/attendees/sync",
			access: secrules.DenyAll,
		},
		{
			name:   "federated login callback is public",
			method: "GET",
			path:   "/callback",
			access: secrules.PermitAll,
		},
		{
			name:   "everything else is public",
			method: "GET",
			path:   "/event/summer-fest",
			access: secrules.PermitAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := e.Match(tt.method, tt.path)
			if !ok {
				t.Fatalf("no rule matched %s %s", tt.method, tt.path)
			}
			if rule.Access != tt.access {
				t.Fatalf("access: got %v, want %v", rule.Access, tt.access)
			}
			if rule.Ownership != tt.ownership {
				t.Errorf("ownership: got %v, want %v", rule.Ownership, tt.ownership)
			}
			if tt.access == secrules.RequireRole {
				if len(rule.Roles) != len(tt.roles) {
					t.Fatalf("roles: got %v, want %v", rule.Roles, tt.roles)
				}
				for i := range tt.roles {
					if rule.Roles[i] != tt.roles[i] {
						t.Errorf("roles[%d]: got %s, want %s", i, rule.Roles[i], tt.roles[i])
					}
				}
			}
		})
	}
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func neverOwns(r *http.Request, username string) (bool, error) { return false, nil }

func TestMiddleware_AnonymousDeniedWithRedirect(t *testing.T) {
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(neverOwns, zap.NewNop())
	next, called := okHandler()

	req := httptest.NewRequest("GET", "/admin/api/events", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if *called {
		t.Fatal("handler must not run for anonymous admin request")
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestMiddleware_AnonymousProgrammaticGets401(t *testing.T) {
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(neverOwns, zap.NewNop())
	next, _ := okHandler()

	req := httptest.NewRequest("GET", "/admin/api/events", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMiddleware_RoleDenied(t *testing.T) {
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(neverOwns, zap.NewNop())
	next, called := okHandler()

	req := testutil.NewAuthenticatedRequest("DELETE", "/admin/api/events/summer-fest", testutil.OperatorUser())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if *called {
		t.Fatal("operator must not reach a write endpoint")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestMiddleware_OwnershipDeniedForNonMember(t *testing.T) {
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(neverOwns, zap.NewNop())
	next, called := okHandler()

	req := testutil.NewAuthenticatedRequest("GET", "/admin/api/events/summer-fest/export", testutil.OwnerUser())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if *called {
		t.Fatal("owner outside the organization must not export")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestMiddleware_AdminBypassesOwnership(t *testing.T) {
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(neverOwns, zap.NewNop())
	next, called := okHandler()

	req := testutil.NewAuthenticatedRequest("GET", "/admin/api/events/summer-fest/export", testutil.AdminUser())
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if !*called {
		t.Fatal("admin must bypass the ownership predicate")
	}
}

func TestMiddleware_OwningMemberAllowed(t *testing.T) {
	owns := func(r *http.Request, username string) (bool, error) {
		return username == "owner", nil
	}
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(owns, zap.NewNop())
	next, called := okHandler()

	req := testutil.NewAuthenticatedRequest("GET", "/admin/api/events/summer-fest/export", testutil.OwnerUser())
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if !*called {
		t.Fatal("owning member should pass the ownership gate")
	}
}

func TestMiddleware_OwnershipErrorFailsClosed(t *testing.T) {
	owns := func(r *http.Request, username string) (bool, error) {
		return true, errors.New("store unavailable")
	}
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(owns, zap.NewNop())
	next, called := okHandler()

	req := testutil.NewAuthenticatedRequest("GET", "/admin/api/events/summer-fest/export", testutil.OwnerUser())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if *called {
		t.Fatal("ownership resolution error must fail closed")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestMiddleware_PermitAllPassesAnonymous(t *testing.T) {
	mw := secrules.NewEngine(secrules.DefaultRules()).Middleware(neverOwns, zap.NewNop())
	next, called := okHandler()

	req := httptest.NewRequest("GET", "/event/summer-fest", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if !*called {
		t.Fatal("public path must pass anonymous requests through")
	}
}
