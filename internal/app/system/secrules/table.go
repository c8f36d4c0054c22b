// internal/app/system/secrules/table.go
package secrules

import (
	"net/http"

	"github.com/openrsvp/backstage/internal/app/system/authz"
)

// Path namespaces shared across the rule table and the CSRF layer.
const (
	AdminAPI       = "/admin/api"
	AdminPublicAPI = "/api/v1/admin"
	APIV2Public    = "/api/v2/public"
	APIV2Admin     = "/api/v2/admin"
)

// ownershipRequired is the curated set of admin GET endpoints returning
// organization-scoped resources. A qualifying role is not enough here;
// the caller must also belong to the owning organization.
var ownershipRequired = []string{
	AdminAPI + "/overridable-template",
	AdminAPI + "/additional-services",
	AdminAPI + "/events/*/additional-field",
	AdminAPI + "/event/*/additional-services/",
	AdminAPI + "/overridable-template/",
	AdminAPI + "/events/*/promo-code",
	AdminAPI + "/reservation/event/*/reservations/list",
	AdminAPI + "/event/*/email/",
	AdminAPI + "/event/*/waiting-queue/load",
	AdminAPI + "/events/*/pending-payments",
	AdminAPI + "/events/*/export",
	AdminAPI + "/events/*/sponsor-scan/export",
	AdminAPI + "/events/*/invoices/**",
	AdminAPI + "/reservation/*/*/*/audit",
	AdminAPI + "/subscription/*/email/",
	AdminAPI + "/organization/*/subscription/**",
	AdminAPI + "/reservation/subscription/**",
}

// DefaultRules is the production rule table. Order is load-bearing:
// narrow rules must precede the catch-alls that would otherwise shadow
// them. Changing the order is a security-relevant change.
func DefaultRules() []Rule {
	anyRead := []authz.Role{authz.RoleAdmin, authz.RoleOwner, authz.RoleSupervisor}
	anyWrite := []authz.Role{authz.RoleAdmin, authz.RoleOwner}
	adminOnly := []authz.Role{authz.RoleAdmin}

	return []Rule{
		// Machine namespace: session auth never qualifies, callers must
		// present API-key authentication on a separate surface.
		{Patterns: []string{AdminPublicAPI + "/**"}, Access: DenyAll},

		{Method: http.MethodGet, Patterns: []string{AdminAPI + "/users/current"}, Access: RequireRole, Roles: anyRead},
		{Method: http.MethodPost, Patterns: []string{
			AdminAPI + "/users/check",
			AdminAPI + "/users/current/edit",
			AdminAPI + "/users/current/update-password",
		}, Access: RequireRole, Roles: anyRead},

		{Patterns: []string{AdminAPI + "/configuration/**", AdminAPI + "/users/**"}, Access: RequireRole, Roles: anyWrite},
		{Patterns: []string{AdminAPI + "/organizations/new", AdminAPI + "/system/**"}, Access: RequireRole, Roles: adminOnly},
		{Patterns: []string{AdminAPI + "/check-in/**"}, Access: RequireRole, Roles: anyRead},

		{Method: http.MethodGet, Patterns: ownershipRequired, Access: RequireRole, Roles: anyWrite, Ownership: true},

		{Method: http.MethodGet, Patterns: []string{AdminAPI + "/**"}, Access: RequireRole, Roles: anyRead},
		{Method: http.MethodPost, Patterns: []string{
			AdminAPI + "/reservation/event/*/new",
			AdminAPI + "/reservation/event/*/*",
		}, Access: RequireRole, Roles: anyRead},
		{Method: http.MethodPut, Patterns: []string{
			AdminAPI + "/reservation/event/*/*/notify",
			AdminAPI + "/reservation/event/*/*/confirm",
		}, Access: RequireRole, Roles: anyRead},
		{Patterns: []string{AdminAPI + "/**"}, Access: RequireRole, Roles: anyWrite},

		{Patterns: []string{"/admin/**/export/**"}, Access: RequireRole, Roles: anyWrite},
		{Patterns: []string{"/admin/**"}, Access: RequireRole, Roles: anyRead},

		{Patterns: []string{"/api/attendees/**"}, Access: DenyAll},
		{Patterns: []string{"/callback"}, Access: PermitAll},
		{Patterns: []string{"/**"}, Access: PermitAll},
	}
}
