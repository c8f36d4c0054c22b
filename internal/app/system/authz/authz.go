// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/openrsvp/backstage/internal/app/system/auth"
)

// UserCtx returns the current user's granted roles and username. If no
// user is present it returns nil roles and ok=false; callers must fail
// closed.
func UserCtx(r *http.Request) (roles []Role, username string, ok bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return nil, "", false
	}
	return parseAll(u.Roles, u.Role), u.Username, true
}

// HasAnyRole reports whether the current user holds at least one of the
// given roles. Authorization rules are set-membership checks over every
// grant, not comparisons of the single most privileged role.
func HasAnyRole(r *http.Request, want ...Role) bool {
	roles, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	return ContainsAny(roles, want...)
}

// IsAdmin reports whether the current user holds ADMIN.
func IsAdmin(r *http.Request) bool {
	return HasAnyRole(r, RoleAdmin)
}

// IsOwner reports whether the current user is owner-equivalent: ADMIN,
// OWNER, or an API-key identity (API_CONSUMER).
func IsOwner(r *http.Request) bool {
	return HasAnyRole(r, RoleAdmin, RoleOwner, RoleAPIConsumer)
}

func parseAll(names []string, fallback string) []Role {
	if len(names) == 0 && fallback != "" {
		names = []string{fallback}
	}
	out := make([]Role, 0, len(names))
	for _, n := range names {
		if role, ok := Parse(n); ok {
			out = append(out, role)
		}
	}
	return out
}
