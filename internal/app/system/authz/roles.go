// internal/app/system/authz/roles.go

// Package authz defines the closed role set, its privilege ordering, and
// helpers for reading the authenticated user's role from a request.
package authz

import (
	"strings"
)

// Role is one of the closed set of back-office roles. ADMIN is
// system-wide; every other role is scoped to organization membership.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleOwner       Role = "OWNER"
	RoleSupervisor  Role = "SUPERVISOR"
	RoleSponsor     Role = "SPONSOR"
	RoleAPIConsumer Role = "API_CONSUMER"
	RoleOperator    Role = "OPERATOR"
)

// roleRank is the explicit total order over roles: lower rank means more
// privileged. The table, not declaration order, is the contract; tests
// assert it directly.
var roleRank = map[Role]int{
	RoleAdmin:       0,
	RoleOwner:       1,
	RoleSupervisor:  2,
	RoleSponsor:     3,
	RoleAPIConsumer: 4,
	RoleOperator:    5,
}

// Rank returns the privilege rank of a role (lower is more privileged).
// Unknown roles rank below OPERATOR so a corrupted grant can never win.
func Rank(r Role) int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return len(roleRank)
}

// Known reports whether r belongs to the closed role set.
func Known(r Role) bool {
	_, ok := roleRank[r]
	return ok
}

// Parse normalizes a stored role name into a Role. The bool is false for
// names outside the closed set.
func Parse(name string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(name)))
	return r, Known(r)
}

// MostPrivileged returns the highest-privilege role among the given
// grants, regardless of the order they were granted. With no known grant
// it defaults to OPERATOR.
func MostPrivileged(granted []Role) Role {
	best := RoleOperator
	bestRank := Rank(best)
	for _, r := range granted {
		if !Known(r) {
			continue
		}
		if rank := Rank(r); rank < bestRank {
			best, bestRank = r, rank
		}
	}
	return best
}

// ContainsAny reports whether any of the granted roles is in want.
func ContainsAny(granted []Role, want ...Role) bool {
	for _, g := range granted {
		for _, w := range want {
			if g == w {
				return true
			}
		}
	}
	return false
}

// AssignableRoles is the set an admin or owner may hand out. ADMIN is
// deliberately absent: the system account is provisioned out of band.
func AssignableRoles() []Role {
	return []Role{RoleOwner, RoleOperator, RoleSupervisor, RoleSponsor, RoleAPIConsumer}
}
