// internal/app/system/secrules/rules.go

// Package secrules evaluates the ordered URL authorization rule table.
// Rules are checked top to bottom and the first match wins, so a path
// matched by an earlier rule never reaches a later one. Ordering is a
// correctness contract, not cosmetics.
package secrules

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/authz"
)

// Access is the kind of decision a rule expresses.
type Access int

const (
	// PermitAll allows anonymous and authenticated callers alike.
	PermitAll Access = iota
	// DenyAll rejects everyone; machine namespaces use a separate
	// API-key mechanism, not session auth.
	DenyAll
	// RequireRole admits callers holding at least one of Rule.Roles.
	RequireRole
)

// Rule is one entry of the ordered table. An empty Method matches any
// method. Ownership layers an organization-membership predicate on top of
// the role requirement; admins bypass it.
type Rule struct {
	Method    string
	Patterns  []string
	Access    Access
	Roles     []authz.Role
	Ownership bool
}

// Matches reports whether the rule applies to the given request line.
func (ru Rule) Matches(method, path string) bool {
	if ru.Method != "" && !strings.EqualFold(ru.Method, method) {
		return false
	}
	for _, p := range ru.Patterns {
		if MatchPattern(p, path) {
			return true
		}
	}
	return false
}

// MatchPattern matches an ant-style pattern against a path: `**` spans
// any number of segments, `*` matches within a single segment.
func MatchPattern(pattern, path string) bool {
	return matchSegments(splitPath(pattern), splitPath(path))
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		// `**` may swallow zero or more segments.
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if !matchSegment(pat[0], segs[0]) {
		return false
	}
	return matchSegments(pat[1:], segs[1:])
}

// matchSegment matches a single pattern segment, where `*` matches any
// run of characters within the segment.
func matchSegment(pat, seg string) bool {
	if pat == "*" {
		return true
	}
	if !strings.Contains(pat, "*") {
		return pat == seg
	}
	parts := strings.Split(pat, "*")
	if !strings.HasPrefix(seg, parts[0]) {
		return false
	}
	seg = seg[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(seg, part)
		if idx < 0 {
			return false
		}
		seg = seg[idx+len(part):]
	}
	return strings.HasSuffix(seg, parts[len(parts)-1])
}

// OwnershipChecker resolves the organization owning the requested
// resource and reports whether the named user is an owner of it.
type OwnershipChecker func(r *http.Request, username string) (bool, error)

// Engine holds the ordered rule table.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over the given rules, evaluated in order.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the table in evaluation order, for tests that assert the
// ordering contract.
func (e *Engine) Rules() []Rule { return e.rules }

// Match returns the first rule applying to the request line. The bool is
// false only when no rule matches (the default table ends with a
// permit-all catch-all, so that means permit).
func (e *Engine) Match(method, path string) (Rule, bool) {
	for _, ru := range e.rules {
		if ru.Matches(method, path) {
			return ru, true
		}
	}
	return Rule{}, false
}

// Middleware enforces the rule table against the request identity loaded
// by the session layer. Denials become 403 for authenticated callers and
// 401 or a login redirect for anonymous ones, depending on the
// programmatic-caller marker header.
func (e *Engine) Middleware(check OwnershipChecker, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := e.Match(r.Method, r.URL.Path)
			if !ok || rule.Access == PermitAll {
				next.ServeHTTP(w, r)
				return
			}

			roles, username, authed := authz.UserCtx(r)

			if rule.Access == DenyAll {
				if authed {
					auth.RejectForbidden(w, r)
				} else {
					auth.RejectUnauthenticated(w, r)
				}
				return
			}

			// RequireRole
			if !authed {
				auth.RejectUnauthenticated(w, r)
				return
			}
			if !authz.ContainsAny(roles, rule.Roles...) {
				log.Info("authorization denied",
					zap.String("path", r.URL.Path),
					zap.String("username", username))
				auth.RejectForbidden(w, r)
				return
			}
			if rule.Ownership && !authz.ContainsAny(roles, authz.RoleAdmin) {
				owns, err := check(r, username)
				if err != nil {
					log.Error("ownership check failed",
						zap.String("path", r.URL.Path),
						zap.String("username", username),
						zap.Error(err))
					auth.RejectForbidden(w, r)
					return
				}
				if !owns {
					log.Info("ownership denied",
						zap.String("path", r.URL.Path),
						zap.String("username", username))
					auth.RejectForbidden(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
