package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// DenyFunc renders a refusal. status is 401 without a role and 403 when the
// role lacks the permission.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int)

func plainDeny(w http.ResponseWriter, _ *http.Request, status int) {
	http.Error(w, http.StatusText(status), status)
}

// Require enforces a single permission.
func Require(perm string, deny DenyFunc) func(http.Handler) http.Handler {
	return RequireAny(deny, perm)
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(deny DenyFunc, perms ...string) func(http.Handler) http.Handler {
	if deny == nil {
		deny = plainDeny
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			switch {
			case role == "":
				deny(w, r, http.StatusUnauthorized)
			case !defaultChecker.Any(role, perms...):
				deny(w, r, http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
