package auth

import (
	"net/http"
	"strings"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/rbac"
)

// Session reads the session cookie (or a bearer token) and stores subject,
// role and the exercise API token in the request context. Requests without a
// valid session continue anonymously; rbac decides what they may do.
func Session(s *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			} else if c, err := r.Cookie(CookieName); err == nil {
				tok = c.Value
			}
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := s.Parse(tok)
			if err != nil {
				s.ClearCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithSubject(r.Context(), claims.Sub)
			ctx = rbac.WithRole(ctx, claims.Role)
			ctx = apiclient.WithToken(ctx, claims.APIToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
