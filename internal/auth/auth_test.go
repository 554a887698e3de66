package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matuc/lti-exercise-composer/internal/config"
	"github.com/matuc/lti-exercise-composer/internal/rbac"
)

func TestSession_IssueParse(t *testing.T) {
	s := NewSessionService("secret", false)
	tok, err := s.Issue("ana", rbac.RoleInstructor, "api-tok")
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.Sub != "ana" || c.Role != rbac.RoleInstructor || c.APIToken != "api-tok" {
		t.Fatalf("claims = %+v", c)
	}

	other := NewSessionService("other", false)
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("token accepted with wrong secret")
	}

	s.now = func() time.Time { return time.Now().Add(9 * time.Hour) }
	if _, err := s.Parse(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestAuthenticator(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		Mode:               config.ModeOffline,
		EnableLocalAuth:    true,
		InstructorUser:     "prof",
		InstructorPassHash: hash,
		StudentUser:        "alumno",
	}
	a := NewAuthenticator(cfg)

	if u, err := a.Authenticate("prof", "s3cret"); err != nil || u.Role != rbac.RoleInstructor {
		t.Fatalf("bcrypt login = %+v, %v", u, err)
	}
	if _, err := a.Authenticate("prof", "prof"); err != ErrInvalidCredentials {
		t.Fatalf("plain password must not bypass a hash: %v", err)
	}
	if u, err := a.Authenticate("alumno", "alumno"); err != nil || u.Role != rbac.RoleStudent {
		t.Fatalf("offline plain login = %+v, %v", u, err)
	}
	if _, err := a.Authenticate("nobody", "x"); err != ErrInvalidCredentials {
		t.Fatalf("unknown user: %v", err)
	}

	cfg.Mode = config.ModeOnline
	if _, err := NewAuthenticator(cfg).Authenticate("alumno", "alumno"); err != ErrInvalidCredentials {
		t.Fatalf("online plain login: %v", err)
	}
	cfg.EnableLocalAuth = false
	if _, err := NewAuthenticator(cfg).Authenticate("prof", "s3cret"); err != ErrLocalAuthDisabled {
		t.Fatalf("disabled: %v", err)
	}
}

func TestSessionMiddleware(t *testing.T) {
	s := NewSessionService("secret", false)
	var sub, role string
	h := Session(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = SubjectFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	}))

	tok, _ := s.Issue("ben", rbac.RoleStudent, "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if sub != "ben" || role != rbac.RoleStudent {
		t.Fatalf("sub=%q role=%q", sub, role)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if sub != "" || role != "" {
		t.Fatalf("bad cookie kept identity sub=%q role=%q", sub, role)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("bad cookie not cleared: %+v", c)
	}
}
