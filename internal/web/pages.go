package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/matuc/lti-exercise-composer/internal/auth"
	"github.com/matuc/lti-exercise-composer/internal/rbac"
)

type homeData struct {
	APIHealthy     bool
	APIURL         string
	Mode           string
	LTIConsumerKey string
	LTILaunchURL   string
	LTIConfigURL   string
	CanvasBaseURL  string
	CanvasToken    bool
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	d := homeData{
		APIHealthy:     s.API != nil && s.API.Health(ctx),
		APIURL:         s.Config.APIBaseURL,
		Mode:           string(s.Config.Mode),
		LTIConsumerKey: s.Config.LTIConsumerKey,
		LTILaunchURL:   s.Config.LTILaunchURL,
		LTIConfigURL:   s.Config.LTIConfigURL,
		CanvasBaseURL:  s.Config.CanvasBaseURL,
		CanvasToken:    s.Config.CanvasAccessToken != "",
	}
	s.render(w, r, http.StatusOK, "home", "Home", d)
}

type loginData struct {
	Next     string
	Username string
	Error    string
	Enabled  bool
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", "Sign in", loginData{
		Next:    safeNext(r.URL.Query().Get("next")),
		Enabled: s.Auth.Enabled(),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	d := loginData{
		Next:     safeNext(r.PostForm.Get("next")),
		Username: r.PostForm.Get("username"),
		Enabled:  s.Auth.Enabled(),
	}
	u, err := s.Auth.Authenticate(d.Username, r.PostForm.Get("password"))
	if err != nil {
		d.Error = "Invalid username or password."
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrLocalAuthDisabled) {
			d.Error = "Local sign-in is disabled. Open the tool from your course."
			status = http.StatusForbidden
		}
		s.render(w, r, status, "login", "Sign in", d)
		return
	}
	tok, err := s.Sessions.Issue(u.Username, u.Role, "")
	if err != nil {
		log.Printf("login: issue session: %v", err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not start a session.", "/login")
		return
	}
	s.Sessions.SetCookie(w, tok)
	next := d.Next
	if next == "/" {
		switch u.Role {
		case rbac.RoleInstructor, rbac.RoleAdmin:
			next = "/instructor/dashboard"
		case rbac.RoleStudent:
			next = "/student/exercises"
		}
	}
	redirectFlash(w, r, next, "success", "Signed in as "+u.Username+".")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sub := auth.SubjectFromContext(r.Context())
	s.Sessions.ClearCookie(w)
	if sub != "" {
		redirectFlash(w, r, "/", "info", "Signed out.")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// toggleTheme flips the signed-in user's theme and returns to the page it came from.
func (s *Server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	back := safeNext(r.FormValue("back"))
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" || !rbac.Can(r.Context(), rbac.PermPrefsEdit) {
		redirectFlash(w, r, back, "info", "Sign in to save a theme preference.")
		return
	}
	if _, err := s.Prefs.Toggle(r.Context(), sub); err != nil {
		log.Printf("theme: toggle for %s: %v", sub, err)
		redirectFlash(w, r, back, "error", "Could not save the theme preference.")
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// readyz checks the local database and reports the exercise API as advisory.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	dbOK := true
	if s.DB != nil {
		dbOK = s.DB.PingContext(ctx) == nil
	}
	apiOK := s.API != nil && s.API.Health(ctx)
	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": dbOK, "db": dbOK, "api": apiOK})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound", "Not found", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
