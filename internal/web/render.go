package web

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/matuc/lti-exercise-composer/internal/auth"
	"github.com/matuc/lti-exercise-composer/internal/exercise"
	"github.com/matuc/lti-exercise-composer/internal/rbac"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

var funcs = template.FuncMap{
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
	"ordinal": humanize.Ordinal,
	"plural": func(n int, singular, plural string) string {
		return humanize.Comma(int64(n)) + " " + english.PluralWord(n, singular, plural)
	},
	"clock": clock,
	"add":   func(a, b int) int { return a + b },
	"join":  strings.Join,
	"minutes": func(c exercise.Configuration) string {
		if d, ok := c.TimeLimit(); ok {
			return fmt.Sprintf("%d min", int(d/time.Minute))
		}
		return "No limit"
	},
	"limitValue": func(c exercise.Configuration) string {
		if c.TimeLimitMinutes == nil {
			return ""
		}
		return fmt.Sprint(*c.TimeLimitMinutes)
	},
	"hasIndex": func(xs []int, i int) bool {
		for _, x := range xs {
			if x == i {
				return true
			}
		}
		return false
	},
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		return template.JS(b), err
	},
}

// clock renders seconds as MM:SS (H:MM:SS past an hour).
func clock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// parsePages pairs the layout with every page template.
func parsePages() (map[string]*template.Template, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := map[string]*template.Template{}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		t, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return pages, nil
}

type flash struct {
	Kind    string // success | error | info
	Message string
}

// view is what every page template receives; page specific values live in Data.
type view struct {
	AppName string
	Title   string
	Theme   string
	Subject string
	Role    string
	Path    string
	Flash   *flash
	Data    any
}

func (v view) Instructor() bool {
	return v.Role == rbac.RoleInstructor || v.Role == rbac.RoleAdmin
}

func (v view) Student() bool {
	return v.Role == rbac.RoleStudent || v.Role == rbac.RoleAdmin
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	t, ok := s.pages[page]
	if !ok {
		log.Printf("web: unknown page %q", page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sub := auth.SubjectFromContext(r.Context())
	v := view{
		AppName: s.Config.AppName,
		Title:   title,
		Theme:   string(s.Prefs.Theme(r.Context(), sub)),
		Subject: sub,
		Role:    rbac.RoleFromContext(r.Context()),
		Path:    r.URL.Path,
		Flash:   popFlash(w, r),
		Data:    data,
	}
	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, path.Base(layoutFile), v); err != nil {
		log.Printf("web: render %s: %v", page, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

type errorPage struct {
	Status  int
	Message string
	Retry   string
}

// renderError shows a failed load with a link to try again.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg, retry string) {
	s.render(w, r, status, "error", http.StatusText(status), errorPage{Status: status, Message: msg, Retry: retry})
}

// deny is the rbac refusal for pages: anonymous users go to the login form.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, status int) {
	if status == http.StatusUnauthorized {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	s.renderError(w, r, status, "You do not have permission to open this page.", "/")
}

const flashCookie = "composer_flash"

func setFlash(w http.ResponseWriter, kind, msg string) {
	raw := base64.RawURLEncoding.EncodeToString([]byte(kind + "\n" + msg))
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: raw, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

func popFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	b, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(string(b), "\n")
	if !ok || msg == "" {
		return nil
	}
	return &flash{Kind: kind, Message: msg}
}

// redirectFlash sets a notification and redirects with 303.
func redirectFlash(w http.ResponseWriter, r *http.Request, to, kind, msg string) {
	setFlash(w, kind, msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
