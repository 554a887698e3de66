package web

import (
	"context"
	"database/sql"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/attempt"
	"github.com/matuc/lti-exercise-composer/internal/auth"
	"github.com/matuc/lti-exercise-composer/internal/config"
	"github.com/matuc/lti-exercise-composer/internal/exercise"
	"github.com/matuc/lti-exercise-composer/internal/prefs"
	"github.com/matuc/lti-exercise-composer/internal/rbac"
	syncx "github.com/matuc/lti-exercise-composer/internal/sync"
)

// SetService is the part of the exercise API client the pages use.
type SetService interface {
	List(ctx context.Context, p apiclient.ListParams) (exercise.Page[exercise.ExerciseSet], error)
	CollectAll(ctx context.Context, p apiclient.ListParams) ([]exercise.ExerciseSet, error)
	Get(ctx context.Context, id string) (exercise.ExerciseSet, error)
	Create(ctx context.Context, in exercise.CreateExerciseSet) (exercise.ExerciseSet, error)
	Update(ctx context.Context, id string, in exercise.UpdateExerciseSet) (exercise.ExerciseSet, error)
	Delete(ctx context.Context, id string) error
	TogglePublish(ctx context.Context, set exercise.ExerciseSet) (exercise.Status, error)
}

type QuestionService interface {
	List(ctx context.Context, setID string, page, limit int) (exercise.Page[exercise.Question], error)
	Get(ctx context.Context, id string) (exercise.Question, error)
	Create(ctx context.Context, setID string, in exercise.Question) (exercise.Question, error)
	Update(ctx context.Context, id string, in exercise.QuestionPatch) (exercise.Question, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, setID string, ids []string) error
}

type HealthChecker interface {
	Health(ctx context.Context) bool
}

// EventLister reads the local attempt event log.
type EventLister interface {
	List(ctx context.Context, key string) ([]syncx.Event, error)
}

type Deps struct {
	Config    config.Config
	Sets      SetService
	Questions QuestionService
	API       HealthChecker
	Attempts  *attempt.Manager
	Prefs     *prefs.Service
	Sessions  *auth.SessionService
	Auth      *auth.Authenticator
	Events    EventLister // optional
	DB        *sql.DB     // optional, checked by /readyz
}

type Server struct {
	Deps
	pages map[string]*template.Template
}

func New(d Deps) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{Deps: d, pages: pages}, nil
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(auth.Session(s.Sessions))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)

		r.Get("/", s.home)
		r.Get("/login", s.loginForm)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.Post("/theme", s.toggleTheme)

		r.Route("/instructor", func(r chi.Router) {
			r.Use(rbac.Require(rbac.PermExerciseEdit, s.deny))
			r.Get("/", redirectTo("/instructor/dashboard"))
			r.Get("/dashboard", s.dashboard)
			r.Get("/create-exercise", s.createForm)
			r.Post("/create-exercise", s.createExercise)
			r.Route("/exercise/{id}", func(r chi.Router) {
				r.Get("/", s.viewExercise)
				r.Get("/edit", s.editForm)
				r.Post("/edit", s.updateExercise)
				r.With(rbac.Require(rbac.PermExercisePublish, s.deny)).Post("/publish", s.togglePublish)
				r.With(rbac.Require(rbac.PermExerciseDelete, s.deny)).Post("/delete", s.deleteExercise)

				r.Group(func(r chi.Router) {
					r.Use(rbac.Require(rbac.PermQuestionEdit, s.deny))
					r.Get("/questions", s.questionList)
					r.Get("/questions/new", s.newQuestionForm)
					r.Post("/questions", s.createQuestion)
					r.Get("/questions/{qid}/edit", s.editQuestionForm)
					r.Post("/questions/{qid}/edit", s.updateQuestion)
					r.Post("/questions/{qid}/delete", s.deleteQuestion)
					r.Post("/questions/reorder", s.reorderQuestions)
				})
			})
		})

		r.Route("/api/attempts", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   s.Config.CORSOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Authorization", "Content-Type"},
				ExposedHeaders:   []string{"Content-Length"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
			r.With(rbac.Require(rbac.PermAttemptTake, apiDeny)).Get("/{attemptID}", s.apiAttempt)
			r.With(rbac.Require(rbac.PermAttemptSubmit, apiDeny)).Post("/{attemptID}", s.apiAttemptAction)
			r.With(rbac.Require(rbac.PermExerciseEdit, apiDeny)).Get("/{attemptID}/events", s.apiAttemptEvents)
		})
	})

	r.Route("/student", func(r chi.Router) {
		r.Use(rbac.Require(rbac.PermAttemptTake, s.deny))
		// The countdown stream is long-lived and stays outside the request timeout.
		r.Get("/exercise/{id}/attempt/{attemptID}/ws", s.attemptStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/", redirectTo("/student/exercises"))
			r.Get("/exercises", s.studentExercises)
			r.Get("/exercise/{id}", s.takeIntro)
			r.Post("/exercise/{id}/start", s.startAttempt)
			r.Get("/exercise/{id}/attempt/{attemptID}", s.attemptPage)
			r.Post("/exercise/{id}/attempt/{attemptID}", s.attemptAction)
		})
	})

	r.NotFound(s.notFound)
	return r
}

func redirectTo(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusSeeOther)
	}
}
