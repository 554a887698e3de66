package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

// loadFailed renders the error page for a failed read, with a retry link to the same URL.
func (s *Server) loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case apiclient.IsNotFound(err):
		status = http.StatusNotFound
	case apiclient.IsUnauthorized(err):
		status = http.StatusUnauthorized
	case apiclient.IsKind(err, apiclient.KindValidation):
		status = http.StatusBadRequest
	}
	s.renderError(w, r, status, apiclient.Message(err), r.URL.RequestURI())
}

func (s *Server) loadSet(w http.ResponseWriter, r *http.Request) (exercise.ExerciseSet, bool) {
	set, err := s.Sets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.loadFailed(w, r, err)
		return set, false
	}
	return set, true
}

func formStatus(err error) int {
	if apiclient.IsKind(err, apiclient.KindValidation) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

type dashboardData struct {
	Stats    exercise.Summary
	StatsErr string
	Filters  apiclient.Filters
	Page     exercise.Page[exercise.ExerciseSet]
}

// PageURL keeps the current filters and marks them as already applied.
func (d dashboardData) PageURL(n int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	q.Set("estado", d.Filters.Status)
	q.Set("search", d.Filters.Search)
	q.Set("prev_estado", d.Filters.Status)
	q.Set("prev_search", d.Filters.Search)
	return "/instructor/dashboard?" + q.Encode()
}

func (d dashboardData) Pages() []int {
	out := make([]int, d.Page.TotalPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prev := apiclient.Filters{Status: q.Get("prev_estado"), Search: q.Get("prev_search")}
	f := prev.Apply(apiclient.Filters{
		Status: q.Get("estado"),
		Search: q.Get("search"),
		Page:   atoiOr(q.Get("page"), 1),
	})

	page, err := s.Sets.List(r.Context(), f.Params(exercise.DefaultSetPageSize))
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	d := dashboardData{Filters: f, Page: page}
	if all, err := s.Sets.CollectAll(r.Context(), apiclient.ListParams{}); err != nil {
		d.StatsErr = apiclient.Message(err)
	} else {
		d.Stats = exercise.Summarize(all)
	}
	s.render(w, r, http.StatusOK, "dashboard", "Dashboard", d)
}

type setFormData struct {
	Form    setForm
	Action  string
	Editing bool
	ID      string
	Errors  exercise.ValidationErrors
	Message string
}

func (s *Server) createForm(w http.ResponseWriter, r *http.Request) {
	f := setForm{
		Configuration: exercise.DefaultConfiguration(),
		CourseID:      r.URL.Query().Get("cursoId"),
	}
	s.render(w, r, http.StatusOK, "exercise_form", "New exercise", setFormData{Form: f, Action: "/instructor/create-exercise"})
}

func (s *Server) createExercise(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f := parseSetForm(r.PostForm)
	set, err := s.Sets.Create(r.Context(), f.create())
	if err != nil {
		d := setFormData{Form: f, Action: "/instructor/create-exercise"}
		d.Errors, d.Message = formErrors(err)
		s.render(w, r, formStatus(err), "exercise_form", "New exercise", d)
		return
	}
	redirectFlash(w, r, "/instructor/exercise/"+set.ID+"/questions", "success", "Exercise created. Add its questions.")
}

type viewData struct {
	Set    exercise.ExerciseSet
	Source bool // show raw LaTeX instead of rendered math
}

func (s *Server) viewExercise(w http.ResponseWriter, r *http.Request) {
	set, ok := s.loadSet(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "exercise_view", set.Title, viewData{Set: set, Source: r.URL.Query().Get("source") == "1"})
}

func (s *Server) editForm(w http.ResponseWriter, r *http.Request) {
	set, ok := s.loadSet(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "exercise_form", "Edit exercise", setFormData{
		Form:    setFormFrom(set),
		Action:  "/instructor/exercise/" + set.ID + "/edit",
		Editing: true,
		ID:      set.ID,
	})
}

func (s *Server) updateExercise(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	f := parseSetForm(r.PostForm)
	if _, err := s.Sets.Update(r.Context(), id, f.update()); err != nil {
		d := setFormData{Form: f, Action: "/instructor/exercise/" + id + "/edit", Editing: true, ID: id}
		d.Errors, d.Message = formErrors(err)
		s.render(w, r, formStatus(err), "exercise_form", "Edit exercise", d)
		return
	}
	redirectFlash(w, r, "/instructor/exercise/"+id, "success", "Exercise saved.")
}

func (s *Server) togglePublish(w http.ResponseWriter, r *http.Request) {
	back := safeNext(r.FormValue("back"))
	if back == "/" {
		back = "/instructor/dashboard"
	}
	set, err := s.Sets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		redirectFlash(w, r, back, "error", apiclient.Message(err))
		return
	}
	st, err := s.Sets.TogglePublish(r.Context(), set)
	if err != nil {
		redirectFlash(w, r, back, "error", apiclient.Message(err))
		return
	}
	msg := "\"" + set.Title + "\" is now a draft."
	if st.Visible() {
		msg = "\"" + set.Title + "\" is published."
	}
	redirectFlash(w, r, back, "success", msg)
}

func (s *Server) deleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := s.Sets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		redirectFlash(w, r, "/instructor/dashboard", "error", apiclient.Message(err))
		return
	}
	redirectFlash(w, r, "/instructor/dashboard", "success", "Exercise deleted.")
}
