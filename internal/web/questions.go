package web

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

type questionListData struct {
	Set       exercise.ExerciseSet
	Questions exercise.Page[exercise.Question]
	Types     []exercise.QuestionType
}

func (d questionListData) Pages() []int {
	out := make([]int, d.Questions.TotalPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func (s *Server) questionList(w http.ResponseWriter, r *http.Request) {
	set, ok := s.loadSet(w, r)
	if !ok {
		return
	}
	page, err := s.Questions.List(r.Context(), set.ID, atoiOr(r.URL.Query().Get("page"), 1), exercise.DefaultQuestionPageSize)
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "questions", "Questions", questionListData{
		Set:       set,
		Questions: page,
		Types:     exercise.QuestionTypes,
	})
}

type questionFormData struct {
	Set          exercise.ExerciseSet
	Form         questionForm
	Action       string
	Editing      bool
	Types        []exercise.QuestionType
	Difficulties []exercise.Difficulty
	Errors       exercise.ValidationErrors
	Message      string
}

// Family names the answer editor the template shows.
func (d questionFormData) Family() string {
	fam, _ := d.Form.Question.Type.Family()
	switch fam {
	case exercise.FamilyChoice:
		return "choice"
	case exercise.FamilyNumeric:
		return "numeric"
	case exercise.FamilyText:
		return "text"
	case exercise.FamilySet:
		return "set"
	}
	return ""
}

func (s *Server) questionForm(w http.ResponseWriter, r *http.Request, status int, d questionFormData) {
	d.Types = exercise.QuestionTypes
	d.Difficulties = []exercise.Difficulty{exercise.DifficultyEasy, exercise.DifficultyMedium, exercise.DifficultyHard}
	title := "New question"
	if d.Editing {
		title = "Edit question"
	}
	s.render(w, r, status, "question_form", title, d)
}

// requestedType reads ?type=, falling back to def.
func requestedType(r *http.Request, def exercise.QuestionType) (exercise.QuestionType, bool) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		return def, true
	}
	t := exercise.QuestionType(raw)
	return t, t.Valid()
}

func (s *Server) newQuestionForm(w http.ResponseWriter, r *http.Request) {
	set, ok := s.loadSet(w, r)
	if !ok {
		return
	}
	t, ok := requestedType(r, exercise.TypeMultiple)
	if !ok {
		s.renderError(w, r, http.StatusBadRequest, "Unknown question type.", r.URL.Path)
		return
	}
	q, _ := exercise.NewQuestion(t)
	s.questionForm(w, r, http.StatusOK, questionFormData{
		Set:    set,
		Form:   questionFormFrom(q),
		Action: "/instructor/exercise/" + set.ID + "/questions",
	})
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	setID := chi.URLParam(r, "id")
	q, bad := parseQuestionForm(r.PostForm)
	d := questionFormData{
		Set:    exercise.ExerciseSet{ID: setID},
		Form:   questionFormFrom(q),
		Action: "/instructor/exercise/" + setID + "/questions",
	}
	if len(bad) > 0 {
		d.Errors, d.Message = bad, "Please correct the highlighted fields."
		s.questionForm(w, r, http.StatusUnprocessableEntity, d)
		return
	}
	if _, err := s.Questions.Create(r.Context(), setID, q); err != nil {
		d.Errors, d.Message = formErrors(err)
		s.questionForm(w, r, formStatus(err), d)
		return
	}
	redirectFlash(w, r, "/instructor/exercise/"+setID+"/questions", "success", "Question added.")
}

// loadQuestion fetches {qid} and checks it belongs to {id}.
func (s *Server) loadQuestion(w http.ResponseWriter, r *http.Request) (exercise.Question, bool) {
	setID := chi.URLParam(r, "id")
	q, err := s.Questions.Get(r.Context(), chi.URLParam(r, "qid"))
	if err != nil {
		s.loadFailed(w, r, err)
		return q, false
	}
	if q.ExerciseSetID != "" && q.ExerciseSetID != setID {
		s.renderError(w, r, http.StatusNotFound, "question not found", "/instructor/exercise/"+setID+"/questions")
		return q, false
	}
	return q, true
}

func (s *Server) editQuestionForm(w http.ResponseWriter, r *http.Request) {
	q, ok := s.loadQuestion(w, r)
	if !ok {
		return
	}
	t, ok := requestedType(r, q.Type)
	if !ok {
		s.renderError(w, r, http.StatusBadRequest, "Unknown question type.", r.URL.Path)
		return
	}
	if t != q.Type {
		// switching type starts the answer over from that type's defaults
		q.Type = t
		q.Answer, _ = exercise.DefaultAnswer(t)
	}
	setID := chi.URLParam(r, "id")
	s.questionForm(w, r, http.StatusOK, questionFormData{
		Set:     exercise.ExerciseSet{ID: setID},
		Form:    questionFormFrom(q),
		Action:  "/instructor/exercise/" + setID + "/questions/" + q.ID + "/edit",
		Editing: true,
	})
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	setID, qid := chi.URLParam(r, "id"), chi.URLParam(r, "qid")
	q, bad := parseQuestionForm(r.PostForm)
	q.ID = qid
	d := questionFormData{
		Set:     exercise.ExerciseSet{ID: setID},
		Form:    questionFormFrom(q),
		Action:  "/instructor/exercise/" + setID + "/questions/" + qid + "/edit",
		Editing: true,
	}
	if len(bad) > 0 {
		d.Errors, d.Message = bad, "Please correct the highlighted fields."
		s.questionForm(w, r, http.StatusUnprocessableEntity, d)
		return
	}
	if _, err := s.Questions.Update(r.Context(), qid, patchFrom(q)); err != nil {
		d.Errors, d.Message = formErrors(err)
		s.questionForm(w, r, formStatus(err), d)
		return
	}
	redirectFlash(w, r, "/instructor/exercise/"+setID+"/questions", "success", "Question saved.")
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	back := "/instructor/exercise/" + chi.URLParam(r, "id") + "/questions"
	if err := s.Questions.Delete(r.Context(), chi.URLParam(r, "qid")); err != nil {
		redirectFlash(w, r, back, "error", apiclient.Message(err))
		return
	}
	redirectFlash(w, r, back, "success", "Question deleted.")
}

// reorderQuestions accepts either a full order (questionIds, repeated) or a
// single move (qid + move=up|down) computed against the current order.
func (s *Server) reorderQuestions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	setID := chi.URLParam(r, "id")
	back := "/instructor/exercise/" + setID + "/questions"
	ids := r.PostForm["questionIds"]
	if move := r.PostForm.Get("move"); move != "" {
		set, err := s.Sets.Get(r.Context(), setID)
		if err != nil {
			redirectFlash(w, r, back, "error", apiclient.Message(err))
			return
		}
		ids = moved(set.Questions, r.PostForm.Get("qid"), move == "up")
		if ids == nil {
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
	}
	if err := s.Questions.Reorder(r.Context(), setID, ids); err != nil {
		redirectFlash(w, r, back, "error", apiclient.Message(err))
		return
	}
	redirectFlash(w, r, back, "success", "Order saved.")
}

// moved returns the ids with qid swapped one place up or down, or nil when
// qid is unknown or already at that end.
func moved(qs []exercise.Question, qid string, up bool) []string {
	qs = append([]exercise.Question(nil), qs...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
	ids := make([]string, len(qs))
	at := -1
	for i, q := range qs {
		ids[i] = q.ID
		if q.ID == qid {
			at = i
		}
	}
	to := at + 1
	if up {
		to = at - 1
	}
	if at < 0 || to < 0 || to >= len(ids) {
		return nil
	}
	ids[at], ids[to] = ids[to], ids[at]
	return ids
}
