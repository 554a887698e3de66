package web

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/attempt"
	"github.com/matuc/lti-exercise-composer/internal/auth"
	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

type studentListData struct {
	Page exercise.Page[exercise.ExerciseSet]
}

func (d studentListData) Pages() []int {
	out := make([]int, d.Page.TotalPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func (s *Server) studentExercises(w http.ResponseWriter, r *http.Request) {
	published := exercise.StatusPublished
	page, err := s.Sets.List(r.Context(), apiclient.ListParams{
		Page:   atoiOr(r.URL.Query().Get("page"), 1),
		Status: &published,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "student_list", "Exercises", studentListData{Page: visibleOnly(page)})
}

// visibleOnly drops sets the server listed as published but whose flag says
// otherwise, and takes them out of the page counts.
func visibleOnly(page exercise.Page[exercise.ExerciseSet]) exercise.Page[exercise.ExerciseSet] {
	visible := make([]exercise.ExerciseSet, 0, len(page.Items))
	for _, set := range page.Items {
		if set.Status.Visible() {
			visible = append(visible, set)
		}
	}
	if dropped := len(page.Items) - len(visible); dropped > 0 {
		page.Total -= dropped
		page.TotalPages = exercise.TotalPages(page.Total, page.Limit)
	}
	page.Items = visible
	return page
}

// loadVisibleSet is loadSet for students: unpublished sets do not exist for them.
func (s *Server) loadVisibleSet(w http.ResponseWriter, r *http.Request) (exercise.ExerciseSet, bool) {
	set, ok := s.loadSet(w, r)
	if !ok {
		return set, false
	}
	if !set.Status.Visible() {
		s.renderError(w, r, http.StatusNotFound, "This exercise is not available.", "/student/exercises")
		return set, false
	}
	return set, true
}

func (s *Server) takeIntro(w http.ResponseWriter, r *http.Request) {
	set, ok := s.loadVisibleSet(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "take_intro", set.Title, set)
}

func (s *Server) startAttempt(w http.ResponseWriter, r *http.Request) {
	set, ok := s.loadVisibleSet(w, r)
	if !ok {
		return
	}
	sub := auth.SubjectFromContext(r.Context())
	a, err := s.Attempts.Open(sub, set)
	if err != nil {
		redirectFlash(w, r, "/student/exercise/"+set.ID, "error", actionMessage(err))
		return
	}
	if _, err := s.Attempts.Start(r.Context(), sub, a.ID()); err != nil {
		redirectFlash(w, r, "/student/exercise/"+set.ID, "error", actionMessage(err))
		return
	}
	http.Redirect(w, r, attemptURL(a), http.StatusSeeOther)
}

func attemptURL(a *attempt.Attempt) string {
	return "/student/exercise/" + a.Set().ID + "/attempt/" + a.ID()
}

// loadAttempt finds the caller's attempt and checks it belongs to {id}.
func (s *Server) loadAttempt(w http.ResponseWriter, r *http.Request) (*attempt.Attempt, bool) {
	a, err := s.Attempts.Get(auth.SubjectFromContext(r.Context()), chi.URLParam(r, "attemptID"))
	switch {
	case errors.Is(err, attempt.ErrForbidden):
		s.renderError(w, r, http.StatusForbidden, "This attempt belongs to someone else.", "/student/exercises")
		return nil, false
	case err != nil:
		redirectFlash(w, r, "/student/exercise/"+chi.URLParam(r, "id"), "info", "That attempt has ended.")
		return nil, false
	case a.Set().ID != chi.URLParam(r, "id"):
		s.notFound(w, r)
		return nil, false
	}
	a.Touch()
	return a, true
}

type attemptData struct {
	Set        exercise.ExerciseSet
	Snap       attempt.Snapshot
	Question   exercise.Question
	Response   string
	Answered   int
	StreamURL  string
	RefreshSec int
}

// IsAnswered reports whether question i has a response.
func (d attemptData) IsAnswered(i int) bool {
	if i < 0 || i >= len(d.Set.Questions) {
		return false
	}
	_, ok := d.Snap.Responses[d.Set.Questions[i].ID]
	return ok
}

// Choices are the options of the current question when it is a choice question.
func (d attemptData) Choices() []string {
	if a, ok := d.Question.Answer.(exercise.ChoiceAnswer); ok {
		return a.Options
	}
	return nil
}

func (s *Server) attemptPage(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadAttempt(w, r)
	if !ok {
		return
	}
	snap := a.Snapshot()
	q, _ := a.Current()
	d := attemptData{
		Set:       a.Set(),
		Snap:      snap,
		Question:  q,
		Response:  snap.Responses[q.ID],
		Answered:  len(snap.Responses),
		StreamURL: attemptURL(a) + "/ws",
	}
	if a.State() == attempt.Submitted {
		d.RefreshSec = int(math.Ceil(s.redirectDelay().Seconds()))
		s.render(w, r, http.StatusOK, "submitted", "Submitted", d)
		return
	}
	s.render(w, r, http.StatusOK, "attempt", a.Set().Title, d)
}

func (s *Server) redirectDelay() time.Duration {
	if d := s.Config.SubmitRedirectDelay; d > 0 {
		return d
	}
	return attempt.DefaultRedirectDelay
}

func (s *Server) attemptAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	a, ok := s.loadAttempt(w, r)
	if !ok {
		return
	}
	req := actionRequest{
		Action:     r.PostForm.Get("action"),
		QuestionID: r.PostForm.Get("questionId"),
		Value:      r.PostForm.Get("value"),
		Index:      atoiOr(r.PostForm.Get("index"), -1),
		Then:       r.PostForm.Get("then"),
		Confirm:    checkbox(r.PostForm, "confirm"),
	}
	err := s.apply(r.Context(), auth.SubjectFromContext(r.Context()), a, req)
	switch {
	case err == nil && req.Action == "leave":
		redirectFlash(w, r, "/student/exercises", "info", "Attempt abandoned.")
	case err == nil && req.Action == "submit":
		redirectFlash(w, r, attemptURL(a), "success", "Your answers were submitted.")
	case err == nil:
		http.Redirect(w, r, attemptURL(a), http.StatusSeeOther)
	default:
		kind := "error"
		if errors.Is(err, attempt.ErrDuplicateSubmit) || errors.Is(err, attempt.ErrTimeUp) {
			kind = "info"
		}
		redirectFlash(w, r, attemptURL(a), kind, actionMessage(err))
	}
}

// actionRequest is one user action on an attempt, from the page form or the JSON API.
type actionRequest struct {
	Action     string `json:"action"` // start|next|prev|jump|answer|submit|leave
	QuestionID string `json:"questionId,omitempty"`
	Value      string `json:"value,omitempty"`
	Index      int    `json:"index,omitempty"`
	Then       string `json:"then,omitempty"` // after answer: next|prev
	Confirm    bool   `json:"confirm,omitempty"`
}

var errUnknownAction = errors.New("unknown action")

func (s *Server) apply(ctx context.Context, sub string, a *attempt.Attempt, req actionRequest) error {
	var err error
	switch req.Action {
	case "start":
		_, err = s.Attempts.Start(ctx, sub, a.ID())
	case "next":
		_, err = a.Next()
	case "prev":
		_, err = a.Previous()
	case "jump":
		_, err = a.Jump(req.Index)
	case "answer":
		if err = a.Answer(req.QuestionID, req.Value); err != nil {
			return err
		}
		switch req.Then {
		case "next":
			_, err = a.Next()
		case "prev":
			_, err = a.Previous()
		}
	case "submit":
		_, err = s.Attempts.Submit(ctx, sub, a.ID(), req.Confirm)
	case "leave":
		err = s.Attempts.Abandon(ctx, sub, a.ID())
	default:
		err = errUnknownAction
	}
	return err
}

func actionMessage(err error) string {
	switch {
	case errors.Is(err, attempt.ErrTimeUp):
		return "Time is up. You can still submit your answers."
	case errors.Is(err, attempt.ErrNotConfirmed):
		return "Tick the confirmation box to submit."
	case errors.Is(err, attempt.ErrSubmitInFlight):
		return "Your submission is already being sent."
	case errors.Is(err, attempt.ErrDuplicateSubmit):
		return "These answers were already submitted."
	case errors.Is(err, attempt.ErrFreeNavigationOff):
		return "This exercise must be answered in order."
	case errors.Is(err, attempt.ErrUnknownQuestion):
		return "That question is not part of this exercise."
	case errors.Is(err, attempt.ErrInvalidState):
		return "That action is not available right now."
	case errors.Is(err, attempt.ErrUnavailable):
		return "This exercise is not available."
	case errors.Is(err, attempt.ErrNoQuestions):
		return "This exercise has no questions yet."
	case errors.Is(err, attempt.ErrNotFound):
		return "That attempt has ended."
	case errors.Is(err, attempt.ErrForbidden):
		return "This attempt belongs to someone else."
	case errors.Is(err, errUnknownAction):
		return "Unknown action."
	}
	return "Could not submit your answers: " + err.Error() + ". Please try again."
}

func actionStatus(err error) int {
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, attempt.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, attempt.ErrNotConfirmed), errors.Is(err, attempt.ErrUnknownQuestion),
		errors.Is(err, errUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, attempt.ErrTimeUp), errors.Is(err, attempt.ErrSubmitInFlight),
		errors.Is(err, attempt.ErrDuplicateSubmit), errors.Is(err, attempt.ErrFreeNavigationOff),
		errors.Is(err, attempt.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}
