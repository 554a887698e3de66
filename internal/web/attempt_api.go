package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matuc/lti-exercise-composer/internal/auth"
)

// Same envelope the exercise API uses.
type apiEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiEnvelope{OK: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiEnvelope{OK: false, Message: msg})
}

func apiDeny(w http.ResponseWriter, _ *http.Request, status int) {
	writeFail(w, status, http.StatusText(status))
}

func (s *Server) apiAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := s.Attempts.Get(auth.SubjectFromContext(r.Context()), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeFail(w, actionStatus(err), actionMessage(err))
		return
	}
	a.Touch()
	writeOK(w, a.Snapshot())
}

func (s *Server) apiAttemptAction(w http.ResponseWriter, r *http.Request) {
	sub := auth.SubjectFromContext(r.Context())
	a, err := s.Attempts.Get(sub, chi.URLParam(r, "attemptID"))
	if err != nil {
		writeFail(w, actionStatus(err), actionMessage(err))
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := s.apply(r.Context(), sub, a, req); err != nil {
		writeFail(w, actionStatus(err), actionMessage(err))
		return
	}
	writeOK(w, a.Snapshot())
}

type eventView struct {
	Offset    int64           `json:"offset"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// apiAttemptEvents lists what the local event log holds for an attempt.
func (s *Server) apiAttemptEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		writeFail(w, http.StatusNotFound, "event log is not enabled")
		return
	}
	events, err := s.Events.List(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{
			Offset:    e.Offset,
			Type:      e.Type,
			Data:      json.RawMessage(e.DataJSON),
			CreatedAt: time.Unix(e.CreatedAt, 0).UTC(),
		})
	}
	writeOK(w, out)
}
