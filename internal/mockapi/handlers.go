package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

const maxLimit = 100

// Routes mounts the exercise API under the returned router. Callers mount it at /api.
func Routes(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", HealthHandler())

	r.Route("/exercise-sets", func(r chi.Router) {
		r.Get("/", ListSetsHandler(store))
		r.Post("/", CreateSetHandler(store))
		r.Get("/{id}", GetSetHandler(store))
		r.Put("/{id}", UpdateSetHandler(store))
		r.Delete("/{id}", DeleteSetHandler(store))
		r.Patch("/{id}/publish", PublishHandler(store))
		r.Get("/{id}/questions", ListQuestionsHandler(store))
		r.Post("/{id}/questions", CreateQuestionHandler(store))
		r.Patch("/{id}/questions/reorder", ReorderHandler(store))
	})
	r.Route("/questions", func(r chi.Router) {
		r.Get("/{id}", GetQuestionHandler(store))
		r.Put("/{id}", UpdateQuestionHandler(store))
		r.Delete("/{id}", DeleteQuestionHandler(store))
	})
	return r
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, true)
	}
}

func ListSetsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := SetFilter{Search: q.Get("search"), CourseID: q.Get("cursoId")}
		if st, ok := exercise.ParseStatus(q.Get("estado")); ok {
			f.Status = &st
		}
		page := parseIntDefault(q.Get("page"), 1)
		limit := clampLimit(parseIntDefault(q.Get("limit"), exercise.DefaultSetPageSize))
		writeOK(w, http.StatusOK, store.ListSets(f, page, limit))
	}
}

func GetSetHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := store.GetSet(chi.URLParam(r, "id"))
		if err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusOK, set)
	}
}

func CreateSetHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exercise.CreateExerciseSet
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeFail(w, http.StatusBadRequest, "bad json")
			return
		}
		in = in.Normalize()
		if errs := in.Validate(); len(errs) > 0 {
			writeFail(w, http.StatusBadRequest, errs.Error())
			return
		}
		writeOK(w, http.StatusCreated, store.CreateSet(in))
	}
}

func UpdateSetHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exercise.UpdateExerciseSet
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeFail(w, http.StatusBadRequest, "bad json")
			return
		}
		if errs := in.Validate(); len(errs) > 0 {
			writeFail(w, http.StatusBadRequest, errs.Error())
			return
		}
		set, err := store.UpdateSet(chi.URLParam(r, "id"), in)
		if err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusOK, set)
	}
}

func DeleteSetHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteSet(chi.URLParam(r, "id")); err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusOK, true)
	}
}

func PublishHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Publicado *bool `json:"publicado"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Publicado == nil {
			writeFail(w, http.StatusBadRequest, "publicado is required")
			return
		}
		if err := store.SetPublished(chi.URLParam(r, "id"), *body.Publicado); err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusOK, true)
	}
}

func ListQuestionsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := parseIntDefault(q.Get("page"), 1)
		limit := clampLimit(parseIntDefault(q.Get("limit"), exercise.DefaultQuestionPageSize))
		out, err := store.ListQuestions(chi.URLParam(r, "id"), page, limit)
		if err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusOK, out)
	}
}

func GetQuestionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(chi.URLParam(r, "id"))
		if err != nil {
			writeStoreErr(w, err, "question not found")
			return
		}
		writeOK(w, http.StatusOK, q)
	}
}

func CreateQuestionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exercise.Question
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeFail(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		in = in.Normalize()
		if errs := in.Validate(); len(errs) > 0 {
			writeFail(w, http.StatusBadRequest, errs.Error())
			return
		}
		q, err := store.CreateQuestion(chi.URLParam(r, "id"), in)
		if err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusCreated, q)
	}
}

func UpdateQuestionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exercise.QuestionPatch
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeFail(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		if errs := in.Validate(); len(errs) > 0 {
			writeFail(w, http.StatusBadRequest, errs.Error())
			return
		}
		q, err := store.UpdateQuestion(chi.URLParam(r, "id"), in)
		if err != nil {
			writeStoreErr(w, err, "question not found")
			return
		}
		writeOK(w, http.StatusOK, q)
	}
}

func DeleteQuestionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(chi.URLParam(r, "id")); err != nil {
			writeStoreErr(w, err, "question not found")
			return
		}
		writeOK(w, http.StatusOK, true)
	}
}

func ReorderHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QuestionIDs []string `json:"questionIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeFail(w, http.StatusBadRequest, "bad json")
			return
		}
		if errs := exercise.ValidateOrder(body.QuestionIDs); len(errs) > 0 {
			writeFail(w, http.StatusBadRequest, errs.Error())
			return
		}
		if err := store.Reorder(chi.URLParam(r, "id"), body.QuestionIDs); err != nil {
			writeStoreErr(w, err, "exercise set not found")
			return
		}
		writeOK(w, http.StatusOK, true)
	}
}

// ---- envelope helpers ----

func writeOK(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, map[string]any{"ok": true, "data": data})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, map[string]any{"ok": false, "message": msg, "error": http.StatusText(status)})
}

func writeEnvelope(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStoreErr(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeFail(w, http.StatusNotFound, notFound)
	case errors.Is(err, ErrArchived), errors.Is(err, ErrBadOrder):
		writeFail(w, http.StatusConflict, err.Error())
	default:
		writeFail(w, http.StatusInternalServerError, err.Error())
	}
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func clampLimit(n int) int {
	if n > maxLimit {
		return maxLimit
	}
	return n
}
