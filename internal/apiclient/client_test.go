package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
	"github.com/matuc/lti-exercise-composer/internal/mockapi"
)

// newTestAPI serves the mock exercise API under /api and counts requests.
func newTestAPI(t *testing.T) (*Client, *mockapi.Store, *int64) {
	t.Helper()
	store := mockapi.NewStore()
	var hits int64
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			atomic.AddInt64(&hits, 1)
			next.ServeHTTP(w, req)
		})
	})
	r.Mount("/api", mockapi.Routes(store))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api"})
	if err != nil {
		t.Fatal(err)
	}
	return c, store, &hits
}

func sampleCreate() exercise.CreateExerciseSet {
	return exercise.CreateExerciseSet{
		Title:         "Limits",
		Description:   "Limits and continuity practice",
		Configuration: exercise.DefaultConfiguration(),
	}
}

func TestCreate_ShortTitleFailsBeforeNetwork(t *testing.T) {
	c, _, hits := newTestAPI(t)
	in := sampleCreate()
	in.Title = "Ab"

	_, err := c.ExerciseSets.Create(context.Background(), in)
	if !IsKind(err, KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if !strings.Contains(Message(err), "minimum length") {
		t.Fatalf("message = %q", Message(err))
	}
	var verrs exercise.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("title") {
		t.Fatalf("validation errors not reachable: %v", err)
	}
	if n := atomic.LoadInt64(hits); n != 0 {
		t.Fatalf("%d requests issued", n)
	}
}

func TestExerciseSets_CRUD(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()

	created, err := c.ExerciseSets.Create(ctx, sampleCreate())
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Status != exercise.StatusDraft {
		t.Fatalf("created = %+v", created)
	}

	title := "Limits and continuity"
	updated, err := c.ExerciseSets.Update(ctx, created.ID, exercise.UpdateExerciseSet{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != title || updated.Description != created.Description {
		t.Fatalf("partial update = %+v", updated)
	}

	got, err := c.ExerciseSets.Get(ctx, created.ID)
	if err != nil || got.Title != title {
		t.Fatalf("get = %+v, %v", got, err)
	}

	if err := c.ExerciseSets.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	_, err = c.ExerciseSets.Get(ctx, created.ID)
	if !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
	if Message(err) != "exercise set not found" {
		t.Fatalf("server message not passed through: %q", Message(err))
	}

	if _, err := c.ExerciseSets.Get(ctx, "  "); !IsKind(err, KindValidation) {
		t.Fatalf("blank id: %v", err)
	}
}

func TestTogglePublish_RoundTrip(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()
	set, err := c.ExerciseSets.Create(ctx, sampleCreate())
	if err != nil {
		t.Fatal(err)
	}
	e0, p0 := set.Status.Wire()

	for i := 0; i < 2; i++ {
		cur, err := c.ExerciseSets.Get(ctx, set.ID)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.ExerciseSets.TogglePublish(ctx, cur); err != nil {
			t.Fatal(err)
		}
	}
	back, err := c.ExerciseSets.Get(ctx, set.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e, p := back.Status.Wire(); e != e0 || p != p0 {
		t.Fatalf("pair (%s,%v) != original (%s,%v)", e, p, e0, p0)
	}

	archived := exercise.StatusArchived
	back, _ = c.ExerciseSets.Update(ctx, set.ID, exercise.UpdateExerciseSet{Status: &archived})
	if _, err := c.ExerciseSets.TogglePublish(ctx, back); !IsKind(err, KindValidation) {
		t.Fatalf("archived toggle: %v", err)
	}
}

func TestList_FiltersAndPages(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		in := sampleCreate()
		in.Title = "Series " + string(rune('A'+i))
		if _, err := c.ExerciseSets.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.ExerciseSets.Create(ctx, sampleCreate()); err != nil {
		t.Fatal(err)
	}

	pg, err := c.ExerciseSets.List(ctx, ListParams{Page: 2, Limit: 2, Search: "series"})
	if err != nil {
		t.Fatal(err)
	}
	if pg.Total != 5 || pg.TotalPages != 3 || pg.Page != 2 || len(pg.Items) != 2 {
		t.Fatalf("page = %+v", pg)
	}

	all, err := c.ExerciseSets.CollectAll(ctx, ListParams{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Fatalf("collected %d", len(all))
	}
}

func TestFilters_ApplyResetsPage(t *testing.T) {
	f := Filters{Status: "all", Page: 4}
	if got := f.Apply(Filters{Status: "draft", Page: 4}); got.Page != 1 {
		t.Fatalf("status change kept page %d", got.Page)
	}
	if got := f.Apply(Filters{Status: "all", Search: "x", Page: 4}); got.Page != 1 {
		t.Fatalf("search change kept page %d", got.Page)
	}
	if got := f.Apply(Filters{Status: "all", Page: 5}); got.Page != 5 {
		t.Fatalf("plain paging reset to %d", got.Page)
	}
	if p := (Filters{Status: "all"}).Params(10); p.Status != nil {
		t.Fatalf("all must not filter")
	}
}

func newQuestion(t *testing.T, title string) exercise.Question {
	t.Helper()
	q, err := exercise.NewQuestion(exercise.TypeMultiple)
	if err != nil {
		t.Fatal(err)
	}
	q.Title = title
	q.Statement = "Choose the right option for " + title
	q.Feedback = exercise.Feedback{Correct: "yes", Incorrect: "no"}
	return q
}

func TestQuestions_ReorderThenRefetch(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()
	set, err := c.ExerciseSets.Create(ctx, sampleCreate())
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 3)
	for i, title := range []string{"q1", "q2", "q3"} {
		q, err := c.Questions.Create(ctx, set.ID, newQuestion(t, "Question "+title))
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = q.ID
	}

	order := []string{ids[2], ids[0], ids[1]}
	if err := c.Questions.Reorder(ctx, set.ID, order); err != nil {
		t.Fatal(err)
	}
	pg, err := c.Questions.List(ctx, set.ID, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pg.Items) != 3 {
		t.Fatalf("items = %d", len(pg.Items))
	}
	for i, q := range pg.Items {
		if q.ID != order[i] {
			t.Fatalf("position %d = %s, want %s", i, q.ID, order[i])
		}
	}

	if err := c.Questions.Reorder(ctx, set.ID, []string{ids[0], ids[0]}); !IsKind(err, KindValidation) {
		t.Fatalf("duplicate ids: %v", err)
	}
}

func TestQuestions_UpdateAndDelete(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()
	set, _ := c.ExerciseSets.Create(ctx, sampleCreate())
	q, err := c.Questions.Create(ctx, set.ID, newQuestion(t, "Original"))
	if err != nil {
		t.Fatal(err)
	}

	typ := exercise.TypeNumeric
	pts := 7
	up, err := c.Questions.Update(ctx, q.ID, exercise.QuestionPatch{
		Type:   &typ,
		Answer: exercise.NumericAnswer{Value: 2.5, Tolerance: 0.1},
		Points: &pts,
	})
	if err != nil {
		t.Fatal(err)
	}
	if up.Points != 7 || up.Title != "Original" {
		t.Fatalf("update = %+v", up)
	}
	if a, ok := up.Answer.(exercise.NumericAnswer); !ok || a.Value != 2.5 {
		t.Fatalf("answer = %#v", up.Answer)
	}

	if err := c.Questions.Delete(ctx, q.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Questions.Get(ctx, q.ID); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/exercise-sets/with-message":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"ok":false,"message":"title already used"}`))
		case "/api/exercise-sets/ok-false":
			_, _ = w.Write([]byte(`{"ok":false}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer srv.Close()
	c, _ := New(Config{BaseURL: srv.URL + "/api/"})
	ctx := context.Background()

	_, err := c.ExerciseSets.Get(ctx, "with-message")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindServer || e.Status != 422 || e.Message != "title already used" {
		t.Fatalf("got %#v", err)
	}
	if _, err := c.ExerciseSets.Get(ctx, "ok-false"); Message(err) != "exercise set not found" {
		t.Fatalf("fallback = %q", Message(err))
	}
	if _, err := c.ExerciseSets.Get(ctx, "html"); Message(err) != "exercise set not found" {
		t.Fatalf("non-json fallback = %q", Message(err))
	}
	if c.Health(ctx) {
		t.Fatalf("health on 502 must be false")
	}
}

func TestNetworkErrorAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ExerciseSets.List(context.Background(), ListParams{})
	if !IsKind(err, KindNetwork) || Message(err) != MsgUnreachable {
		t.Fatalf("got %v", err)
	}
	if c.Health(context.Background()) {
		t.Fatalf("health must be false when unreachable")
	}

	up, _, _ := newTestAPI(t)
	if !up.Health(context.Background()) {
		t.Fatalf("mock api should be healthy")
	}
}

func TestBearerTokenFromContext(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	c, _ := New(Config{BaseURL: srv.URL})
	if err := c.ExerciseSets.Delete(WithToken(context.Background(), "abc"), "x"); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer abc" {
		t.Fatalf("authorization = %q", got)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
