package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

func newSet(s *Store, title string) exercise.ExerciseSet {
	return s.CreateSet(exercise.CreateExerciseSet{
		Title:         title,
		Description:   "description for " + title,
		Configuration: exercise.DefaultConfiguration(),
	})
}

func addQuestion(t *testing.T, s *Store, setID, title string) exercise.Question {
	t.Helper()
	q, _ := exercise.NewQuestion(exercise.TypeTrueFalse)
	q.Title = title
	q.Statement = "Statement of " + title
	q.Feedback = exercise.Feedback{Correct: "ok", Incorrect: "no"}
	out, err := s.CreateQuestion(setID, q)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestStore_SoftDeleteHidesSet(t *testing.T) {
	s := NewStore()
	a := newSet(s, "Alpha")
	newSet(s, "Beta")

	if err := s.DeleteSet(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSet(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted set still readable: %v", err)
	}
	if pg := s.ListSets(SetFilter{}, 1, 10); pg.Total != 1 {
		t.Fatalf("total = %d, want 1", pg.Total)
	}
	if err := s.DeleteSet(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestStore_FilterAndPaginate(t *testing.T) {
	s := NewStore()
	for i := 0; i < 7; i++ {
		set := newSet(s, fmt.Sprintf("Algebra %d", i))
		if i%2 == 0 {
			if err := s.SetPublished(set.ID, true); err != nil {
				t.Fatal(err)
			}
		}
	}
	newSet(s, "Geometry")

	pub := exercise.StatusPublished
	pg := s.ListSets(SetFilter{Status: &pub, Search: "algebra"}, 1, 3)
	if pg.Total != 4 || pg.TotalPages != 2 || len(pg.Items) != 3 {
		t.Fatalf("page 1 = %+v", pg)
	}
	pg2 := s.ListSets(SetFilter{Status: &pub, Search: "ALGEBRA"}, 2, 3)
	if len(pg2.Items) != 1 {
		t.Fatalf("page 2 items = %d", len(pg2.Items))
	}
	seen := map[string]bool{}
	for _, it := range append(pg.Items, pg2.Items...) {
		if seen[it.ID] {
			t.Fatalf("duplicate %s", it.ID)
		}
		seen[it.ID] = true
		if it.Status != exercise.StatusPublished {
			t.Fatalf("status filter leaked %v", it.Status)
		}
	}
}

func TestStore_PublishArchived(t *testing.T) {
	s := NewStore()
	set := newSet(s, "Archive me")
	archived := exercise.StatusArchived
	if _, err := s.UpdateSet(set.ID, exercise.UpdateExerciseSet{Status: &archived}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPublished(set.ID, true); !errors.Is(err, ErrArchived) {
		t.Fatalf("got %v", err)
	}
}

func TestStore_ReorderAndDelete(t *testing.T) {
	s := NewStore()
	set := newSet(s, "Ordering")
	q1 := addQuestion(t, s, set.ID, "q1")
	q2 := addQuestion(t, s, set.ID, "q2")
	q3 := addQuestion(t, s, set.ID, "q3")

	if err := s.Reorder(set.ID, []string{q3.ID, q1.ID}); err != nil {
		t.Fatal(err)
	}
	pg, err := s.ListQuestions(set.ID, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{q3.ID, q1.ID, q2.ID}
	for i, q := range pg.Items {
		if q.ID != want[i] || q.Position != i+1 {
			t.Fatalf("position %d = %s (%d)", i, q.Title, q.Position)
		}
	}

	if err := s.DeleteQuestion(q1.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetSet(set.ID)
	if len(got.Questions) != 2 || got.Questions[1].Position != 2 {
		t.Fatalf("renumber after delete: %+v", got.Questions)
	}

	other := newSet(s, "Other")
	foreign := addQuestion(t, s, other.ID, "foreign")
	if err := s.Reorder(set.ID, []string{foreign.ID}); !errors.Is(err, ErrBadOrder) {
		t.Fatalf("foreign id accepted: %v", err)
	}
}

func TestStore_EqualPositionsListInStableOrder(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	set := newSet(s, "Ties")
	var ids []string
	for i := 0; i < 4; i++ {
		q := addQuestion(t, s, set.ID, fmt.Sprintf("Question %d", i))
		ids = append(ids, q.ID)
	}
	one := 1
	for _, id := range ids {
		if _, err := s.UpdateQuestion(id, exercise.QuestionPatch{Position: &one}); err != nil {
			t.Fatal(err)
		}
	}
	sort.Strings(ids)

	for round := 0; round < 20; round++ {
		var got []string
		for p := 1; p <= 2; p++ {
			page, err := s.ListQuestions(set.ID, p, 2)
			if err != nil {
				t.Fatal(err)
			}
			for _, q := range page.Items {
				got = append(got, q.ID)
			}
		}
		if fmt.Sprint(got) != fmt.Sprint(ids) {
			t.Fatalf("round %d: pages = %v, want %v", round, got, ids)
		}
	}
}

func TestSeed(t *testing.T) {
	s := NewStore()
	if err := Seed(s); err != nil {
		t.Fatal(err)
	}
	pub := exercise.StatusPublished
	pg := s.ListSets(SetFilter{Status: &pub}, 1, 10)
	if pg.Total != 1 || len(pg.Items[0].Questions) != 3 {
		t.Fatalf("seed = %+v", pg)
	}
}
