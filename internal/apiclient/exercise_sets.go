package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

type ExerciseSetService struct{ c *Client }

// ListParams maps to GET /exercise-sets query parameters. Zero values are omitted.
type ListParams struct {
	Page     int
	Limit    int
	Status   *exercise.Status
	Search   string
	CourseID string
}

func (p ListParams) values(defaultLimit int) url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	q.Set("limit", strconv.Itoa(limit))
	if p.Status != nil {
		q.Set("estado", p.Status.String())
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		q.Set("search", s)
	}
	if p.CourseID != "" {
		q.Set("cursoId", p.CourseID)
	}
	return q
}

func (s *ExerciseSetService) List(ctx context.Context, p ListParams) (exercise.Page[exercise.ExerciseSet], error) {
	var out exercise.Page[exercise.ExerciseSet]
	err := s.c.do(ctx, call{
		op: "list exercise sets", fallback: "failed to load exercise sets",
		method: http.MethodGet, path: "/exercise-sets",
		query: p.values(exercise.DefaultSetPageSize), out: &out,
	})
	return out, err
}

// CollectAll walks every page of p. Used for dashboard counters.
func (s *ExerciseSetService) CollectAll(ctx context.Context, p ListParams) ([]exercise.ExerciseSet, error) {
	p.Page = 1
	if p.Limit <= 0 {
		p.Limit = 50
	}
	var all []exercise.ExerciseSet
	for {
		pg, err := s.List(ctx, p)
		if err != nil {
			return nil, err
		}
		all = append(all, pg.Items...)
		if p.Page >= pg.TotalPages || len(pg.Items) == 0 {
			return all, nil
		}
		p.Page++
	}
}

func (s *ExerciseSetService) Get(ctx context.Context, id string) (exercise.ExerciseSet, error) {
	const op = "get exercise set"
	if err := validation(op, exercise.ValidateID("id", id)); err != nil {
		return exercise.ExerciseSet{}, err
	}
	var out exercise.ExerciseSet
	err := s.c.do(ctx, call{
		op: op, fallback: "exercise set not found",
		method: http.MethodGet, path: idPath("/exercise-sets", id), out: &out,
	})
	return out, err
}

func (s *ExerciseSetService) Create(ctx context.Context, in exercise.CreateExerciseSet) (exercise.ExerciseSet, error) {
	const op = "create exercise set"
	in = in.Normalize()
	if err := validation(op, in.Validate()); err != nil {
		return exercise.ExerciseSet{}, err
	}
	var out exercise.ExerciseSet
	err := s.c.do(ctx, call{
		op: op, fallback: "failed to create exercise set",
		method: http.MethodPost, path: "/exercise-sets", body: in, out: &out,
	})
	return out, err
}

func (s *ExerciseSetService) Update(ctx context.Context, id string, in exercise.UpdateExerciseSet) (exercise.ExerciseSet, error) {
	const op = "update exercise set"
	v := exercise.ValidateID("id", id)
	v = append(v, in.Validate()...)
	if err := validation(op, v); err != nil {
		return exercise.ExerciseSet{}, err
	}
	var out exercise.ExerciseSet
	err := s.c.do(ctx, call{
		op: op, fallback: "failed to update exercise set",
		method: http.MethodPut, path: idPath("/exercise-sets", id), body: in, out: &out,
	})
	return out, err
}

// Delete is a soft delete on the server.
func (s *ExerciseSetService) Delete(ctx context.Context, id string) error {
	const op = "delete exercise set"
	if err := validation(op, exercise.ValidateID("id", id)); err != nil {
		return err
	}
	return s.c.do(ctx, call{
		op: op, fallback: "failed to delete exercise set",
		method: http.MethodDelete, path: idPath("/exercise-sets", id),
	})
}

func (s *ExerciseSetService) SetPublished(ctx context.Context, id string, published bool) error {
	const op = "publish exercise set"
	if err := validation(op, exercise.ValidateID("id", id)); err != nil {
		return err
	}
	return s.c.do(ctx, call{
		op: op, fallback: "failed to change publication state",
		method: http.MethodPatch, path: idPath("/exercise-sets", id, "publish"),
		body: map[string]bool{"publicado": published},
	})
}

// TogglePublish flips visibility and returns the resulting status.
// Archived sets cannot be toggled.
func (s *ExerciseSetService) TogglePublish(ctx context.Context, set exercise.ExerciseSet) (exercise.Status, error) {
	const op = "publish exercise set"
	if set.Status == exercise.StatusArchived {
		v := exercise.ValidationErrors{{Field: "status", Message: "archived exercise sets cannot be published"}}
		return set.Status, validation(op, v)
	}
	publish := !set.Status.Visible()
	if err := s.SetPublished(ctx, set.ID, publish); err != nil {
		return set.Status, err
	}
	if publish {
		return exercise.StatusPublished, nil
	}
	return exercise.StatusDraft, nil
}

// Filters is the dashboard filter state.
type Filters struct {
	Status string // "", "all" or an estado value
	Search string
	Page   int
}

// Apply moves to next, resetting to page 1 whenever a filter changed.
func (f Filters) Apply(next Filters) Filters {
	if next.Status != f.Status || strings.TrimSpace(next.Search) != strings.TrimSpace(f.Search) {
		next.Page = 1
	}
	if next.Page < 1 {
		next.Page = 1
	}
	return next
}

func (f Filters) Params(limit int) ListParams {
	p := ListParams{Page: f.Page, Limit: limit, Search: f.Search}
	if st, ok := exercise.ParseStatus(f.Status); ok {
		p.Status = &st
	}
	return p
}
