package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

type QuestionService struct{ c *Client }

func (s *QuestionService) List(ctx context.Context, setID string, page, limit int) (exercise.Page[exercise.Question], error) {
	const op = "list questions"
	var out exercise.Page[exercise.Question]
	if err := validation(op, exercise.ValidateID("exerciseSetId", setID)); err != nil {
		return out, err
	}
	if limit <= 0 {
		limit = exercise.DefaultQuestionPageSize
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	err := s.c.do(ctx, call{
		op: op, fallback: "failed to load questions",
		method: http.MethodGet, path: idPath("/exercise-sets", setID, "questions"),
		query: q, out: &out,
	})
	return out, err
}

func (s *QuestionService) Get(ctx context.Context, id string) (exercise.Question, error) {
	const op = "get question"
	if err := validation(op, exercise.ValidateID("id", id)); err != nil {
		return exercise.Question{}, err
	}
	var out exercise.Question
	err := s.c.do(ctx, call{
		op: op, fallback: "question not found",
		method: http.MethodGet, path: idPath("/questions", id), out: &out,
	})
	return out, err
}

func (s *QuestionService) Create(ctx context.Context, setID string, in exercise.Question) (exercise.Question, error) {
	const op = "create question"
	in = in.Normalize()
	in.ID = ""
	in.ExerciseSetID = setID
	v := exercise.ValidateID("exerciseSetId", setID)
	v = append(v, in.Validate()...)
	if err := validation(op, v); err != nil {
		return exercise.Question{}, err
	}
	var out exercise.Question
	err := s.c.do(ctx, call{
		op: op, fallback: "failed to create question",
		method: http.MethodPost, path: idPath("/exercise-sets", setID, "questions"),
		body: in, out: &out,
	})
	return out, err
}

func (s *QuestionService) Update(ctx context.Context, id string, in exercise.QuestionPatch) (exercise.Question, error) {
	const op = "update question"
	v := exercise.ValidateID("id", id)
	v = append(v, in.Validate()...)
	if err := validation(op, v); err != nil {
		return exercise.Question{}, err
	}
	var out exercise.Question
	err := s.c.do(ctx, call{
		op: op, fallback: "failed to update question",
		method: http.MethodPut, path: idPath("/questions", id), body: in, out: &out,
	})
	return out, err
}

func (s *QuestionService) Delete(ctx context.Context, id string) error {
	const op = "delete question"
	if err := validation(op, exercise.ValidateID("id", id)); err != nil {
		return err
	}
	return s.c.do(ctx, call{
		op: op, fallback: "failed to delete question",
		method: http.MethodDelete, path: idPath("/questions", id),
	})
}

// Reorder sends the full ordered id list. The server decides the resulting order;
// callers re-fetch instead of reordering locally.
func (s *QuestionService) Reorder(ctx context.Context, setID string, ids []string) error {
	const op = "reorder questions"
	v := exercise.ValidateID("exerciseSetId", setID)
	v = append(v, exercise.ValidateOrder(ids)...)
	if err := validation(op, v); err != nil {
		return err
	}
	return s.c.do(ctx, call{
		op: op, fallback: "failed to reorder questions",
		method: http.MethodPatch, path: idPath("/exercise-sets", setID, "questions", "reorder"),
		body: map[string][]string{"questionIds": ids},
	})
}
