package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

var (
	ErrNotFound = errors.New("not found")
	ErrArchived = errors.New("archived exercise sets cannot be published")
	ErrBadOrder = errors.New("question ids do not belong to this exercise set")
)

// SetFilter narrows ListSets. Zero values match everything.
type SetFilter struct {
	Status   *exercise.Status
	Search   string
	CourseID string
}

type setRecord struct {
	set     exercise.ExerciseSet
	seq     int
	deleted bool
}

// Store is an in-memory stand-in for the exercise backend.
type Store struct {
	mu        sync.RWMutex
	sets      map[string]*setRecord
	questions map[string]exercise.Question
	seq       int
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		sets:      map[string]*setRecord{},
		questions: map[string]exercise.Question{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListSets returns non-deleted sets, newest first.
func (s *Store) ListSets(f SetFilter, page, limit int) exercise.Page[exercise.ExerciseSet] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	recs := make([]*setRecord, 0, len(s.sets))
	for _, r := range s.sets {
		if r.deleted {
			continue
		}
		if f.Status != nil && r.set.Status != *f.Status {
			continue
		}
		if f.CourseID != "" && r.set.CourseID != f.CourseID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.set.Title), search) &&
			!strings.Contains(strings.ToLower(r.set.Description), search) {
			continue
		}
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	all := make([]exercise.ExerciseSet, len(recs))
	for i, r := range recs {
		all[i] = s.withQuestions(r.set)
	}
	return exercise.Paginate(all, page, limit)
}

func (s *Store) GetSet(id string) (exercise.ExerciseSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sets[id]
	if !ok || r.deleted {
		return exercise.ExerciseSet{}, ErrNotFound
	}
	return s.withQuestions(r.set), nil
}

func (s *Store) CreateSet(in exercise.CreateExerciseSet) exercise.ExerciseSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.seq++
	set := exercise.ExerciseSet{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Description:   in.Description,
		Instructions:  in.Instructions,
		Configuration: in.Configuration,
		Status:        exercise.StatusDraft,
		CourseID:      in.CourseID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.sets[set.ID] = &setRecord{set: set, seq: s.seq}
	return set
}

func (s *Store) UpdateSet(id string, u exercise.UpdateExerciseSet) (exercise.ExerciseSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sets[id]
	if !ok || r.deleted {
		return exercise.ExerciseSet{}, ErrNotFound
	}
	if u.Title != nil {
		r.set.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		r.set.Description = strings.TrimSpace(*u.Description)
	}
	if u.Instructions != nil {
		r.set.Instructions = strings.TrimSpace(*u.Instructions)
	}
	if u.Configuration != nil {
		r.set.Configuration = *u.Configuration
	}
	if u.Status != nil {
		r.set.Status = *u.Status
	}
	r.set.UpdatedAt = s.now()
	return s.withQuestions(r.set), nil
}

// DeleteSet is a soft delete; the set disappears from every read.
func (s *Store) DeleteSet(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sets[id]
	if !ok || r.deleted {
		return ErrNotFound
	}
	r.deleted = true
	r.set.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetPublished(id string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sets[id]
	if !ok || r.deleted {
		return ErrNotFound
	}
	if r.set.Status == exercise.StatusArchived {
		return ErrArchived
	}
	r.set.Status = exercise.StatusDraft
	if published {
		r.set.Status = exercise.StatusPublished
	}
	r.set.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListQuestions(setID string, page, limit int) (exercise.Page[exercise.Question], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sets[setID]
	if !ok || r.deleted {
		return exercise.Page[exercise.Question]{}, ErrNotFound
	}
	return exercise.Paginate(s.orderedQuestions(setID), page, limit), nil
}

func (s *Store) GetQuestion(id string) (exercise.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return exercise.Question{}, ErrNotFound
	}
	return q, nil
}

// CreateQuestion appends q to the end of the set.
func (s *Store) CreateQuestion(setID string, q exercise.Question) (exercise.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sets[setID]
	if !ok || r.deleted {
		return exercise.Question{}, ErrNotFound
	}
	now := s.now()
	q.ID = uuid.NewString()
	q.ExerciseSetID = setID
	q.Position = len(s.orderedQuestions(setID)) + 1
	q.CreatedAt, q.UpdatedAt = now, now
	s.questions[q.ID] = q
	r.set.UpdatedAt = now
	return q, nil
}

func (s *Store) UpdateQuestion(id string, p exercise.QuestionPatch) (exercise.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return exercise.Question{}, ErrNotFound
	}
	q = p.Apply(q)
	q.UpdatedAt = s.now()
	s.questions[id] = q
	return q, nil
}

func (s *Store) DeleteQuestion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.questions, id)
	s.renumber(q.ExerciseSetID, nil)
	return nil
}

// Reorder places ids first, in the given order; questions not listed keep
// their relative order after them.
func (s *Store) Reorder(setID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sets[setID]
	if !ok || r.deleted {
		return ErrNotFound
	}
	for _, id := range ids {
		q, ok := s.questions[id]
		if !ok || q.ExerciseSetID != setID {
			return ErrBadOrder
		}
	}
	s.renumber(setID, ids)
	r.set.UpdatedAt = s.now()
	return nil
}

func (s *Store) renumber(setID string, first []string) {
	listed := make(map[string]bool, len(first))
	order := make([]string, 0, len(first))
	for _, id := range first {
		listed[id] = true
		order = append(order, id)
	}
	for _, q := range s.orderedQuestions(setID) {
		if !listed[q.ID] {
			order = append(order, q.ID)
		}
	}
	for i, id := range order {
		q := s.questions[id]
		q.Position = i + 1
		s.questions[id] = q
	}
}

// orderedQuestions must be called with mu held.
func (s *Store) orderedQuestions(setID string) []exercise.Question {
	var out []exercise.Question
	for _, q := range s.questions {
		if q.ExerciseSetID == setID {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) withQuestions(set exercise.ExerciseSet) exercise.ExerciseSet {
	set.Questions = s.orderedQuestions(set.ID)
	if set.Questions == nil {
		set.Questions = []exercise.Question{}
	}
	return set
}
