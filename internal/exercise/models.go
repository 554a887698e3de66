package exercise

import (
	"encoding/json"
	"strings"
	"time"
)

// Configuration holds the per-set attempt settings.
type Configuration struct {
	Attempts         int  `json:"intentos"`
	TimeLimitMinutes *int `json:"tiempo,omitempty"` // nil or 0 = no limit
	ShowAnswers      bool `json:"mostrarRespuestas"`
	ShowExplanations bool `json:"mostrarExplicaciones"`
	FreeNavigation   bool `json:"navegacionLibre"`
	Autosave         bool `json:"autoguardado"`
}

// DefaultConfiguration is what the create form starts from.
func DefaultConfiguration() Configuration {
	limit := 60
	return Configuration{
		Attempts:         3,
		TimeLimitMinutes: &limit,
		ShowAnswers:      true,
		ShowExplanations: true,
		FreeNavigation:   true,
		Autosave:         true,
	}
}

// TimeLimit returns the limit and whether one is configured.
func (c Configuration) TimeLimit() (time.Duration, bool) {
	if c.TimeLimitMinutes == nil || *c.TimeLimitMinutes <= 0 {
		return 0, false
	}
	return time.Duration(*c.TimeLimitMinutes) * time.Minute, true
}

type ExerciseSet struct {
	ID            string        `json:"id"`
	Title         string        `json:"titulo"`
	Description   string        `json:"descripcion"`
	Instructions  string        `json:"instrucciones,omitempty"`
	Configuration Configuration `json:"configuracion"`
	Questions     []Question    `json:"preguntas"`
	Status        Status        `json:"-"`
	CourseID      string        `json:"cursoId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (s ExerciseSet) MarshalJSON() ([]byte, error) {
	type alias ExerciseSet
	estado, publicado := s.Status.Wire()
	if s.Questions == nil {
		s.Questions = []Question{}
	}
	return json.Marshal(struct {
		alias
		Estado    string `json:"estado"`
		Publicado bool   `json:"publicado"`
	}{alias(s), estado, publicado})
}

func (s *ExerciseSet) UnmarshalJSON(b []byte) error {
	type alias ExerciseSet
	aux := struct {
		*alias
		Estado    string `json:"estado"`
		Publicado bool   `json:"publicado"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.Status = StatusFromWire(aux.Estado, aux.Publicado)
	return nil
}

// CreateExerciseSet is the POST /exercise-sets body.
type CreateExerciseSet struct {
	Title         string        `json:"titulo"`
	Description   string        `json:"descripcion"`
	Instructions  string        `json:"instrucciones,omitempty"`
	Configuration Configuration `json:"configuracion"`
	CourseID      string        `json:"cursoId,omitempty"`
}

// Normalize trims free-text fields the way the form submits them.
func (c CreateExerciseSet) Normalize() CreateExerciseSet {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Instructions = strings.TrimSpace(c.Instructions)
	c.CourseID = strings.TrimSpace(c.CourseID)
	return c
}

// UpdateExerciseSet is a partial PUT body; nil fields are left untouched.
type UpdateExerciseSet struct {
	Title         *string
	Description   *string
	Instructions  *string
	Configuration *Configuration
	Status        *Status
}

func (u UpdateExerciseSet) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Instructions == nil &&
		u.Configuration == nil && u.Status == nil
}

func (u UpdateExerciseSet) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if u.Title != nil {
		out["titulo"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		out["descripcion"] = strings.TrimSpace(*u.Description)
	}
	if u.Instructions != nil {
		out["instrucciones"] = strings.TrimSpace(*u.Instructions)
	}
	if u.Configuration != nil {
		out["configuracion"] = *u.Configuration
	}
	if u.Status != nil {
		out["estado"], out["publicado"] = u.Status.Wire()
	}
	return json.Marshal(out)
}

func (u *UpdateExerciseSet) UnmarshalJSON(b []byte) error {
	var aux struct {
		Title         *string        `json:"titulo"`
		Description   *string        `json:"descripcion"`
		Instructions  *string        `json:"instrucciones"`
		Configuration *Configuration `json:"configuracion"`
		Estado        *string        `json:"estado"`
		Publicado     *bool          `json:"publicado"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*u = UpdateExerciseSet{
		Title:         aux.Title,
		Description:   aux.Description,
		Instructions:  aux.Instructions,
		Configuration: aux.Configuration,
	}
	if aux.Estado != nil {
		pub := *aux.Estado == EstadoPublished
		if aux.Publicado != nil {
			pub = *aux.Publicado
		}
		st := StatusFromWire(*aux.Estado, pub)
		u.Status = &st
	}
	return nil
}

// Page is one page of a paginated listing. Page is 1-based.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// TotalPages is ceil(total/limit); 0 when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Paginate slices an already filtered and ordered result set.
func Paginate[T any](all []T, page, limit int) Page[T] {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	p := Page[T]{
		Items:      []T{},
		Total:      len(all),
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(len(all), limit),
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return p
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	p.Items = append(p.Items, all[start:end]...)
	return p
}

// Summary counts sets per status for dashboard cards.
type Summary struct {
	Total     int
	Published int
	Draft     int
	Archived  int
}

func Summarize(sets []ExerciseSet) Summary {
	s := Summary{Total: len(sets)}
	for _, e := range sets {
		switch e.Status {
		case StatusPublished:
			s.Published++
		case StatusArchived:
			s.Archived++
		default:
			s.Draft++
		}
	}
	return s
}
