package exercise

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type QuestionType string

const (
	TypeMultiple       QuestionType = "multiple"
	TypeTrueFalse      QuestionType = "verdadero_falso"
	TypeShortText      QuestionType = "texto_corto"
	TypeNumeric        QuestionType = "numerico"
	TypeNumber         QuestionType = "numero" // legacy alias of numerico
	TypeMath           QuestionType = "matematica"
	TypeFormula        QuestionType = "formula"
	TypeEquation       QuestionType = "ecuacion"
	TypeAntiderivative QuestionType = "antiderivada"
	TypeSet            QuestionType = "conjunto"
	TypePoint          QuestionType = "punto"
)

// QuestionTypes lists every type in form order.
var QuestionTypes = []QuestionType{
	TypeMultiple, TypeTrueFalse, TypeShortText, TypeNumeric, TypeNumber,
	TypeMath, TypeFormula, TypeEquation, TypeAntiderivative, TypeSet, TypePoint,
}

// Family groups question types that share an answer shape.
type Family int

const (
	FamilyChoice Family = iota + 1
	FamilyNumeric
	FamilyText
	FamilySet
)

var typeTable = map[QuestionType]struct {
	family Family
	label  string
}{
	TypeMultiple:       {FamilyChoice, "Multiple choice"},
	TypeTrueFalse:      {FamilyChoice, "True/False"},
	TypeShortText:      {FamilyText, "Short text"},
	TypeNumeric:        {FamilyNumeric, "Numeric"},
	TypeNumber:         {FamilyNumeric, "Number"},
	TypeMath:           {FamilyText, "Math expression"},
	TypeFormula:        {FamilyText, "Formula"},
	TypeEquation:       {FamilyText, "Equation"},
	TypeAntiderivative: {FamilyText, "Antiderivative"},
	TypeSet:            {FamilySet, "Set"},
	TypePoint:          {FamilySet, "Point"},
}

func (t QuestionType) Family() (Family, bool) {
	e, ok := typeTable[t]
	return e.family, ok
}

func (t QuestionType) Valid() bool {
	_, ok := typeTable[t]
	return ok
}

func (t QuestionType) Label() string {
	if e, ok := typeTable[t]; ok {
		return e.label
	}
	return string(t)
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "facil"
	DifficultyMedium Difficulty = "medio"
	DifficultyHard   Difficulty = "dificil"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "Easy"
	case DifficultyMedium:
		return "Medium"
	case DifficultyHard:
		return "Hard"
	}
	return string(d)
}

// Answer is the type-specific configuration and correct answer of a question.
// Implementations: ChoiceAnswer, NumericAnswer, TextAnswer, SetAnswer.
type Answer interface {
	Family() Family
}

type ChoiceAnswer struct {
	Options []string
	Correct []int // indexes into Options
}

type NumericAnswer struct {
	Value     float64
	Tolerance float64
}

type TextAnswer struct {
	Value         string
	Accepted      []string
	CaseSensitive bool
}

type SetAnswer struct {
	Value    string
	Accepted []string
}

func (ChoiceAnswer) Family() Family  { return FamilyChoice }
func (NumericAnswer) Family() Family { return FamilyNumeric }
func (TextAnswer) Family() Family    { return FamilyText }
func (SetAnswer) Family() Family     { return FamilySet }

// DefaultAnswer is the fixed per-type starting configuration used by the question form.
func DefaultAnswer(t QuestionType) (Answer, error) {
	switch t {
	case TypeMultiple:
		return ChoiceAnswer{Options: []string{"Option A", "Option B", "Option C", "Option D"}, Correct: []int{0}}, nil
	case TypeTrueFalse:
		return ChoiceAnswer{Options: []string{"Verdadero", "Falso"}, Correct: []int{0}}, nil
	case TypeNumeric, TypeNumber:
		return NumericAnswer{Tolerance: 0.01}, nil
	case TypeShortText, TypeMath, TypeFormula, TypeEquation, TypeAntiderivative:
		return TextAnswer{Accepted: []string{}}, nil
	case TypeSet, TypePoint:
		return SetAnswer{Accepted: []string{}}, nil
	}
	return nil, fmt.Errorf("unknown question type %q", t)
}

type Feedback struct {
	Correct     string `json:"correcto"`
	Incorrect   string `json:"incorrecto"`
	Explanation string `json:"explicacion,omitempty"`
	Hint        string `json:"pista,omitempty"`
}

type Question struct {
	ID               string
	ExerciseSetID    string
	Title            string
	Statement        string // may embed LaTeX
	Type             QuestionType
	Position         int
	Answer           Answer
	Feedback         Feedback
	Points           int
	Difficulty       Difficulty
	EstimatedMinutes int
	Tags             []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewQuestion returns a question of type t prefilled with form defaults.
func NewQuestion(t QuestionType) (Question, error) {
	a, err := DefaultAnswer(t)
	if err != nil {
		return Question{}, err
	}
	return Question{
		Type:             t,
		Answer:           a,
		Points:           1,
		Difficulty:       DifficultyMedium,
		EstimatedMinutes: 2,
		Tags:             []string{},
	}, nil
}

// Normalize trims text and drops blank tags.
func (q Question) Normalize() Question {
	q.Title = strings.TrimSpace(q.Title)
	q.Statement = strings.TrimSpace(q.Statement)
	q.Feedback.Correct = strings.TrimSpace(q.Feedback.Correct)
	q.Feedback.Incorrect = strings.TrimSpace(q.Feedback.Incorrect)
	q.Feedback.Explanation = strings.TrimSpace(q.Feedback.Explanation)
	q.Feedback.Hint = strings.TrimSpace(q.Feedback.Hint)
	tags := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	q.Tags = tags
	return q
}

// ---- wire format ----

type questionConfig struct {
	Options       []string `json:"opciones,omitempty"`
	Correct       []int    `json:"correctas,omitempty"`
	Tolerance     *float64 `json:"tolerancia,omitempty"`
	CaseSensitive *bool    `json:"caseSensitive,omitempty"`
	Accepted      []string `json:"respuestasAceptadas,omitempty"`
}

type questionWire struct {
	ID               string          `json:"id,omitempty"`
	ExerciseSetID    string          `json:"exerciseSetId,omitempty"`
	Title            string          `json:"titulo"`
	Statement        string          `json:"enunciado"`
	Type             QuestionType    `json:"tipo"`
	Position         int             `json:"orden"`
	Config           questionConfig  `json:"config"`
	Correct          json.RawMessage `json:"respuestaCorrecta,omitempty"`
	Feedback         Feedback        `json:"feedback"`
	Points           int             `json:"puntos"`
	Difficulty       Difficulty      `json:"dificultad,omitempty"`
	EstimatedMinutes int             `json:"tiempoEstimado"`
	Tags             []string        `json:"tags"`
	CreatedAt        *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time      `json:"updatedAt,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{
		ID:               q.ID,
		ExerciseSetID:    q.ExerciseSetID,
		Title:            q.Title,
		Statement:        q.Statement,
		Type:             q.Type,
		Position:         q.Position,
		Feedback:         q.Feedback,
		Points:           q.Points,
		Difficulty:       q.Difficulty,
		EstimatedMinutes: q.EstimatedMinutes,
		Tags:             q.Tags,
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	if !q.CreatedAt.IsZero() {
		w.CreatedAt = &q.CreatedAt
	}
	if !q.UpdatedAt.IsZero() {
		w.UpdatedAt = &q.UpdatedAt
	}
	cfg, correct, err := encodeAnswer(q.Answer)
	if err != nil {
		return nil, err
	}
	w.Config = cfg
	w.Correct = correct
	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(b []byte) error {
	var w questionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*q = Question{
		ID:               w.ID,
		ExerciseSetID:    w.ExerciseSetID,
		Title:            w.Title,
		Statement:        w.Statement,
		Type:             w.Type,
		Position:         w.Position,
		Feedback:         w.Feedback,
		Points:           w.Points,
		Difficulty:       w.Difficulty,
		EstimatedMinutes: w.EstimatedMinutes,
		Tags:             w.Tags,
	}
	if w.CreatedAt != nil {
		q.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		q.UpdatedAt = *w.UpdatedAt
	}
	a, err := decodeAnswer(w.Type, w.Config, w.Correct)
	if err != nil {
		return fmt.Errorf("question %s: %w", w.ID, err)
	}
	q.Answer = a
	return nil
}

func encodeAnswer(a Answer) (questionConfig, json.RawMessage, error) {
	var (
		cfg     questionConfig
		correct any
	)
	switch v := a.(type) {
	case nil:
		return cfg, nil, nil
	case ChoiceAnswer:
		cfg.Options = v.Options
		cfg.Correct = v.Correct
		correct = 0
		if len(v.Correct) > 0 {
			correct = v.Correct[0]
		}
	case NumericAnswer:
		tol := v.Tolerance
		cfg.Tolerance = &tol
		correct = v.Value
	case TextAnswer:
		cs := v.CaseSensitive
		cfg.CaseSensitive = &cs
		cfg.Accepted = v.Accepted
		correct = v.Value
	case SetAnswer:
		cfg.Accepted = v.Accepted
		correct = v.Value
	default:
		return cfg, nil, fmt.Errorf("unsupported answer %T", a)
	}
	raw, err := json.Marshal(correct)
	return cfg, raw, err
}

// decodeAnswer rebuilds the variant for t. Unknown types decode to a nil Answer
// so listings still render; validation reports them.
func decodeAnswer(t QuestionType, cfg questionConfig, raw json.RawMessage) (Answer, error) {
	fam, ok := t.Family()
	if !ok {
		return nil, nil
	}
	switch fam {
	case FamilyChoice:
		a := ChoiceAnswer{Options: cfg.Options, Correct: cfg.Correct}
		if len(a.Correct) == 0 {
			if n, ok := rawNumber(raw); ok {
				a.Correct = []int{int(n)}
			}
		}
		return a, nil
	case FamilyNumeric:
		a := NumericAnswer{}
		if cfg.Tolerance != nil {
			a.Tolerance = *cfg.Tolerance
		}
		if len(raw) > 0 && string(raw) != "null" {
			n, ok := rawNumber(raw)
			if !ok {
				return nil, fmt.Errorf("respuestaCorrecta is not a number: %s", raw)
			}
			a.Value = n
		}
		return a, nil
	case FamilyText:
		a := TextAnswer{Value: rawString(raw), Accepted: cfg.Accepted}
		if cfg.CaseSensitive != nil {
			a.CaseSensitive = *cfg.CaseSensitive
		}
		return a, nil
	default:
		return SetAnswer{Value: rawString(raw), Accepted: cfg.Accepted}, nil
	}
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// QuestionPatch is a partial PUT /questions/{id} body. Type and Answer travel together.
type QuestionPatch struct {
	Title            *string
	Statement        *string
	Position         *int
	Type             *QuestionType
	Answer           Answer
	Feedback         *Feedback
	Points           *int
	Difficulty       *Difficulty
	EstimatedMinutes *int
	Tags             []string
}

func (p QuestionPatch) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if p.Title != nil {
		out["titulo"] = strings.TrimSpace(*p.Title)
	}
	if p.Statement != nil {
		out["enunciado"] = strings.TrimSpace(*p.Statement)
	}
	if p.Position != nil {
		out["orden"] = *p.Position
	}
	if p.Type != nil {
		out["tipo"] = *p.Type
	}
	if p.Answer != nil {
		cfg, correct, err := encodeAnswer(p.Answer)
		if err != nil {
			return nil, err
		}
		out["config"] = cfg
		out["respuestaCorrecta"] = correct
	}
	if p.Feedback != nil {
		out["feedback"] = *p.Feedback
	}
	if p.Points != nil {
		out["puntos"] = *p.Points
	}
	if p.Difficulty != nil {
		out["dificultad"] = *p.Difficulty
	}
	if p.EstimatedMinutes != nil {
		out["tiempoEstimado"] = *p.EstimatedMinutes
	}
	if p.Tags != nil {
		out["tags"] = p.Tags
	}
	return json.Marshal(out)
}

func (p *QuestionPatch) UnmarshalJSON(b []byte) error {
	var aux struct {
		Title            *string         `json:"titulo"`
		Statement        *string         `json:"enunciado"`
		Position         *int            `json:"orden"`
		Type             *QuestionType   `json:"tipo"`
		Config           *questionConfig `json:"config"`
		Correct          json.RawMessage `json:"respuestaCorrecta"`
		Feedback         *Feedback       `json:"feedback"`
		Points           *int            `json:"puntos"`
		Difficulty       *Difficulty     `json:"dificultad"`
		EstimatedMinutes *int            `json:"tiempoEstimado"`
		Tags             []string        `json:"tags"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = QuestionPatch{
		Title:            aux.Title,
		Statement:        aux.Statement,
		Position:         aux.Position,
		Type:             aux.Type,
		Feedback:         aux.Feedback,
		Points:           aux.Points,
		Difficulty:       aux.Difficulty,
		EstimatedMinutes: aux.EstimatedMinutes,
		Tags:             aux.Tags,
	}
	if aux.Type != nil && aux.Config != nil {
		a, err := decodeAnswer(*aux.Type, *aux.Config, aux.Correct)
		if err != nil {
			return err
		}
		p.Answer = a
	}
	return nil
}

// Apply merges the patch into q.
func (p QuestionPatch) Apply(q Question) Question {
	if p.Title != nil {
		q.Title = strings.TrimSpace(*p.Title)
	}
	if p.Statement != nil {
		q.Statement = strings.TrimSpace(*p.Statement)
	}
	if p.Position != nil {
		q.Position = *p.Position
	}
	if p.Type != nil {
		q.Type = *p.Type
	}
	if p.Answer != nil {
		q.Answer = p.Answer
	}
	if p.Feedback != nil {
		q.Feedback = *p.Feedback
	}
	if p.Points != nil {
		q.Points = *p.Points
	}
	if p.Difficulty != nil {
		q.Difficulty = *p.Difficulty
	}
	if p.EstimatedMinutes != nil {
		q.EstimatedMinutes = *p.EstimatedMinutes
	}
	if p.Tags != nil {
		q.Tags = p.Tags
	}
	return q
}
