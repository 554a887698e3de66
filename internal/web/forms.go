package web

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

// formErrors splits a failed call into per-field errors and a general message.
func formErrors(err error) (exercise.ValidationErrors, string) {
	var v exercise.ValidationErrors
	if errors.As(err, &v) {
		return v, "Please correct the highlighted fields."
	}
	return nil, apiclient.Message(err)
}

func checkbox(f url.Values, name string) bool {
	switch f.Get(name) {
	case "on", "true", "1":
		return true
	}
	return false
}

// atoiOr parses a trimmed integer; malformed input yields bad so validation reports it.
func atoiOr(s string, bad int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return bad
	}
	return n
}

func lines(s string) []string {
	out := []string{}
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func csv(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setForm is the create/edit exercise form as typed by the user.
type setForm struct {
	Title         string
	Description   string
	Instructions  string
	CourseID      string
	Status        string
	Configuration exercise.Configuration
}

func setFormFrom(s exercise.ExerciseSet) setForm {
	return setForm{
		Title:         s.Title,
		Description:   s.Description,
		Instructions:  s.Instructions,
		CourseID:      s.CourseID,
		Status:        s.Status.String(),
		Configuration: s.Configuration,
	}
}

func parseSetForm(f url.Values) setForm {
	c := exercise.Configuration{
		Attempts:         atoiOr(f.Get("intentos"), 0),
		ShowAnswers:      checkbox(f, "mostrarRespuestas"),
		ShowExplanations: checkbox(f, "mostrarExplicaciones"),
		FreeNavigation:   checkbox(f, "navegacionLibre"),
		Autosave:         checkbox(f, "autoguardado"),
	}
	if raw := strings.TrimSpace(f.Get("tiempo")); raw != "" {
		n := atoiOr(raw, 0)
		c.TimeLimitMinutes = &n
	}
	return setForm{
		Title:         f.Get("titulo"),
		Description:   f.Get("descripcion"),
		Instructions:  f.Get("instrucciones"),
		CourseID:      f.Get("cursoId"),
		Status:        f.Get("estado"),
		Configuration: c,
	}
}

func (sf setForm) create() exercise.CreateExerciseSet {
	return exercise.CreateExerciseSet{
		Title:         sf.Title,
		Description:   sf.Description,
		Instructions:  sf.Instructions,
		Configuration: sf.Configuration,
		CourseID:      sf.CourseID,
	}.Normalize()
}

// update sends every field the edit form shows.
func (sf setForm) update() exercise.UpdateExerciseSet {
	c := sf.create()
	cfg := c.Configuration
	u := exercise.UpdateExerciseSet{
		Title:         &c.Title,
		Description:   &c.Description,
		Instructions:  &c.Instructions,
		Configuration: &cfg,
	}
	if st, ok := exercise.ParseStatus(sf.Status); ok {
		u.Status = &st
	}
	return u
}

// questionForm is the question editor. Choice options keep their form slots so
// the "correct" checkboxes line up with them.
type questionForm struct {
	Question      exercise.Question
	Options       []string
	Correct       []int
	Value         string
	Tolerance     string
	Accepted      string
	CaseSensitive bool
	Tags          string
}

func questionFormFrom(q exercise.Question) questionForm {
	qf := questionForm{Question: q, Tags: strings.Join(q.Tags, ", ")}
	switch a := q.Answer.(type) {
	case exercise.ChoiceAnswer:
		// two blank slots for adding options
		qf.Options = append(append([]string{}, a.Options...), "", "")
		qf.Correct = append([]int{}, a.Correct...)
	case exercise.NumericAnswer:
		qf.Value = strconv.FormatFloat(a.Value, 'f', -1, 64)
		qf.Tolerance = strconv.FormatFloat(a.Tolerance, 'f', -1, 64)
	case exercise.TextAnswer:
		qf.Value = a.Value
		qf.Accepted = strings.Join(a.Accepted, "\n")
		qf.CaseSensitive = a.CaseSensitive
	case exercise.SetAnswer:
		qf.Value = a.Value
		qf.Accepted = strings.Join(a.Accepted, "\n")
	}
	return qf
}

// parseQuestionForm reads the editor. Number parse failures are returned as
// field errors alongside the question.
func parseQuestionForm(f url.Values) (exercise.Question, exercise.ValidationErrors) {
	var bad exercise.ValidationErrors
	t := exercise.QuestionType(strings.TrimSpace(f.Get("tipo")))
	q := exercise.Question{
		Title:            f.Get("titulo"),
		Statement:        f.Get("enunciado"),
		Type:             t,
		Points:           atoiOr(f.Get("puntos"), 0),
		Difficulty:       exercise.Difficulty(f.Get("dificultad")),
		EstimatedMinutes: atoiOr(f.Get("tiempoEstimado"), 0),
		Tags:             csv(f.Get("tags")),
		Feedback: exercise.Feedback{
			Correct:     f.Get("correcto"),
			Incorrect:   f.Get("incorrecto"),
			Explanation: f.Get("explicacion"),
			Hint:        f.Get("pista"),
		},
	}
	fam, _ := t.Family()
	switch fam {
	case exercise.FamilyChoice:
		q.Answer = parseChoice(f["opcion"], f["correcta"])
	case exercise.FamilyNumeric:
		a := exercise.NumericAnswer{}
		var err error
		if a.Value, err = strconv.ParseFloat(strings.TrimSpace(f.Get("valor")), 64); err != nil {
			bad = append(bad, exercise.ValidationError{Field: "answer", Message: "must be a number"})
		}
		if a.Tolerance, err = strconv.ParseFloat(strings.TrimSpace(f.Get("tolerancia")), 64); err != nil {
			bad = append(bad, exercise.ValidationError{Field: "tolerance", Message: "must be a number"})
		}
		q.Answer = a
	case exercise.FamilyText:
		q.Answer = exercise.TextAnswer{
			Value:         strings.TrimSpace(f.Get("valor")),
			Accepted:      lines(f.Get("aceptadas")),
			CaseSensitive: checkbox(f, "caseSensitive"),
		}
	case exercise.FamilySet:
		q.Answer = exercise.SetAnswer{
			Value:    strings.TrimSpace(f.Get("valor")),
			Accepted: lines(f.Get("aceptadas")),
		}
	}
	return q.Normalize(), bad
}

// parseChoice drops blank option slots and remaps the checked indexes.
func parseChoice(opts, checked []string) exercise.ChoiceAnswer {
	a := exercise.ChoiceAnswer{Options: []string{}, Correct: []int{}}
	remap := map[int]int{}
	for i, o := range opts {
		if o = strings.TrimSpace(o); o != "" {
			remap[i] = len(a.Options)
			a.Options = append(a.Options, o)
		}
	}
	for _, c := range checked {
		i, err := strconv.Atoi(c)
		if err != nil {
			continue
		}
		if j, ok := remap[i]; ok {
			a.Correct = append(a.Correct, j)
		}
	}
	return a
}

// patchFrom turns a fully edited question into a patch carrying every field.
func patchFrom(q exercise.Question) exercise.QuestionPatch {
	fb := q.Feedback
	return exercise.QuestionPatch{
		Title:            &q.Title,
		Statement:        &q.Statement,
		Type:             &q.Type,
		Answer:           q.Answer,
		Feedback:         &fb,
		Points:           &q.Points,
		Difficulty:       &q.Difficulty,
		EstimatedMinutes: &q.EstimatedMinutes,
		Tags:             q.Tags,
	}
}
