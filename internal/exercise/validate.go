package exercise

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Exercise-set form bounds.
const (
	MinTitleLength        = 3
	MaxTitleLength        = 200
	MinDescriptionLength  = 10
	MaxDescriptionLength  = 1000
	MaxInstructionsLength = 2000
	MinAttempts           = 1
	MaxAttempts           = 10
	MinTimeLimit          = 1
	MaxTimeLimit          = 300 // minutes
	DefaultSetPageSize    = 10
)

// Question form bounds.
const (
	MinStatementLength      = 5
	MaxStatementLength      = 2000
	MaxFeedbackLength       = 500
	MinPoints               = 1
	MaxPoints               = 100
	MinEstimatedMinutes     = 1
	MaxEstimatedMinutes     = 60
	MinChoiceOptions        = 2
	DefaultQuestionPageSize = 20
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Field + ": " + e.Message }

// ValidationErrors is returned before any network call when input is rejected.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Has reports whether any error names field.
func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

// For returns the messages recorded for field.
func (v ValidationErrors) For(field string) []string {
	var out []string
	for _, e := range v {
		if e.Field == field {
			out = append(out, e.Message)
		}
	}
	return out
}

// Err returns nil when there are no errors.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// lengthBetween checks a trimmed, required text field.
func (v *ValidationErrors) lengthBetween(field, s string, min, max int) {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	switch {
	case n == 0:
		v.add(field, "is required")
	case n < min:
		v.add(field, "minimum length is %d", min)
	case n > max:
		v.add(field, "maximum length is %d", max)
	}
}

func (v *ValidationErrors) maxLength(field, s string, max int) {
	if utf8.RuneCountInString(strings.TrimSpace(s)) > max {
		v.add(field, "maximum length is %d", max)
	}
}

func (v *ValidationErrors) intBetween(field string, n, min, max int) {
	switch {
	case n < min:
		v.add(field, "must be at least %d", min)
	case n > max:
		v.add(field, "must be at most %d", max)
	}
}

func (v *ValidationErrors) configuration(c Configuration) {
	v.intBetween("attempts", c.Attempts, MinAttempts, MaxAttempts)
	if c.TimeLimitMinutes != nil {
		v.intBetween("timeLimit", *c.TimeLimitMinutes, MinTimeLimit, MaxTimeLimit)
	}
}

// Validate checks a create request against the form bounds.
func (c CreateExerciseSet) Validate() ValidationErrors {
	var v ValidationErrors
	v.lengthBetween("title", c.Title, MinTitleLength, MaxTitleLength)
	v.lengthBetween("description", c.Description, MinDescriptionLength, MaxDescriptionLength)
	v.maxLength("instructions", c.Instructions, MaxInstructionsLength)
	v.configuration(c.Configuration)
	return v
}

// Validate checks only the fields present in the patch.
func (u UpdateExerciseSet) Validate() ValidationErrors {
	var v ValidationErrors
	if u.Empty() {
		v.add("body", "nothing to update")
		return v
	}
	if u.Title != nil {
		v.lengthBetween("title", *u.Title, MinTitleLength, MaxTitleLength)
	}
	if u.Description != nil {
		v.lengthBetween("description", *u.Description, MinDescriptionLength, MaxDescriptionLength)
	}
	if u.Instructions != nil {
		v.maxLength("instructions", *u.Instructions, MaxInstructionsLength)
	}
	if u.Configuration != nil {
		v.configuration(*u.Configuration)
	}
	return v
}

// Validate checks a question against the form bounds and its type-specific rules.
func (q Question) Validate() ValidationErrors {
	var v ValidationErrors
	v.lengthBetween("title", q.Title, MinTitleLength, MaxTitleLength)
	v.lengthBetween("statement", q.Statement, MinStatementLength, MaxStatementLength)
	if q.Type == "" {
		v.add("type", "is required")
	} else if !q.Type.Valid() {
		v.add("type", "unknown question type %q", q.Type)
	}
	v.feedback(q.Feedback)
	v.intBetween("points", q.Points, MinPoints, MaxPoints)
	v.intBetween("estimatedTime", q.EstimatedMinutes, MinEstimatedMinutes, MaxEstimatedMinutes)
	if q.Difficulty != "" && !q.Difficulty.Valid() {
		v.add("difficulty", "unknown difficulty %q", q.Difficulty)
	}
	if q.Type.Valid() {
		v.answer(q.Type, q.Answer)
	}
	return v
}

func (v *ValidationErrors) feedback(f Feedback) {
	if strings.TrimSpace(f.Correct) == "" {
		v.add("feedback.correct", "is required")
	} else {
		v.maxLength("feedback.correct", f.Correct, MaxFeedbackLength)
	}
	if strings.TrimSpace(f.Incorrect) == "" {
		v.add("feedback.incorrect", "is required")
	} else {
		v.maxLength("feedback.incorrect", f.Incorrect, MaxFeedbackLength)
	}
	v.maxLength("feedback.explanation", f.Explanation, MaxFeedbackLength)
	v.maxLength("feedback.hint", f.Hint, MaxFeedbackLength)
}

func (v *ValidationErrors) answer(t QuestionType, a Answer) {
	fam, _ := t.Family()
	if a == nil {
		v.add("answer", "is required")
		return
	}
	if a.Family() != fam {
		v.add("answer", "does not match question type %q", t)
		return
	}
	switch x := a.(type) {
	case ChoiceAnswer:
		if len(x.Options) < MinChoiceOptions {
			v.add("options", "at least %d options are required", MinChoiceOptions)
		}
		for i, o := range x.Options {
			if strings.TrimSpace(o) == "" {
				v.add("options", "option %d is empty", i+1)
			}
		}
		if len(x.Correct) == 0 {
			v.add("correct", "select at least one correct option")
		}
		for _, c := range x.Correct {
			if c < 0 || c >= len(x.Options) {
				v.add("correct", "index %d is out of range", c)
			}
		}
	case NumericAnswer:
		if x.Tolerance < 0 {
			v.add("tolerance", "must not be negative")
		}
	case TextAnswer:
		if strings.TrimSpace(x.Value) == "" {
			v.add("answer", "is required")
		}
	case SetAnswer:
		if strings.TrimSpace(x.Value) == "" {
			v.add("answer", "is required")
		}
	}
}

// Validate checks only the fields present in the patch.
func (p QuestionPatch) Validate() ValidationErrors {
	var v ValidationErrors
	if p.Title != nil {
		v.lengthBetween("title", *p.Title, MinTitleLength, MaxTitleLength)
	}
	if p.Statement != nil {
		v.lengthBetween("statement", *p.Statement, MinStatementLength, MaxStatementLength)
	}
	if p.Feedback != nil {
		v.feedback(*p.Feedback)
	}
	if p.Points != nil {
		v.intBetween("points", *p.Points, MinPoints, MaxPoints)
	}
	if p.EstimatedMinutes != nil {
		v.intBetween("estimatedTime", *p.EstimatedMinutes, MinEstimatedMinutes, MaxEstimatedMinutes)
	}
	if p.Difficulty != nil && !p.Difficulty.Valid() {
		v.add("difficulty", "unknown difficulty %q", *p.Difficulty)
	}
	switch {
	case p.Type != nil && !p.Type.Valid():
		v.add("type", "unknown question type %q", *p.Type)
	case p.Type != nil:
		v.answer(*p.Type, p.Answer)
	case p.Answer != nil:
		v.add("type", "is required when changing the answer")
	}
	return v
}

// ValidateOrder checks a reorder request: non-empty, no blanks, no duplicates.
func ValidateOrder(ids []string) ValidationErrors {
	var v ValidationErrors
	if len(ids) == 0 {
		v.add("questionIds", "is required")
		return v
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			v.add("questionIds", "contains a blank id")
			continue
		}
		if _, dup := seen[id]; dup {
			v.add("questionIds", "duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return v
}

// ValidateID rejects blank identifiers.
func ValidateID(field, id string) ValidationErrors {
	var v ValidationErrors
	if strings.TrimSpace(id) == "" {
		v.add(field, "is required")
	}
	return v
}
