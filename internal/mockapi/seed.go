package mockapi

import "github.com/matuc/lti-exercise-composer/internal/exercise"

// Seed loads a small demo course: one published set with questions and one draft.
func Seed(s *Store) error {
	limit := 30
	calc := s.CreateSet(exercise.CreateExerciseSet{
		Title:        "Derivadas básicas",
		Description:  "Reglas de derivación para polinomios y funciones trigonométricas.",
		Instructions: "Escribe tus respuestas usando notación $\\LaTeX$ cuando sea necesario.",
		Configuration: exercise.Configuration{
			Attempts: 2, TimeLimitMinutes: &limit,
			ShowAnswers: true, ShowExplanations: true, FreeNavigation: true, Autosave: true,
		},
		CourseID: "MAT1610",
	})

	qs := []exercise.Question{
		{
			Title:     "Derivada de una potencia",
			Statement: "¿Cuál es $\\frac{d}{dx} x^3$?",
			Type:      exercise.TypeMultiple,
			Answer: exercise.ChoiceAnswer{
				Options: []string{"$3x^2$", "$x^2$", "$3x$", "$x^3/3$"},
				Correct: []int{0},
			},
			Feedback:         exercise.Feedback{Correct: "Correcto", Incorrect: "Recuerda la regla de la potencia"},
			Points:           2,
			Difficulty:       exercise.DifficultyEasy,
			EstimatedMinutes: 2,
			Tags:             []string{"potencias"},
		},
		{
			Title:            "Pendiente en un punto",
			Statement:        "Evalúa $f'(2)$ para $f(x) = x^2 + 1$.",
			Type:             exercise.TypeNumeric,
			Answer:           exercise.NumericAnswer{Value: 4, Tolerance: 0.01},
			Feedback:         exercise.Feedback{Correct: "Bien", Incorrect: "Deriva y evalúa en x = 2"},
			Points:           3,
			Difficulty:       exercise.DifficultyMedium,
			EstimatedMinutes: 3,
		},
		{
			Title:            "Antiderivada",
			Statement:        "Encuentra una antiderivada de $\\cos x$.",
			Type:             exercise.TypeAntiderivative,
			Answer:           exercise.TextAnswer{Value: "sin(x) + C", Accepted: []string{"sen(x) + C"}},
			Feedback:         exercise.Feedback{Correct: "Muy bien", Incorrect: "Piensa en qué función deriva a coseno"},
			Points:           3,
			Difficulty:       exercise.DifficultyHard,
			EstimatedMinutes: 4,
		},
	}
	for _, q := range qs {
		if _, err := s.CreateQuestion(calc.ID, q.Normalize()); err != nil {
			return err
		}
	}
	if err := s.SetPublished(calc.ID, true); err != nil {
		return err
	}

	s.CreateSet(exercise.CreateExerciseSet{
		Title:         "Conjuntos y funciones",
		Description:   "Operaciones con conjuntos, dominio y recorrido.",
		Configuration: exercise.DefaultConfiguration(),
		CourseID:      "MAT1610",
	})
	return nil
}
