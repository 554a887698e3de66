package exercise

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestStatusFromWire(t *testing.T) {
	cases := []struct {
		estado    string
		publicado bool
		want      Status
	}{
		{"published", true, StatusPublished},
		{"published", false, StatusDraft},
		{"draft", true, StatusDraft},
		{"archived", true, StatusArchived},
		{"archived", false, StatusArchived},
		{"", false, StatusDraft},
		{"weird", true, StatusDraft},
	}
	for _, tc := range cases {
		if got := StatusFromWire(tc.estado, tc.publicado); got != tc.want {
			t.Fatalf("(%q,%v) = %v, want %v", tc.estado, tc.publicado, got, tc.want)
		}
	}
	if StatusDraft.Visible() || StatusArchived.Visible() || !StatusPublished.Visible() {
		t.Fatalf("only published is visible")
	}
}

func TestExerciseSet_JSONCollapsesStatus(t *testing.T) {
	raw := `{"id":"es-1","titulo":"Sets","descripcion":"Intro to sets","estado":"published","publicado":false,
		"configuracion":{"intentos":2,"tiempo":15,"mostrarRespuestas":true},"preguntas":[]}`
	var s ExerciseSet
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatal(err)
	}
	if s.Status != StatusDraft {
		t.Fatalf("disagreeing pair must decode to draft, got %v", s.Status)
	}
	if d, ok := s.Configuration.TimeLimit(); !ok || d.Minutes() != 15 {
		t.Fatalf("time limit = %v %v", d, ok)
	}

	s.Status = StatusPublished
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"estado":"published"`) || !strings.Contains(string(out), `"publicado":true`) {
		t.Fatalf("canonical pair missing: %s", out)
	}
}

func TestQuestion_WireVariants(t *testing.T) {
	raw := `{"id":"q1","titulo":"Pick","enunciado":"Pick one","tipo":"multiple","orden":1,
		"config":{"opciones":["a","b","c"],"correctas":[2]},"respuestaCorrecta":2,
		"feedback":{"correcto":"yes","incorrecto":"no"},"puntos":5,"dificultad":"facil","tiempoEstimado":3,"tags":["x"]}`
	var q Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatal(err)
	}
	want := ChoiceAnswer{Options: []string{"a", "b", "c"}, Correct: []int{2}}
	if !reflect.DeepEqual(q.Answer, want) {
		t.Fatalf("answer = %#v", q.Answer)
	}

	raw = `{"id":"q2","tipo":"numero","config":{"tolerancia":0.5},"respuestaCorrecta":"3.25"}`
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatal(err)
	}
	if got, ok := q.Answer.(NumericAnswer); !ok || got.Value != 3.25 || got.Tolerance != 0.5 {
		t.Fatalf("numeric = %#v", q.Answer)
	}

	raw = `{"id":"q3","tipo":"ecuacion","config":{"caseSensitive":true,"respuestasAceptadas":["x=2"]},"respuestaCorrecta":"x = 2"}`
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatal(err)
	}
	if got, ok := q.Answer.(TextAnswer); !ok || !got.CaseSensitive || got.Value != "x = 2" || len(got.Accepted) != 1 {
		t.Fatalf("text = %#v", q.Answer)
	}

	raw = `{"id":"q4","tipo":"hologram"}`
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatal(err)
	}
	if q.Answer != nil {
		t.Fatalf("unknown type should decode without an answer")
	}
}

func TestQuestion_MarshalFlattensVariant(t *testing.T) {
	q := Question{ID: "q1", Type: TypeNumeric, Answer: NumericAnswer{Value: 9.81, Tolerance: 0.01}}
	b, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["respuestaCorrecta"] != 9.81 {
		t.Fatalf("respuestaCorrecta = %v", m["respuestaCorrecta"])
	}
	cfg := m["config"].(map[string]any)
	if cfg["tolerancia"] != 0.01 {
		t.Fatalf("tolerancia = %v", cfg["tolerancia"])
	}
}

func TestDefaultAnswer_Table(t *testing.T) {
	for _, typ := range QuestionTypes {
		a, err := DefaultAnswer(typ)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		fam, _ := typ.Family()
		if a.Family() != fam {
			t.Fatalf("%s: family %v, want %v", typ, a.Family(), fam)
		}
	}
	if a, _ := DefaultAnswer(TypeNumber); a.(NumericAnswer).Tolerance != 0.01 {
		t.Fatalf("numeric default tolerance")
	}
	if a, _ := DefaultAnswer(TypeMultiple); len(a.(ChoiceAnswer).Options) != 4 {
		t.Fatalf("multiple default options")
	}
	if _, err := DefaultAnswer("nope"); err == nil {
		t.Fatalf("unknown type must fail")
	}
}

func TestPaginate_ReassemblesWithoutGapsOrDuplicates(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 47} {
		for _, limit := range []int{1, 3, 10} {
			all := make([]int, n)
			for i := range all {
				all[i] = i
			}
			first := Paginate(all, 1, limit)
			want := (n + limit - 1) / limit
			if first.TotalPages != want {
				t.Fatalf("n=%d l=%d pages=%d want %d", n, limit, first.TotalPages, want)
			}
			var got []int
			for p := 1; p <= first.TotalPages; p++ {
				got = append(got, Paginate(all, p, limit).Items...)
			}
			if len(got) != n {
				t.Fatalf("n=%d l=%d reassembled %d", n, limit, len(got))
			}
			for i, v := range got {
				if v != i {
					t.Fatalf("n=%d l=%d position %d = %d", n, limit, i, v)
				}
			}
		}
	}
}

func TestUpdateExerciseSet_JSON(t *testing.T) {
	title := "  New title "
	archived := StatusArchived
	b, err := json.Marshal(UpdateExerciseSet{Title: &title, Status: &archived})
	if err != nil {
		t.Fatal(err)
	}
	var back UpdateExerciseSet
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Title == nil || *back.Title != "New title" {
		t.Fatalf("title = %v", back.Title)
	}
	if back.Status == nil || *back.Status != StatusArchived {
		t.Fatalf("status = %v", back.Status)
	}
	if back.Description != nil || back.Configuration != nil {
		t.Fatalf("absent fields must stay nil")
	}
}
