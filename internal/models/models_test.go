package models

import (
	"reflect"
	"testing"
)

func TestParseTurnInput(t *testing.T) {
	in := ParseTurnInput("just a plain reply")
	if in.IsForm() || in.Raw != "just a plain reply" {
		t.Errorf("plain text misparsed: %+v", in)
	}

	in = ParseTurnInput(`{"email": "a@b.com", "cigarettes_per_day": 12, "consented": true}`)
	if !in.IsForm() {
		t.Fatal("JSON submission not recognized as a form")
	}
	if got := in.FieldString("email"); got != "a@b.com" {
		t.Errorf("string field = %q", got)
	}
	if got := in.FieldString("cigarettes_per_day"); got != "12" {
		t.Errorf("number field = %q", got)
	}
	if got := in.FieldString("consented"); got != "true" {
		t.Errorf("bool field = %q", got)
	}
	if got := in.FieldString("absent"); got != "" {
		t.Errorf("absent field = %q", got)
	}

	// Malformed JSON falls back to raw text.
	in = ParseTurnInput(`{"email": `)
	if in.IsForm() {
		t.Error("malformed JSON must stay raw text")
	}
}

func TestFieldStrings(t *testing.T) {
	in := ParseTurnInput(`{"days": ["Monday", " Tuesday ", ""], "time": "Morning"}`)
	if got := in.FieldStrings("days"); !reflect.DeepEqual(got, []string{"Monday", "Tuesday"}) {
		t.Errorf("list field = %v", got)
	}
	if got := in.FieldStrings("time"); !reflect.DeepEqual(got, []string{"Morning"}) {
		t.Errorf("single value should wrap into a slice, got %v", got)
	}
	if got := in.FieldStrings("absent"); got != nil {
		t.Errorf("absent field = %v", got)
	}
}

func TestRecordPrescreenAnswerOverwritesInPlace(t *testing.T) {
	st := NewAgentState("s1", "zyn")
	st.RecordPrescreenAnswer("smokes", "yes")
	st.RecordPrescreenAnswer("cigs", "10")
	st.RecordPrescreenAnswer("smokes", "no")

	if got, ok := st.AnswerFor("smokes"); !ok || got != "no" {
		t.Errorf("answer not overwritten, got %q (ok=%v)", got, ok)
	}
	if len(st.PrescreenAnswers) != 2 {
		t.Errorf("resubmission must not duplicate answers, got %d", len(st.PrescreenAnswers))
	}
	if st.PrescreenAnswers[0].QuestionID != "smokes" {
		t.Errorf("overwrite must keep position, got %q first", st.PrescreenAnswers[0].QuestionID)
	}
}
