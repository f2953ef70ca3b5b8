package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

const validConfig = `{
  "study": {"id": "zyn", "name": "Test Study"},
  "messaging": {"greeting": "Hi!", "consent_prompt": "Continue?"},
  "pre_screen": {"questions": [
    {"id": "smokes", "question": "Do you smoke?", "type": "yes_no", "disqualify_on": "no"},
    {"id": "cigs", "question": "How many?", "type": "number", "profile_field": "cigarettes_per_day"}
  ]},
  "eligibility": {
    "rules": [
      {"field": "age", "operator": "gte", "value": 21, "effect": "include_required", "reason": "under_age"},
      {"field": "cigarettes_per_day", "operator": "range", "values": [5, 60], "effect": "include_required"}
    ],
    "revisit_order": ["profile_collection", "prescreen"]
  },
  "field_groups": [
    {"name": "basics", "label": "Basics", "fields": [
      {"name": "date_of_birth", "type": "date", "label": "Date of birth"}
    ]}
  ],
  "limits": {"max_pin_attempts": 2}
}`

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse("zyn", []byte(validConfig))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Study.ID != "zyn" {
		t.Errorf("study id = %q", cfg.Study.ID)
	}
	if len(cfg.PreScreen.Questions) != 2 || cfg.PreScreen.Questions[1].ProfileField != "cigarettes_per_day" {
		t.Errorf("questions decoded badly: %+v", cfg.PreScreen.Questions)
	}
	if len(cfg.Eligibility.Rules) != 2 || cfg.Eligibility.Rules[0].Operator != models.OpGte {
		t.Errorf("rules decoded badly: %+v", cfg.Eligibility.Rules)
	}
	if cfg.MaxPinAttempts() != 2 {
		t.Errorf("max pin attempts = %d, want 2", cfg.MaxPinAttempts())
	}
}

func TestMaxPinAttemptsDefault(t *testing.T) {
	cfg := &models.StudyConfig{}
	if cfg.MaxPinAttempts() != models.DefaultMaxPinAttempts {
		t.Errorf("default max pin attempts = %d", cfg.MaxPinAttempts())
	}
}

func TestParseMissingSection(t *testing.T) {
	doc := `{"study": {"id": "zyn"}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}]}}`
	_, err := Parse("zyn", []byte(doc))
	if err == nil {
		t.Fatal("missing eligibility section must fail")
	}
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse("zyn", []byte("{not json")); err == nil {
		t.Fatal("invalid JSON must fail")
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"empty study id", `{"study": {"id": ""}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}]}, "eligibility": {"rules": []}}`},
		{"no questions", `{"study": {"id": "s"}, "messaging": {}, "pre_screen": {"questions": []}, "eligibility": {"rules": []}}`},
		{"duplicate question id", `{"study": {"id": "s"}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}, {"id": "q", "question": "??", "type": "text"}]}, "eligibility": {"rules": []}}`},
		{"unknown operator", `{"study": {"id": "s"}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}]}, "eligibility": {"rules": [{"field": "f", "operator": "weird", "effect": "include_required"}]}}`},
		{"unknown effect", `{"study": {"id": "s"}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}]}, "eligibility": {"rules": [{"field": "f", "operator": "eq", "effect": "maybe"}]}}`},
		{"unknown revisit stage", `{"study": {"id": "s"}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}]}, "eligibility": {"rules": [], "revisit_order": ["greeting"]}}`},
		{"field in two groups", `{"study": {"id": "s"}, "messaging": {}, "pre_screen": {"questions": [{"id": "q", "question": "?", "type": "text"}]}, "eligibility": {"rules": []}, "field_groups": [{"name": "a", "label": "A", "fields": [{"name": "x", "type": "text", "label": "X"}]}, {"name": "b", "label": "B", "fields": [{"name": "x", "type": "text", "label": "X"}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse("s", []byte(tc.doc)); err == nil {
				t.Errorf("document should be rejected")
			}
		})
	}
}

func TestLoaderLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "zyn"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "zyn", "config.json"), []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(dir)
	cfg, err := loader.Load("zyn")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Study.ID != "zyn" {
		t.Errorf("study id = %q", cfg.Study.ID)
	}

	if _, err := loader.Load("missing"); err == nil {
		t.Error("unknown study must fail to load")
	}
	if _, err := loader.Load(""); err == nil {
		t.Error("empty study id must fail to load")
	}
}
