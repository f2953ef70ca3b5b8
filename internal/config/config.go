// Package config loads per-study configuration documents.
//
// Each study lives in a directory under the studies root:
// <base>/<study_id>/config.json. A config that is missing or lacks a
// required section is a fatal load-time error; the engine never discovers
// configuration problems mid-conversation.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// ConfigError reports a malformed or missing study configuration. It blocks
// session creation and is never produced at turn time.
type ConfigError struct {
	StudyID string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("study config %q: %s", e.StudyID, e.Reason)
}

// requiredSections must all be present in every study config.
var requiredSections = []string{"study", "messaging", "pre_screen", "eligibility"}

// Loader resolves study IDs to validated StudyConfig documents.
type Loader struct {
	basePath string
}

// NewLoader creates a Loader rooted at the given studies directory.
func NewLoader(basePath string) *Loader {
	slog.Debug("config.NewLoader: creating loader", "base_path", basePath)
	return &Loader{basePath: basePath}
}

// Load reads and validates the configuration for one study.
func (l *Loader) Load(studyID string) (*models.StudyConfig, error) {
	if studyID == "" {
		return nil, &ConfigError{StudyID: studyID, Reason: "empty study id"}
	}
	path := filepath.Join(l.basePath, studyID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("config.Load: read failed", "error", err, "study_id", studyID, "path", path)
		return nil, &ConfigError{StudyID: studyID, Reason: fmt.Sprintf("not found at %s", path)}
	}
	cfg, err := Parse(studyID, data)
	if err != nil {
		return nil, err
	}
	slog.Debug("config.Load: study config loaded", "study_id", studyID,
		"questions", len(cfg.PreScreen.Questions), "rules", len(cfg.Eligibility.Rules),
		"field_groups", len(cfg.FieldGroups))
	return cfg, nil
}

// Parse decodes and validates a raw study config document.
func Parse(studyID string, data []byte) (*models.StudyConfig, error) {
	// Section presence is checked on the raw document: a zero-valued struct
	// section is indistinguishable from an absent one after decoding.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Error("config.Parse: invalid JSON", "error", err, "study_id", studyID)
		return nil, &ConfigError{StudyID: studyID, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	for _, section := range requiredSections {
		if _, ok := raw[section]; !ok {
			slog.Error("config.Parse: missing required section", "study_id", studyID, "section", section)
			return nil, &ConfigError{StudyID: studyID, Reason: fmt.Sprintf("missing required section %q", section)}
		}
	}

	var cfg models.StudyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{StudyID: studyID, Reason: fmt.Sprintf("malformed document: %v", err)}
	}
	if err := validate(&cfg); err != nil {
		return nil, &ConfigError{StudyID: studyID, Reason: err.Error()}
	}
	return &cfg, nil
}

// validate checks internal consistency beyond section presence.
func validate(cfg *models.StudyConfig) error {
	if cfg.Study.ID == "" {
		return fmt.Errorf("study.id is required")
	}
	if len(cfg.PreScreen.Questions) == 0 {
		return fmt.Errorf("pre_screen.questions must not be empty")
	}
	seen := make(map[string]bool, len(cfg.PreScreen.Questions))
	for _, q := range cfg.PreScreen.Questions {
		if q.ID == "" {
			return fmt.Errorf("pre_screen question with empty id")
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate pre_screen question id %q", q.ID)
		}
		seen[q.ID] = true
	}
	for i, r := range cfg.Eligibility.Rules {
		if r.Field == "" {
			return fmt.Errorf("eligibility rule %d has no field", i)
		}
		switch r.Operator {
		case models.OpEq, models.OpNeq, models.OpLt, models.OpLte, models.OpGt, models.OpGte,
			models.OpIn, models.OpNotIn, models.OpRange:
		default:
			return fmt.Errorf("eligibility rule %d has unknown operator %q", i, r.Operator)
		}
		switch r.Effect {
		case models.EffectIncludeRequired, models.EffectExcludeIfMatch:
		default:
			return fmt.Errorf("eligibility rule %d has unknown effect %q", i, r.Effect)
		}
	}
	for _, stage := range cfg.Eligibility.RevisitOrder {
		if stage != string(models.StepProfileCollection) && stage != string(models.StepPrescreen) {
			return fmt.Errorf("eligibility.revisit_order names unknown stage %q", stage)
		}
	}
	groupFields := make(map[string]bool)
	for _, g := range cfg.FieldGroups {
		if g.Name == "" {
			return fmt.Errorf("field group with empty name")
		}
		for _, f := range g.Fields {
			if f.Name == "" {
				return fmt.Errorf("field group %q has a field with empty name", g.Name)
			}
			if groupFields[f.Name] {
				return fmt.Errorf("field %q declared in more than one group", f.Name)
			}
			groupFields[f.Name] = true
		}
	}
	return nil
}
