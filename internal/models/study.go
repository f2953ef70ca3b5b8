// Package models defines the per-study configuration document.
package models

// StudyConfig is the per-study document driving the screening conversation.
// It is loaded once at session creation and read-only thereafter.
type StudyConfig struct {
	Study       StudySection       `json:"study"`
	Messaging   MessagingSection   `json:"messaging"`
	PreScreen   PreScreenSection   `json:"pre_screen"`
	Eligibility EligibilitySection `json:"eligibility"`
	FieldGroups []FieldGroup       `json:"field_groups,omitempty"`
	Scheduling  SchedulingSection  `json:"scheduling,omitempty"`
	Limits      LimitsSection      `json:"limits,omitempty"`
}

// StudySection identifies the study.
type StudySection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessagingSection holds every templated prompt the nodes emit. Wording is
// authored per study; the engine never synthesizes prompt text.
type MessagingSection struct {
	Greeting         string `json:"greeting"`
	ConsentPrompt    string `json:"consent_prompt"`
	ConsentReprompt  string `json:"consent_reprompt"`
	ConsentDeclined  string `json:"consent_declined"`
	IdentityPrompt   string `json:"identity_prompt"`
	IdentityReprompt string `json:"identity_reprompt"`
	LookupAck        string `json:"lookup_ack"`
	PinPrompt        string `json:"pin_prompt"`
	PinRetry         string `json:"pin_retry"`
	PinVerified      string `json:"pin_verified"`
	PinFailure       string `json:"pin_failure"`
	ProfilePrompt    string `json:"profile_prompt"` // format: one %s for the group label
	SchedulingPrompt string `json:"scheduling_prompt"`
	Qualified        string `json:"qualified"`
	Disqualification string `json:"disqualification"`
}

// PreScreenQuestion is one configured pre-screen question. Questions are
// asked in declared order, one per turn.
type PreScreenQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Type     string `json:"type"` // yes_no or number or text
	// ProfileField optionally maps the question to a lead profile field so
	// answers already on record are auto-filled instead of re-asked.
	ProfileField string `json:"profile_field,omitempty"`
	// DisqualifyOn immediately disqualifies when the answer matches.
	DisqualifyOn string `json:"disqualify_on,omitempty"`
}

// PreScreenSection lists the configured pre-screen questions.
type PreScreenSection struct {
	Questions []PreScreenQuestion `json:"questions"`
}

// Rule operators and effects understood by the eligibility engine.
const (
	OpEq    = "eq"
	OpNeq   = "neq"
	OpLt    = "lt"
	OpLte   = "lte"
	OpGt    = "gt"
	OpGte   = "gte"
	OpIn    = "in"
	OpNotIn = "not_in"
	OpRange = "range"

	EffectIncludeRequired = "include_required"
	EffectExcludeIfMatch  = "exclude_if_matched"
)

// EligibilityRule is one declared rule. Rule order is authoritative: the
// engine evaluates rules exactly in declared order and the first decisive
// failure names the outcome reason.
type EligibilityRule struct {
	Field    string        `json:"field"`
	Operator string        `json:"operator"`
	Value    interface{}   `json:"value,omitempty"`
	Values   []interface{} `json:"values,omitempty"`
	Effect   string        `json:"effect"`
	Reason   string        `json:"reason,omitempty"`
}

// EligibilitySection holds the ordered rule list plus the declared order in
// which collection stages are revisited when evaluation is undetermined.
type EligibilitySection struct {
	Rules        []EligibilityRule `json:"rules"`
	RevisitOrder []string          `json:"revisit_order,omitempty"` // defaults to profile_collection, prescreen
}

// FieldSpec describes one profile field inside a group.
type FieldSpec struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
}

// FieldGroup is one batch of profile fields collected in a single form turn.
type FieldGroup struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Fields []FieldSpec `json:"fields"`
}

// SchedulingSection configures the day/time multi-select options offered to
// eligible participants.
type SchedulingSection struct {
	Days  []string `json:"days,omitempty"`
	Times []string `json:"times,omitempty"`
}

// LimitsSection bounds node-local retry behavior.
type LimitsSection struct {
	MaxPinAttempts int `json:"max_pin_attempts,omitempty"` // default 3
}

// DefaultMaxPinAttempts applies when limits.max_pin_attempts is unset.
const DefaultMaxPinAttempts = 3

// MaxPinAttempts returns the configured PIN attempt ceiling or the default.
func (c *StudyConfig) MaxPinAttempts() int {
	if c.Limits.MaxPinAttempts > 0 {
		return c.Limits.MaxPinAttempts
	}
	return DefaultMaxPinAttempts
}

// GroupFor returns the field group at the given cursor position, with
// ok=false when the cursor is past the last group.
func (c *StudyConfig) GroupFor(cursor int) (FieldGroup, bool) {
	if cursor < 0 || cursor >= len(c.FieldGroups) {
		return FieldGroup{}, false
	}
	return c.FieldGroups[cursor], true
}

// QuestionFor returns the pre-screen question at the given cursor position,
// with ok=false when the cursor is past the last question.
func (c *StudyConfig) QuestionFor(cursor int) (PreScreenQuestion, bool) {
	qs := c.PreScreen.Questions
	if cursor < 0 || cursor >= len(qs) {
		return PreScreenQuestion{}, false
	}
	return qs[cursor], true
}
