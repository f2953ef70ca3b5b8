// Package models defines the agent state carried through the screening graph.
package models

// StepID names a node in the screening graph. The set of valid values is
// fixed by the node catalog; a state whose CurrentStep is not in that set
// is corrupt.
type StepID string

const (
	StepGreeting           StepID = "greeting"
	StepConsent            StepID = "consent"
	StepIdentityCollection StepID = "identity_collection"
	StepLeadLookup         StepID = "lead_lookup"
	StepCreateLead         StepID = "create_lead"
	StepPinAuth            StepID = "pin_auth"
	StepProfileCollection  StepID = "profile_collection"
	StepPrescreen          StepID = "prescreen"
	StepEligibility        StepID = "eligibility"
	StepScheduling         StepID = "scheduling"
	StepHandoff            StepID = "handoff"
)

// EligibilityStatus is the outcome of the eligibility rules evaluation.
type EligibilityStatus string

const (
	EligibilityPending      EligibilityStatus = "pending"
	EligibilityEligible     EligibilityStatus = "eligible"
	EligibilityIneligible   EligibilityStatus = "ineligible"
	EligibilityUndetermined EligibilityStatus = "undetermined"
)

// Identity is the participant contact identity used for lead lookup.
type Identity struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PrescreenAnswer records one answered pre-screen question. Answer order is
// preserved; the eligibility engine and handoff snapshot both rely on it.
type PrescreenAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// AgentState is the canonical per-session progress value. It is mutated only
// by replacement: each turn computes a whole new state and persists it once.
type AgentState struct {
	SessionID   string `json:"session_id"`
	StudyID     string `json:"study_id"`
	CurrentStep StepID `json:"current_step"`

	ConsentGiven bool     `json:"consent_given"`
	Identity     Identity `json:"identity"`

	// Profile accumulates collected field values keyed by field name.
	// Insertion order is irrelevant; the eligibility engine reads it as a set.
	Profile     map[string]string `json:"profile,omitempty"`
	GroupCursor int               `json:"group_cursor"`

	PrescreenAnswers       []PrescreenAnswer `json:"prescreen_answers,omitempty"`
	PrescreenCursor        int               `json:"prescreen_cursor"`
	PrescreenDisqualified  bool              `json:"prescreen_disqualified,omitempty"`
	PrescreenDisqualReason string            `json:"prescreen_disqual_reason,omitempty"`

	EligibilityResult EligibilityStatus `json:"eligibility_result"`
	EligibilityReason string            `json:"eligibility_reason,omitempty"`
	MissingFields     []string          `json:"missing_fields,omitempty"`

	SchedulingSelection []string `json:"scheduling_selection,omitempty"`

	LeadID     string `json:"lead_id,omitempty"`
	LeadFound  bool   `json:"lead_found"`
	LeadHasPIN bool   `json:"lead_has_pin"`
	// LeadPIN carries the expected PIN across the auth turns so verification
	// does not re-query the lead repository on every attempt.
	LeadPIN string `json:"lead_pin,omitempty"`

	PinAttempts int  `json:"pin_attempts"`
	PinVerified bool `json:"pin_verified"`

	HandoffReason string `json:"handoff_reason,omitempty"`
	Done          bool   `json:"done"`
}

// NewAgentState returns the initial state for a fresh session, positioned at
// the greeting node.
func NewAgentState(sessionID, studyID string) AgentState {
	return AgentState{
		SessionID:         sessionID,
		StudyID:           studyID,
		CurrentStep:       StepGreeting,
		Profile:           make(map[string]string),
		EligibilityResult: EligibilityPending,
	}
}

// SetProfileField stores a collected value, creating the profile map on
// first use. Values overwrite by field name (resubmission policy).
func (s *AgentState) SetProfileField(name, value string) {
	if s.Profile == nil {
		s.Profile = make(map[string]string)
	}
	s.Profile[name] = value
}

// AnswerFor returns the recorded pre-screen answer for a question id, with
// ok=false when the question has not been answered yet.
func (s *AgentState) AnswerFor(questionID string) (string, bool) {
	for _, a := range s.PrescreenAnswers {
		if a.QuestionID == questionID {
			return a.Answer, true
		}
	}
	return "", false
}

// RecordPrescreenAnswer appends an answer, overwriting in place when the
// question was already answered (duplicate submissions overwrite).
func (s *AgentState) RecordPrescreenAnswer(questionID, answer string) {
	for i, a := range s.PrescreenAnswers {
		if a.QuestionID == questionID {
			s.PrescreenAnswers[i].Answer = answer
			return
		}
	}
	s.PrescreenAnswers = append(s.PrescreenAnswers, PrescreenAnswer{QuestionID: questionID, Answer: answer})
}
