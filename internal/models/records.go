// Package models defines the persisted record shapes consumed through the
// store interfaces.
package models

import "time"

// Lead is the persisted participant record, keyed by identity. It is created
// lazily once identity is verified; identity fields are immutable after
// creation and profile fields are merged append-only.
type Lead struct {
	ID                string            `json:"id"`
	StudyID           string            `json:"study_id"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone"`
	PINCode           string            `json:"pin_code,omitempty"`
	Profile           map[string]string `json:"profile,omitempty"`
	EligibilityResult EligibilityStatus `json:"eligibility_result,omitempty"`
	OriginSessionID   string            `json:"origin_session_id"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Handoff is the terminal, append-only escalation record. It is created
// exactly once per disqualification or escalation and never mutated.
type Handoff struct {
	ID            string    `json:"id"`
	LeadID        string    `json:"lead_id,omitempty"`
	SessionID     string    `json:"session_id"`
	Reason        string    `json:"reason"`
	StateSnapshot string    `json:"state_snapshot"` // JSON-encoded AgentState
	CreatedAt     time.Time `json:"created_at"`
}

// Session is the persisted wrapper around an agent state document.
// Saves are last-write-wins; there is no version token.
type Session struct {
	SessionID string     `json:"session_id"`
	StudyID   string     `json:"study_id"`
	State     AgentState `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
