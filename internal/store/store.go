// Package store provides storage backends for screening sessions, leads,
// and handoff records.
//
// Three backends are available: an in-memory store for tests and local
// development, an SQLite-backed store for single-host deployments, and a
// PostgreSQL-backed store for shared deployments. The engine consumes only
// the narrow repository interfaces defined here.
package store

import (
	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// SessionStore persists per-session agent state documents. Saves are
// last-write-wins over the whole document; there is no version token.
type SessionStore interface {
	// LoadSession returns the persisted session, or (nil, nil) when the
	// session id is unknown.
	LoadSession(sessionID string) (*models.Session, error)

	// SaveSession upserts the whole session record atomically.
	SaveSession(session models.Session) error
}

// LeadRepo manages persisted participant records.
type LeadRepo interface {
	// LookupLead finds a lead by exact email match or normalized phone
	// match, or returns (nil, nil) when no record exists. Exact match only:
	// identity data is never fuzzy-matched across records.
	LookupLead(email, phone string) (*models.Lead, error)

	// CreateLead inserts a new lead carrying only identity and provenance.
	// Identity is immutable after this call.
	CreateLead(identity models.Identity, studyID, originSessionID string) (*models.Lead, error)

	// UpdateLead merges profile fields into an existing lead (append-only
	// field merge; identity columns are never touched).
	UpdateLead(leadID string, fields map[string]string) error

	// UpdateLeadEligibility records the eligibility outcome on the lead.
	UpdateLeadEligibility(leadID string, result models.EligibilityStatus) error
}

// HandoffRepo records terminal escalation records. Handoffs are insert-only.
type HandoffRepo interface {
	// CreateHandoff inserts a handoff record and returns its id.
	CreateHandoff(handoff models.Handoff) (string, error)
}

// Store combines all persistence capabilities a deployment needs.
type Store interface {
	SessionStore
	LeadRepo
	HandoffRepo
	Close() error
}
