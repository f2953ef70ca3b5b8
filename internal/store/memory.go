// Package store provides storage backends for the screening agent.
//
// This file implements the in-memory store used in tests and when no
// database DSN is configured.
package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// InMemoryStore is a mutex-guarded map-backed Store. Distinct sessions may
// be processed concurrently; the engine itself never shares state between
// sessions.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	leads    map[string]models.Lead
	handoffs []models.Handoff
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.Session),
		leads:    make(map[string]models.Lead),
	}
}

// LoadSession returns the stored session or (nil, nil) when unknown.
func (s *InMemoryStore) LoadSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

// SaveSession upserts the whole session record.
func (s *InMemoryStore) SaveSession(session models.Session) error {
	if session.SessionID == "" {
		return models.ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.sessions[session.SessionID]; ok {
		session.CreatedAt = existing.CreatedAt
	} else if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	s.sessions[session.SessionID] = session
	return nil
}

// LookupLead finds a lead by exact email or normalized phone match.
func (s *InMemoryStore) LookupLead(email, phone string) (*models.Lead, error) {
	normalized := NormalizePhone(phone)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lead := range s.leads {
		if strings.EqualFold(lead.Email, email) || (normalized != "" && lead.Phone == normalized) {
			found := lead
			return &found, nil
		}
	}
	return nil, nil
}

// CreateLead inserts a new lead record carrying identity only.
func (s *InMemoryStore) CreateLead(identity models.Identity, studyID, originSessionID string) (*models.Lead, error) {
	now := time.Now()
	lead := models.Lead{
		ID:              uuid.NewString(),
		StudyID:         studyID,
		Email:           identity.Email,
		Phone:           NormalizePhone(identity.Phone),
		Profile:         make(map[string]string),
		OriginSessionID: originSessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
	slog.Debug("InMemoryStore.CreateLead succeeded", "lead_id", lead.ID, "study_id", studyID)
	return &lead, nil
}

// UpdateLead merges profile fields into an existing lead.
func (s *InMemoryStore) UpdateLead(leadID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return fmt.Errorf("lead %s not found", leadID)
	}
	if lead.Profile == nil {
		lead.Profile = make(map[string]string)
	}
	for k, v := range fields {
		lead.Profile[k] = v
	}
	lead.UpdatedAt = time.Now()
	s.leads[leadID] = lead
	return nil
}

// UpdateLeadEligibility records the eligibility outcome on the lead.
func (s *InMemoryStore) UpdateLeadEligibility(leadID string, result models.EligibilityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return fmt.Errorf("lead %s not found", leadID)
	}
	lead.EligibilityResult = result
	lead.UpdatedAt = time.Now()
	s.leads[leadID] = lead
	return nil
}

// CreateHandoff appends a handoff record.
func (s *InMemoryStore) CreateHandoff(handoff models.Handoff) (string, error) {
	if handoff.ID == "" {
		handoff.ID = uuid.NewString()
	}
	if handoff.CreatedAt.IsZero() {
		handoff.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handoffs = append(s.handoffs, handoff)
	slog.Debug("InMemoryStore.CreateHandoff succeeded", "handoff_id", handoff.ID, "reason", handoff.Reason)
	return handoff.ID, nil
}

// Handoffs returns a copy of all recorded handoffs (for tests).
func (s *InMemoryStore) Handoffs() []models.Handoff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Handoff, len(s.handoffs))
	copy(out, s.handoffs)
	return out
}

// SeedLead inserts a pre-existing lead record (for tests).
func (s *InMemoryStore) SeedLead(lead models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	lead.Phone = NormalizePhone(lead.Phone)
	s.leads[lead.ID] = lead
}

// GetLead returns a lead by id (for tests).
func (s *InMemoryStore) GetLead(leadID string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
