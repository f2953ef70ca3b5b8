// Package store provides storage backends for the screening agent.
//
// This file implements a PostgreSQL-backed store for sessions, leads, and
// handoff records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a PostgreSQL-backed Store for shared deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// LoadSession returns the persisted session or (nil, nil) when unknown.
func (s *PostgresStore) LoadSession(sessionID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT session_id, study_id, state, created_at, updated_at FROM sessions WHERE session_id = $1`,
		sessionID,
	)
	var sess models.Session
	var stateJSON string
	err := row.Scan(&sess.SessionID, &sess.StudyID, &stateJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadSession scan failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("failed to decode session state for %s: %w", sessionID, err)
	}
	return &sess, nil
}

// SaveSession upserts the whole session document in one statement.
func (s *PostgresStore) SaveSession(session models.Session) error {
	if session.SessionID == "" {
		return models.ErrEmptySessionID
	}
	stateJSON, err := json.Marshal(session.State)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, study_id, state, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (session_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		session.SessionID, session.StudyID, string(stateJSON),
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "session_id", session.SessionID, "step", session.State.CurrentStep)
	return nil
}

// LookupLead finds a lead by exact email or normalized phone match.
func (s *PostgresStore) LookupLead(email, phone string) (*models.Lead, error) {
	normalized := NormalizePhone(phone)
	row := s.db.QueryRow(
		`SELECT id, study_id, email, phone, pin_code, profile, eligibility_result, origin_session_id, created_at, updated_at
		 FROM leads WHERE LOWER(email) = LOWER($1) OR ($2 <> '' AND phone = $2) LIMIT 1`,
		email, normalized,
	)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LookupLead failed", "error", err, "email", email)
		return nil, fmt.Errorf("failed to look up lead: %w", err)
	}
	return lead, nil
}

// CreateLead inserts a new lead record carrying identity only.
func (s *PostgresStore) CreateLead(identity models.Identity, studyID, originSessionID string) (*models.Lead, error) {
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
	_, err := s.db.Exec(
		`INSERT INTO leads (id, study_id, email, phone, pin_code, profile, eligibility_result, origin_session_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULL, '{}', NULL, $5, NOW(), NOW())`,
		lead.ID, lead.StudyID, lead.Email, lead.Phone, lead.OriginSessionID,
	)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "study_id", studyID)
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	slog.Debug("PostgresStore CreateLead succeeded", "lead_id", lead.ID, "study_id", studyID)
	return &lead, nil
}

// UpdateLead merges profile fields into an existing lead using a JSONB merge
// so the update is a single atomic statement.
func (s *PostgresStore) UpdateLead(leadID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	patch, err := marshalProfile(fields)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE leads SET profile = COALESCE(profile, '{}'::jsonb) || $1::jsonb, updated_at = NOW() WHERE id = $2`,
		patch, leadID,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateLead failed", "error", err, "lead_id", leadID)
		return fmt.Errorf("failed to update lead %s: %w", leadID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("lead %s not found", leadID)
	}
	return nil
}

// UpdateLeadEligibility records the eligibility outcome on the lead.
func (s *PostgresStore) UpdateLeadEligibility(leadID string, result models.EligibilityStatus) error {
	res, err := s.db.Exec(`UPDATE leads SET eligibility_result = $1, updated_at = NOW() WHERE id = $2`,
		string(result), leadID)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadEligibility failed", "error", err, "lead_id", leadID)
		return fmt.Errorf("failed to update lead eligibility: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("lead %s not found", leadID)
	}
	return nil
}

// CreateHandoff inserts an insert-only handoff record.
func (s *PostgresStore) CreateHandoff(handoff models.Handoff) (string, error) {
	if handoff.ID == "" {
		handoff.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO handoffs (id, lead_id, session_id, reason, state_snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		handoff.ID, nilIfEmpty(handoff.LeadID), handoff.SessionID, handoff.Reason, handoff.StateSnapshot,
	)
	if err != nil {
		slog.Error("PostgresStore CreateHandoff failed", "error", err, "session_id", handoff.SessionID)
		return "", fmt.Errorf("failed to create handoff: %w", err)
	}
	slog.Debug("PostgresStore CreateHandoff succeeded", "handoff_id", handoff.ID, "reason", handoff.Reason)
	return handoff.ID, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
