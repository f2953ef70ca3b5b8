// Package store provides storage backends for the screening agent.
//
// This file implements an SQLite-backed store for sessions, leads, and
// handoff records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a file-backed Store suitable for single-host deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; if the directory
// doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// LoadSession returns the persisted session or (nil, nil) when unknown.
func (s *SQLiteStore) LoadSession(sessionID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT session_id, study_id, state, created_at, updated_at FROM sessions WHERE session_id = ?`,
		sessionID,
	)
	var sess models.Session
	var stateJSON string
	err := row.Scan(&sess.SessionID, &sess.StudyID, &stateJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadSession scan failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("failed to decode session state for %s: %w", sessionID, err)
	}
	return &sess, nil
}

// SaveSession upserts the whole session document in one statement.
func (s *SQLiteStore) SaveSession(session models.Session) error {
	if session.SessionID == "" {
		return models.ErrEmptySessionID
	}
	stateJSON, err := json.Marshal(session.State)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, study_id, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		session.SessionID, session.StudyID, string(stateJSON), now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "session_id", session.SessionID, "step", session.State.CurrentStep)
	return nil
}

// LookupLead finds a lead by exact email or normalized phone match.
func (s *SQLiteStore) LookupLead(email, phone string) (*models.Lead, error) {
	normalized := NormalizePhone(phone)
	row := s.db.QueryRow(
		`SELECT id, study_id, email, phone, pin_code, profile, eligibility_result, origin_session_id, created_at, updated_at
		 FROM leads WHERE LOWER(email) = LOWER(?) OR (? != '' AND phone = ?) LIMIT 1`,
		email, normalized, normalized,
	)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LookupLead failed", "error", err, "email", email)
		return nil, fmt.Errorf("failed to look up lead: %w", err)
	}
	return lead, nil
}

// CreateLead inserts a new lead record carrying identity only.
func (s *SQLiteStore) CreateLead(identity models.Identity, studyID, originSessionID string) (*models.Lead, error) {
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
		 VALUES (?, ?, ?, ?, NULL, '{}', NULL, ?, ?, ?)`,
		lead.ID, lead.StudyID, lead.Email, lead.Phone, lead.OriginSessionID, now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "study_id", studyID)
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	slog.Debug("SQLiteStore CreateLead succeeded", "lead_id", lead.ID, "study_id", studyID)
	return &lead, nil
}

// UpdateLead merges profile fields into an existing lead. The merge happens
// in Go against the current profile document inside a transaction.
func (s *SQLiteStore) UpdateLead(leadID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin lead update: %w", err)
	}
	defer tx.Rollback()

	var profileJSON sql.NullString
	if err := tx.QueryRow(`SELECT profile FROM leads WHERE id = ?`, leadID).Scan(&profileJSON); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("lead %s not found", leadID)
		}
		return fmt.Errorf("failed to read lead %s: %w", leadID, err)
	}
	profile := make(map[string]string)
	if profileJSON.Valid && profileJSON.String != "" {
		if err := json.Unmarshal([]byte(profileJSON.String), &profile); err != nil {
			return fmt.Errorf("failed to decode lead profile: %w", err)
		}
	}
	for k, v := range fields {
		profile[k] = v
	}
	merged, err := marshalProfile(profile)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE leads SET profile = ?, updated_at = ? WHERE id = ?`, merged, time.Now(), leadID); err != nil {
		slog.Error("SQLiteStore UpdateLead failed", "error", err, "lead_id", leadID)
		return fmt.Errorf("failed to update lead %s: %w", leadID, err)
	}
	return tx.Commit()
}

// UpdateLeadEligibility records the eligibility outcome on the lead.
func (s *SQLiteStore) UpdateLeadEligibility(leadID string, result models.EligibilityStatus) error {
	res, err := s.db.Exec(`UPDATE leads SET eligibility_result = ?, updated_at = ? WHERE id = ?`,
		string(result), time.Now(), leadID)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadEligibility failed", "error", err, "lead_id", leadID)
		return fmt.Errorf("failed to update lead eligibility: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("lead %s not found", leadID)
	}
	return nil
}

// CreateHandoff inserts an insert-only handoff record.
func (s *SQLiteStore) CreateHandoff(handoff models.Handoff) (string, error) {
	if handoff.ID == "" {
		handoff.ID = uuid.NewString()
	}
	if handoff.CreatedAt.IsZero() {
		handoff.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO handoffs (id, lead_id, session_id, reason, state_snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		handoff.ID, nilIfEmpty(handoff.LeadID), handoff.SessionID, handoff.Reason, handoff.StateSnapshot, handoff.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateHandoff failed", "error", err, "session_id", handoff.SessionID)
		return "", fmt.Errorf("failed to create handoff: %w", err)
	}
	slog.Debug("SQLiteStore CreateHandoff succeeded", "handoff_id", handoff.ID, "reason", handoff.Reason)
	return handoff.ID, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
