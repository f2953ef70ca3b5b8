package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// NormalizePhone strips a phone number down to its digits. Stored phone
// numbers are always normalized so lookups are exact.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalProfile encodes a lead profile map for storage.
func marshalProfile(profile map[string]string) (string, error) {
	if profile == nil {
		profile = map[string]string{}
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lead profile: %w", err)
	}
	return string(data), nil
}

// scanLead scans a lead row in the canonical column order:
// id, study_id, email, phone, pin_code, profile, eligibility_result,
// origin_session_id, created_at, updated_at.
func scanLead(row *sql.Row) (*models.Lead, error) {
	var lead models.Lead
	var pinCode, profileJSON, result sql.NullString
	err := row.Scan(
		&lead.ID, &lead.StudyID, &lead.Email, &lead.Phone, &pinCode,
		&profileJSON, &result, &lead.OriginSessionID, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lead.PINCode = pinCode.String
	lead.EligibilityResult = models.EligibilityStatus(result.String)
	lead.Profile = make(map[string]string)
	if profileJSON.Valid && profileJSON.String != "" {
		if err := json.Unmarshal([]byte(profileJSON.String), &lead.Profile); err != nil {
			return nil, fmt.Errorf("failed to decode lead profile: %w", err)
		}
	}
	return &lead, nil
}
