// Package models defines the core data structures for the screening agent.
//
// It includes the turn request/response contract shared by the engine and
// the API layer, plus validation errors used across modules.
package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ResponseType describes how the caller should render a turn response.
type ResponseType string

const (
	// ResponseTypeText is a plain message expecting a free-text reply.
	ResponseTypeText ResponseType = "text"
	// ResponseTypeForm carries one or more field descriptors to render as widgets.
	ResponseTypeForm ResponseType = "form"
	// ResponseTypeEnd marks the conversation as finished.
	ResponseTypeEnd ResponseType = "end"
)

// Handoff reason codes recorded when a conversation escalates or disqualifies.
const (
	ReasonPinExhausted          = "pin_exhausted"
	ReasonPrescreenDisqualified = "prescreen_disqualified"
	ReasonQualified             = "qualified"
)

// Error variables for better error handling and testability
var (
	ErrEmptyStudyID    = errors.New("study_id cannot be empty")
	ErrEmptySessionID  = errors.New("session_id cannot be empty")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionDone     = errors.New("session is already complete")
	ErrUnknownStep     = errors.New("state names an undeclared step")
)

// FieldDescriptor describes one input widget in a form-type response.
type FieldDescriptor struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"` // text, email, tel, date, number, select, multi_select
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
}

// TurnResponse is the descriptor returned to the caller after each turn.
type TurnResponse struct {
	SessionID string            `json:"session_id"`
	Step      StepID            `json:"step"`
	Message   string            `json:"message"`
	Type      ResponseType      `json:"type"`
	Field     string            `json:"field,omitempty"`
	Fields    []FieldDescriptor `json:"fields,omitempty"`
	Options   []string          `json:"options,omitempty"`
	Done      bool              `json:"done"`
}

// TurnInput is one inbound user submission: either raw text or a decoded
// JSON field map from a form widget.
type TurnInput struct {
	Raw    string
	Fields map[string]interface{}
}

// ParseTurnInput decodes a raw message into a TurnInput. Messages starting
// with '{' are treated as JSON form submissions; anything else stays raw text.
func ParseTurnInput(raw string) TurnInput {
	in := TurnInput{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return in
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
		in.Fields = fields
	}
	return in
}

// FieldString returns the named form field as a trimmed string, or "" when
// absent. Numeric and boolean JSON values are stringified so that form
// number inputs round-trip as profile values.
func (in TurnInput) FieldString(name string) string {
	if in.Fields == nil {
		return ""
	}
	switch v := in.Fields[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// FieldStrings returns the named form field as a string slice. Single string
// values are wrapped; non-string list members are skipped.
func (in TurnInput) FieldStrings(name string) []string {
	if in.Fields == nil {
		return nil
	}
	switch v := in.Fields[name].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// IsForm reports whether the input carried a decoded JSON field map.
func (in TurnInput) IsForm() bool {
	return in.Fields != nil
}
