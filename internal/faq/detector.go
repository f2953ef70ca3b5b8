// Package faq answers general study questions out of band. A lightweight
// heuristic decides whether an inbound message is a question at all; the
// retrieval service answers it from the indexed study FAQ document without
// disturbing the screening conversation.
package faq

import (
	"regexp"
	"strings"
)

var questionWordRe = regexp.MustCompile(`(?i)^\s*(what|how|when|where|why|who|can|is|does|do|will|are|could|would|should|tell me)\b`)

// IsQuestion reports whether a message looks like a general FAQ question
// rather than an answer to the current screening prompt. Form submissions
// and short replies are never treated as questions.
func IsQuestion(message string) bool {
	text := strings.TrimSpace(message)
	if len(text) < 10 {
		return false
	}
	if strings.HasPrefix(text, "{") {
		return false
	}
	if strings.HasSuffix(text, "?") && len(text) >= 15 {
		return true
	}
	if questionWordRe.MatchString(text) && len(text) >= 20 {
		return true
	}
	return false
}
