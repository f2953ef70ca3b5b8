// Package eligibility implements the deterministic rules engine that decides
// study eligibility from collected profile and pre-screen data.
//
// Evaluation is purely rules-driven: no external calls, no randomness, and
// rule order is authoritative. Identical inputs always produce the identical
// outcome, including the same first-failing reason.
package eligibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// Outcome is the result of one evaluation pass.
type Outcome struct {
	Status models.EligibilityStatus
	// Reason names the first decisively failing rule when ineligible.
	Reason string
	// MissingFields lists referenced-but-absent fields, in rule order,
	// when the outcome is undetermined.
	MissingFields []string
}

// Evaluate runs the ordered rule list against a profile. A participant is
// eligible iff every include_required rule is satisfied and no
// exclude_if_matched rule matches. A rule whose field is absent never fails
// the participant: it marks the evaluation undetermined and names the field.
// The first rule that decisively fails (in declared order) decides
// ineligibility and supplies the reason code.
func Evaluate(profile map[string]string, rules []models.EligibilityRule) Outcome {
	var missing []string
	seenMissing := make(map[string]bool)

	for _, rule := range rules {
		raw, ok := profile[rule.Field]
		if !ok || strings.TrimSpace(raw) == "" {
			if !seenMissing[rule.Field] {
				seenMissing[rule.Field] = true
				missing = append(missing, rule.Field)
			}
			continue
		}

		matched := matches(rule, raw)
		switch rule.Effect {
		case models.EffectIncludeRequired:
			if !matched {
				return Outcome{Status: models.EligibilityIneligible, Reason: reasonFor(rule)}
			}
		case models.EffectExcludeIfMatch:
			if matched {
				return Outcome{Status: models.EligibilityIneligible, Reason: reasonFor(rule)}
			}
		}
	}

	if len(missing) > 0 {
		return Outcome{Status: models.EligibilityUndetermined, MissingFields: missing}
	}
	return Outcome{Status: models.EligibilityEligible}
}

// reasonFor returns the rule's declared reason code, or a generated one.
func reasonFor(rule models.EligibilityRule) string {
	if rule.Reason != "" {
		return rule.Reason
	}
	if rule.Effect == models.EffectExcludeIfMatch {
		return rule.Field + "_excluded"
	}
	return rule.Field + "_not_met"
}

// matches evaluates one rule against a raw profile value.
func matches(rule models.EligibilityRule, raw string) bool {
	switch rule.Operator {
	case models.OpEq:
		return valuesEqual(raw, rule.Value)
	case models.OpNeq:
		return !valuesEqual(raw, rule.Value)
	case models.OpLt:
		return numericCompare(raw, rule.Value, func(a, b float64) bool { return a < b })
	case models.OpLte:
		return numericCompare(raw, rule.Value, func(a, b float64) bool { return a <= b })
	case models.OpGt:
		return numericCompare(raw, rule.Value, func(a, b float64) bool { return a > b })
	case models.OpGte:
		return numericCompare(raw, rule.Value, func(a, b float64) bool { return a >= b })
	case models.OpIn:
		return containsValue(rule.Values, raw)
	case models.OpNotIn:
		return !containsValue(rule.Values, raw)
	case models.OpRange:
		if len(rule.Values) != 2 {
			return false
		}
		return numericCompare(raw, rule.Values[0], func(a, b float64) bool { return a >= b }) &&
			numericCompare(raw, rule.Values[1], func(a, b float64) bool { return a <= b })
	}
	return false
}

// valuesEqual compares a profile string with a configured rule value,
// coercing yes/no style answers to booleans and numeric strings to numbers.
func valuesEqual(raw string, ruleValue interface{}) bool {
	switch v := ruleValue.(type) {
	case bool:
		b, ok := coerceBool(raw)
		return ok && b == v
	case float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		return err == nil && f == v
	case string:
		if rb, ok := coerceBool(v); ok {
			if b, ok := coerceBool(raw); ok {
				return b == rb
			}
		}
		return strings.EqualFold(strings.TrimSpace(raw), strings.TrimSpace(v))
	}
	return false
}

// numericCompare parses both sides as floats; unparsable input never matches.
func numericCompare(raw string, ruleValue interface{}, cmp func(a, b float64) bool) bool {
	a, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	var b float64
	switch v := ruleValue.(type) {
	case float64:
		b = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return false
		}
		b = parsed
	default:
		return false
	}
	return cmp(a, b)
}

// containsValue reports case-insensitive membership of raw in values.
func containsValue(values []interface{}, raw string) bool {
	needle := strings.TrimSpace(raw)
	for _, v := range values {
		if strings.EqualFold(needle, fmt.Sprintf("%v", v)) {
			return true
		}
	}
	return false
}

// coerceBool interprets yes/no style answers as booleans.
func coerceBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	}
	return false, false
}
