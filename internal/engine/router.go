package engine

import (
	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// DefaultRevisitOrder is used when eligibility.revisit_order is unset: when
// evaluation comes back undetermined, profile collection is revisited before
// the pre-screen questions.
var DefaultRevisitOrder = []string{
	string(models.StepProfileCollection),
	string(models.StepPrescreen),
}

// Route is the pure routing function: given a state positioned after its
// CurrentStep node has run, it names the next node. It reads state and
// config only; it never performs I/O and never mutates its inputs.
func Route(st models.AgentState, cfg *models.StudyConfig) (models.StepID, error) {
	if st.Done {
		return "", &RoutingError{Step: st.CurrentStep, Reason: "session is complete"}
	}

	switch st.CurrentStep {
	case models.StepGreeting:
		return models.StepConsent, nil

	case models.StepConsent:
		if !st.ConsentGiven {
			return "", &RoutingError{Step: st.CurrentStep, Reason: "consent not recorded"}
		}
		return models.StepIdentityCollection, nil

	case models.StepIdentityCollection:
		if st.Identity.Email == "" && st.Identity.Phone == "" {
			return "", &RoutingError{Step: st.CurrentStep, Reason: "identity not collected"}
		}
		return models.StepLeadLookup, nil

	case models.StepLeadLookup:
		if !st.LeadFound {
			return models.StepCreateLead, nil
		}
		if st.LeadHasPIN && !st.PinVerified {
			return models.StepPinAuth, nil
		}
		return models.StepProfileCollection, nil

	case models.StepCreateLead:
		return models.StepProfileCollection, nil

	case models.StepPinAuth:
		if st.PinVerified {
			return models.StepProfileCollection, nil
		}
		if st.HandoffReason == models.ReasonPinExhausted {
			return models.StepHandoff, nil
		}
		return "", &RoutingError{Step: st.CurrentStep, Reason: "pin verification unresolved"}

	case models.StepProfileCollection:
		if st.GroupCursor < len(cfg.FieldGroups) {
			return models.StepProfileCollection, nil
		}
		return models.StepPrescreen, nil

	case models.StepPrescreen:
		if st.PrescreenDisqualified {
			return models.StepHandoff, nil
		}
		if st.PrescreenCursor < len(cfg.PreScreen.Questions) {
			return models.StepPrescreen, nil
		}
		return models.StepEligibility, nil

	case models.StepEligibility:
		switch st.EligibilityResult {
		case models.EligibilityEligible:
			return models.StepScheduling, nil
		case models.EligibilityIneligible:
			return models.StepHandoff, nil
		case models.EligibilityUndetermined:
			return revisitTarget(st, cfg)
		}
		return "", &RoutingError{Step: st.CurrentStep, Reason: "eligibility not evaluated"}

	case models.StepScheduling:
		if st.HandoffReason == models.ReasonQualified {
			return models.StepHandoff, nil
		}
		return "", &RoutingError{Step: st.CurrentStep, Reason: "scheduling preference not recorded"}

	case models.StepHandoff:
		return "", &RoutingError{Step: st.CurrentStep, Reason: "handoff is terminal"}
	}

	return "", &RoutingError{Step: st.CurrentStep, Reason: models.ErrUnknownStep.Error()}
}

// revisitTarget picks the first collection stage, in the configured revisit
// order, that owns one of the fields the evaluation reported missing.
func revisitTarget(st models.AgentState, cfg *models.StudyConfig) (models.StepID, error) {
	order := cfg.Eligibility.RevisitOrder
	if len(order) == 0 {
		order = DefaultRevisitOrder
	}
	for _, stage := range order {
		step := models.StepID(stage)
		for _, field := range st.MissingFields {
			if stageOwnsField(step, field, cfg) {
				return step, nil
			}
		}
	}
	return "", &RoutingError{Step: st.CurrentStep, Reason: "missing fields are not collectable by any stage"}
}

func stageOwnsField(stage models.StepID, field string, cfg *models.StudyConfig) bool {
	switch stage {
	case models.StepProfileCollection:
		for _, g := range cfg.FieldGroups {
			for _, f := range g.Fields {
				if f.Name == field {
					return true
				}
			}
		}
	case models.StepPrescreen:
		for _, q := range cfg.PreScreen.Questions {
			if q.ID == field || q.ProfileField == field {
				return true
			}
		}
	}
	return false
}
