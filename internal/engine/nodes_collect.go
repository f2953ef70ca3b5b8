package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// profileCollectionNode collects profile fields one configured group per
// turn. Fields already on record (seeded from a returning lead or answered
// earlier) are skipped, and a group with nothing left to ask is passed over
// without a prompt.
type profileCollectionNode struct{}

func (n *profileCollectionNode) ID() models.StepID { return models.StepProfileCollection }
func (n *profileCollectionNode) Interactive() bool { return true }

func (n *profileCollectionNode) Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt) {
	for {
		group, ok := cfg.GroupFor(st.GroupCursor)
		if !ok {
			return st, nil
		}
		missing := missingGroupFields(group, st.Profile)
		if len(missing) == 0 {
			st.GroupCursor++
			continue
		}
		return st, &Prompt{
			Message: groupPrompt(cfg, group),
			Fields:  fieldDescriptors(missing),
		}
	}
}

func (n *profileCollectionNode) Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error) {
	group, ok := cfg.GroupFor(st.GroupCursor)
	if !ok {
		return st, nil, nil
	}
	missing := missingGroupFields(group, st.Profile)

	collected := make(map[string]string)
	for _, f := range group.Fields {
		if v := strings.TrimSpace(in.FieldString(f.Name)); v != "" {
			collected[f.Name] = v
		}
	}
	// A bare text reply answers the single outstanding field.
	if len(collected) == 0 && !in.IsForm() && len(missing) == 1 {
		if v := strings.TrimSpace(in.Raw); v != "" {
			collected[missing[0].Name] = v
		}
	}

	var still []models.FieldSpec
	for _, f := range missing {
		if _, ok := collected[f.Name]; !ok {
			still = append(still, f)
		}
	}
	if len(still) > 0 {
		return st, &Prompt{
			Message: groupPrompt(cfg, group),
			Fields:  fieldDescriptors(still),
		}, nil
	}

	for name, value := range collected {
		st.SetProfileField(name, value)
	}
	if st.LeadID != "" {
		if err := deps.Leads.UpdateLead(st.LeadID, collected); err != nil {
			return st, nil, &CollaboratorError{Op: "lead profile update", Err: err}
		}
	}
	st.GroupCursor++
	return st, nil, nil
}

func groupPrompt(cfg *models.StudyConfig, group models.FieldGroup) string {
	if cfg.Messaging.ProfilePrompt != "" {
		return fmt.Sprintf(cfg.Messaging.ProfilePrompt, group.Label)
	}
	return fmt.Sprintf("Please share your %s.", group.Label)
}

func missingGroupFields(group models.FieldGroup, profile map[string]string) []models.FieldSpec {
	var missing []models.FieldSpec
	for _, f := range group.Fields {
		if v, ok := profile[f.Name]; !ok || v == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func fieldDescriptors(fields []models.FieldSpec) []models.FieldDescriptor {
	descs := make([]models.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		descs = append(descs, models.FieldDescriptor{
			Name:    f.Name,
			Type:    f.Type,
			Label:   f.Label,
			Options: f.Options,
		})
	}
	return descs
}

// prescreenNode walks the configured questions one per turn in declared
// order. Questions whose mapped profile field is already on record are
// answered automatically, and a disqualifying answer short-circuits the
// remaining questions.
type prescreenNode struct{}

func (n *prescreenNode) ID() models.StepID { return models.StepPrescreen }
func (n *prescreenNode) Interactive() bool { return true }

func (n *prescreenNode) Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt) {
	for {
		q, ok := cfg.QuestionFor(st.PrescreenCursor)
		if !ok {
			return st, nil
		}
		if _, answered := st.AnswerFor(q.ID); answered {
			st.PrescreenCursor++
			continue
		}
		if q.ProfileField != "" {
			if v, ok := st.Profile[q.ProfileField]; ok && v != "" {
				st.RecordPrescreenAnswer(q.ID, v)
				if disqualifies(q, v) {
					st.PrescreenDisqualified = true
					st.PrescreenDisqualReason = q.ID
					st.HandoffReason = models.ReasonPrescreenDisqualified
					return st, nil
				}
				st.PrescreenCursor++
				continue
			}
		}
		return st, questionPrompt(q)
	}
}

func (n *prescreenNode) Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error) {
	q, ok := cfg.QuestionFor(st.PrescreenCursor)
	if !ok {
		return st, nil, nil
	}
	answer := strings.TrimSpace(in.FieldString(q.ID))
	if answer == "" {
		answer = strings.TrimSpace(in.Raw)
	}
	normalized, ok := normalizeAnswer(q, answer)
	if !ok {
		return st, questionPrompt(q), nil
	}

	st.RecordPrescreenAnswer(q.ID, normalized)
	if q.ProfileField != "" {
		st.SetProfileField(q.ProfileField, normalized)
		if st.LeadID != "" {
			if err := deps.Leads.UpdateLead(st.LeadID, map[string]string{q.ProfileField: normalized}); err != nil {
				return st, nil, &CollaboratorError{Op: "lead profile update", Err: err}
			}
		}
	}
	if disqualifies(q, normalized) {
		st.PrescreenDisqualified = true
		st.PrescreenDisqualReason = q.ID
		st.HandoffReason = models.ReasonPrescreenDisqualified
		return st, nil, nil
	}
	st.PrescreenCursor++
	return st, nil, nil
}

func questionPrompt(q models.PreScreenQuestion) *Prompt {
	p := &Prompt{Message: q.Question, Field: q.ID}
	if q.Type == "yes_no" {
		p.Options = []string{"Yes", "No"}
	}
	return p
}

// normalizeAnswer canonicalizes an answer per question type. yes_no answers
// become "yes" or "no"; number answers must parse.
func normalizeAnswer(q models.PreScreenQuestion, answer string) (string, bool) {
	if answer == "" {
		return "", false
	}
	switch q.Type {
	case "yes_no":
		switch strings.ToLower(answer) {
		case "yes", "y", "yeah", "yep", "true":
			return "yes", true
		case "no", "n", "nope", "false":
			return "no", true
		}
		return "", false
	case "number":
		cleaned := strings.TrimSpace(answer)
		if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
			return "", false
		}
		return cleaned, true
	default:
		return answer, true
	}
}

func disqualifies(q models.PreScreenQuestion, answer string) bool {
	return q.DisqualifyOn != "" && strings.EqualFold(answer, q.DisqualifyOn)
}
