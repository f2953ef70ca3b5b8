package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"

	"github.com/GautamArjun/rrc-chat-ui/internal/eligibility"
)

// derivedFields maps a rule field computed by the engine to the collected
// field it derives from, so a missing derived value points the participant
// back at the right question.
var derivedFields = map[string]string{
	"age": "date_of_birth",
}

// eligibilityNode runs the deterministic rules evaluation over everything
// collected so far. Undetermined outcomes rewind the collection cursors so
// the skip logic re-asks only what is still missing.
type eligibilityNode struct{}

func (n *eligibilityNode) ID() models.StepID { return models.StepEligibility }
func (n *eligibilityNode) Interactive() bool { return false }

func (n *eligibilityNode) Run(ctx context.Context, st models.AgentState, cfg *models.StudyConfig, deps Deps) (models.AgentState, string, error) {
	profile := evaluationProfile(st, cfg)
	outcome := eligibility.Evaluate(profile, cfg.Eligibility.Rules)

	st.EligibilityResult = outcome.Status
	st.EligibilityReason = outcome.Reason
	st.MissingFields = resolveDerived(outcome.MissingFields)

	switch outcome.Status {
	case models.EligibilityIneligible:
		st.HandoffReason = outcome.Reason
	case models.EligibilityUndetermined:
		// Rewind both collection stages; their skip logic re-asks only what
		// is still missing. A missing field whose stored value could not be
		// used (an unparsable date of birth, say) is cleared from the profile
		// AND from the recorded answers, so the revisit actually re-asks it
		// instead of auto-filling from the same stale value.
		st.GroupCursor = 0
		st.PrescreenCursor = 0
		missing := make(map[string]bool, len(st.MissingFields))
		for _, f := range st.MissingFields {
			missing[f] = true
			delete(st.Profile, f)
		}
		for _, q := range cfg.PreScreen.Questions {
			if q.ProfileField != "" && missing[q.ProfileField] {
				missing[q.ID] = true
			}
		}
		var kept []models.PrescreenAnswer
		for _, ans := range st.PrescreenAnswers {
			if !missing[ans.QuestionID] {
				kept = append(kept, ans)
			}
		}
		st.PrescreenAnswers = kept
	}

	if st.LeadID != "" && outcome.Status != models.EligibilityUndetermined {
		if err := deps.Leads.UpdateLeadEligibility(st.LeadID, outcome.Status); err != nil {
			return st, "", &CollaboratorError{Op: "lead eligibility update", Err: err}
		}
	}
	return st, "", nil
}

// evaluationProfile merges the collected profile, the pre-screen answers
// (under both question id and mapped profile field), and derived values
// into the flat document the rules engine reads.
func evaluationProfile(st models.AgentState, cfg *models.StudyConfig) map[string]string {
	profile := make(map[string]string, len(st.Profile)+len(st.PrescreenAnswers))
	for k, v := range st.Profile {
		profile[k] = v
	}
	for _, ans := range st.PrescreenAnswers {
		if _, ok := profile[ans.QuestionID]; !ok {
			profile[ans.QuestionID] = ans.Answer
		}
	}
	for _, q := range cfg.PreScreen.Questions {
		if q.ProfileField == "" {
			continue
		}
		if ans, ok := st.AnswerFor(q.ID); ok {
			if _, present := profile[q.ProfileField]; !present {
				profile[q.ProfileField] = ans
			}
		}
	}
	if _, ok := profile["age"]; !ok {
		if dob, ok := profile["date_of_birth"]; ok {
			if age, ok := ageFromDOB(dob, time.Now()); ok {
				profile["age"] = strconv.Itoa(age)
			}
		}
	}
	return profile
}

// ageFromDOB computes whole years elapsed since a YYYY-MM-DD birth date.
func ageFromDOB(dob string, now time.Time) (int, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(dob))
	if err != nil {
		return 0, false
	}
	age := now.Year() - t.Year()
	if now.Month() < t.Month() || (now.Month() == t.Month() && now.Day() < t.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

func resolveDerived(missing []string) []string {
	if len(missing) == 0 {
		return missing
	}
	out := make([]string, 0, len(missing))
	seen := make(map[string]bool, len(missing))
	for _, f := range missing {
		if src, ok := derivedFields[f]; ok {
			f = src
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Default scheduling options used when the study config leaves them out.
var (
	defaultSchedulingDays  = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	defaultSchedulingTimes = []string{"Morning", "Afternoon", "Evening"}
)

// schedulingNode offers eligible participants a day/time multi-select and
// records the preference for the coordinator handoff.
type schedulingNode struct{}

func (n *schedulingNode) ID() models.StepID { return models.StepScheduling }
func (n *schedulingNode) Interactive() bool { return true }

func (n *schedulingNode) Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt) {
	msg := cfg.Messaging.SchedulingPrompt
	if msg == "" {
		msg = "Great news, you may qualify! Which days and times usually work for you?"
	}
	return st, &Prompt{Message: msg, Fields: schedulingFields(cfg)}
}

func schedulingFields(cfg *models.StudyConfig) []models.FieldDescriptor {
	days := cfg.Scheduling.Days
	if len(days) == 0 {
		days = defaultSchedulingDays
	}
	times := cfg.Scheduling.Times
	if len(times) == 0 {
		times = defaultSchedulingTimes
	}
	return []models.FieldDescriptor{
		{Name: "preferred_days", Type: "multi_select", Label: "Preferred days", Options: days},
		{Name: "preferred_times", Type: "multi_select", Label: "Preferred times", Options: times},
	}
}

func (n *schedulingNode) Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error) {
	days := in.FieldStrings("preferred_days")
	times := in.FieldStrings("preferred_times")

	var selection []string
	selection = append(selection, days...)
	selection = append(selection, times...)
	if len(selection) == 0 && !in.IsForm() {
		// Free-text fallback: treat a comma list as the preference.
		for _, part := range strings.Split(in.Raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				selection = append(selection, p)
			}
		}
	}
	if len(selection) == 0 {
		st2, p := n.Enter(st, cfg)
		return st2, p, nil
	}

	st.SchedulingSelection = selection
	st.HandoffReason = models.ReasonQualified
	return st, nil, nil
}

// handoffNode is the terminal step. It snapshots the session state into an
// insert-only handoff record for the site team and closes the session with
// the reason-appropriate farewell.
type handoffNode struct{}

func (n *handoffNode) ID() models.StepID { return models.StepHandoff }
func (n *handoffNode) Interactive() bool { return false }

func (n *handoffNode) Run(ctx context.Context, st models.AgentState, cfg *models.StudyConfig, deps Deps) (models.AgentState, string, error) {
	if st.HandoffReason == "" {
		st.HandoffReason = st.EligibilityReason
	}
	st.Done = true

	snapshot, err := json.Marshal(st)
	if err != nil {
		return st, "", fmt.Errorf("failed to snapshot session state: %w", err)
	}
	_, err = deps.Handoffs.CreateHandoff(models.Handoff{
		LeadID:        st.LeadID,
		SessionID:     st.SessionID,
		Reason:        st.HandoffReason,
		StateSnapshot: string(snapshot),
	})
	if err != nil {
		return st, "", &CollaboratorError{Op: "handoff create", Err: err}
	}
	return st, farewell(st, cfg), nil
}

// farewell picks the closing message for the handoff reason.
func farewell(st models.AgentState, cfg *models.StudyConfig) string {
	switch st.HandoffReason {
	case models.ReasonQualified:
		if cfg.Messaging.Qualified != "" {
			return cfg.Messaging.Qualified
		}
		return "You're all set! Our team will reach out to confirm your appointment."
	case models.ReasonPinExhausted:
		if cfg.Messaging.PinFailure != "" {
			return cfg.Messaging.PinFailure
		}
		return "We couldn't verify your identity. A coordinator will follow up with you directly."
	default:
		if cfg.Messaging.Disqualification != "" {
			return cfg.Messaging.Disqualification
		}
		return "Thank you for your time. Based on your answers, this study isn't a fit right now."
	}
}
