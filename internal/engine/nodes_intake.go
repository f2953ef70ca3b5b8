package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// greetingNode opens the conversation. It runs exactly once, at session
// bootstrap, and its message carries the consent ask so the very next user
// reply lands on the consent node.
type greetingNode struct{}

func (n *greetingNode) ID() models.StepID { return models.StepGreeting }
func (n *greetingNode) Interactive() bool { return false }

func (n *greetingNode) Run(ctx context.Context, st models.AgentState, cfg *models.StudyConfig, deps Deps) (models.AgentState, string, error) {
	msg := strings.TrimSpace(cfg.Messaging.Greeting + " " + cfg.Messaging.ConsentPrompt)
	return st, msg, nil
}

var (
	consentYesRe = regexp.MustCompile(`(?i)\b(yes|yeah|yep|sure|ok|okay|agree|interested|absolutely)\b`)
	consentNoRe  = regexp.MustCompile(`(?i)\b(no|nope|not interested|stop|decline)\b`)
)

// consentNode records the participant's decision. An affirmative advances,
// a negative ends the session politely, anything else gets one more ask.
type consentNode struct{}

func (n *consentNode) ID() models.StepID { return models.StepConsent }
func (n *consentNode) Interactive() bool { return true }

func (n *consentNode) Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt) {
	return st, &Prompt{Message: cfg.Messaging.ConsentPrompt}
}

func (n *consentNode) Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error) {
	text := strings.TrimSpace(in.Raw)
	switch {
	case consentNoRe.MatchString(text):
		st.ConsentGiven = false
		st.Done = true
		return st, &Prompt{Message: cfg.Messaging.ConsentDeclined}, nil
	case consentYesRe.MatchString(text):
		st.ConsentGiven = true
		return st, nil, nil
	default:
		return st, &Prompt{Message: cfg.Messaging.ConsentReprompt}, nil
	}
}

var (
	emailRe = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}`)
)

// identityCollectionNode gathers the contact identity used for lead lookup.
// It accepts a structured form submission or free text, from which email and
// phone are extracted.
type identityCollectionNode struct{}

func (n *identityCollectionNode) ID() models.StepID { return models.StepIdentityCollection }
func (n *identityCollectionNode) Interactive() bool { return true }

func identityFields() []models.FieldDescriptor {
	return []models.FieldDescriptor{
		{Name: "email", Type: "text", Label: "Email address"},
		{Name: "phone", Type: "text", Label: "Phone number"},
	}
}

func (n *identityCollectionNode) Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt) {
	return st, &Prompt{Message: cfg.Messaging.IdentityPrompt, Fields: identityFields()}
}

func (n *identityCollectionNode) Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error) {
	email := strings.TrimSpace(in.FieldString("email"))
	phone := strings.TrimSpace(in.FieldString("phone"))
	if email == "" {
		email = emailRe.FindString(in.Raw)
	}
	if phone == "" {
		phone = phoneRe.FindString(in.Raw)
	}
	if !emailRe.MatchString(email) || countDigits(phone) < 7 {
		return st, &Prompt{Message: cfg.Messaging.IdentityReprompt, Fields: identityFields()}, nil
	}
	st.Identity = models.Identity{Email: email, Phone: phone}
	return st, nil, nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// leadLookupNode checks the lead repository for an existing record matching
// the collected identity. A hit seeds the session profile from the lead so
// known participants are not re-asked.
type leadLookupNode struct{}

func (n *leadLookupNode) ID() models.StepID { return models.StepLeadLookup }
func (n *leadLookupNode) Interactive() bool { return false }

func (n *leadLookupNode) Run(ctx context.Context, st models.AgentState, cfg *models.StudyConfig, deps Deps) (models.AgentState, string, error) {
	lead, err := deps.Leads.LookupLead(st.Identity.Email, st.Identity.Phone)
	if err != nil {
		return st, "", &CollaboratorError{Op: "lead lookup", Err: err}
	}
	if lead == nil {
		st.LeadFound = false
		return st, cfg.Messaging.LookupAck, nil
	}
	st.LeadFound = true
	st.LeadID = lead.ID
	st.LeadHasPIN = lead.PINCode != ""
	st.LeadPIN = lead.PINCode
	for k, v := range lead.Profile {
		if _, ok := st.Profile[k]; !ok && v != "" {
			st.SetProfileField(k, v)
		}
	}
	return st, cfg.Messaging.LookupAck, nil
}

// createLeadNode registers a brand-new lead carrying identity only. The
// profile fills in as collection proceeds.
type createLeadNode struct{}

func (n *createLeadNode) ID() models.StepID { return models.StepCreateLead }
func (n *createLeadNode) Interactive() bool { return false }

func (n *createLeadNode) Run(ctx context.Context, st models.AgentState, cfg *models.StudyConfig, deps Deps) (models.AgentState, string, error) {
	lead, err := deps.Leads.CreateLead(st.Identity, st.StudyID, st.SessionID)
	if err != nil {
		return st, "", &CollaboratorError{Op: "lead create", Err: err}
	}
	st.LeadID = lead.ID
	return st, "", nil
}

// pinAuthNode verifies a returning lead's PIN. Every mismatch consumes one
// attempt; exhausting the ceiling marks the session for handoff instead of
// looping forever.
type pinAuthNode struct{}

func (n *pinAuthNode) ID() models.StepID { return models.StepPinAuth }
func (n *pinAuthNode) Interactive() bool { return true }

func (n *pinAuthNode) Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt) {
	return st, &Prompt{Message: cfg.Messaging.PinPrompt, Field: "pin"}
}

func (n *pinAuthNode) Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error) {
	submitted := digitsOnly(in.FieldString("pin"))
	if submitted == "" {
		submitted = digitsOnly(in.Raw)
	}
	if submitted != "" && submitted == st.LeadPIN {
		st.PinVerified = true
		st.LeadPIN = ""
		return st, nil, nil
	}
	st.PinAttempts++
	if st.PinAttempts >= cfg.MaxPinAttempts() {
		st.LeadPIN = ""
		st.HandoffReason = models.ReasonPinExhausted
		return st, nil, nil
	}
	remaining := cfg.MaxPinAttempts() - st.PinAttempts
	msg := cfg.Messaging.PinRetry
	if msg == "" {
		msg = fmt.Sprintf("That PIN does not match. %d attempt(s) remaining.", remaining)
	}
	return st, &Prompt{Message: msg, Field: "pin"}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
