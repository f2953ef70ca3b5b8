// Package notify alerts the site team when a screening session hands off.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// Notifier delivers a handoff alert. The API layer calls it after the
// handoff record is persisted; delivery failures are logged but never fail
// the participant's turn.
type Notifier interface {
	NotifyHandoff(ctx context.Context, handoff models.Handoff) error
}

// NoopNotifier discards alerts. Used when no coordinator number is
// configured.
type NoopNotifier struct{}

// NotifyHandoff does nothing.
func (NoopNotifier) NotifyHandoff(ctx context.Context, handoff models.Handoff) error {
	return nil
}

// Opts holds configuration options for the Twilio SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Option defines a configuration option for the Twilio SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithTo sets the coordinator phone number alerts are sent to.
func WithTo(to string) Option {
	return func(o *Opts) { o.To = to }
}

// TwilioNotifier sends handoff alerts as SMS messages to the study
// coordinator.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifier creates a notifier, falling back to TWILIO_* environment
// variables for anything not provided via options.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.To == "" {
		cfg.To = os.Getenv("COORDINATOR_PHONE")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"To_set", cfg.To != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("from and coordinator numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{client: client, from: cfg.From, to: cfg.To}, nil
}

// NotifyHandoff sends one SMS summarizing the handoff.
func (n *TwilioNotifier) NotifyHandoff(ctx context.Context, handoff models.Handoff) error {
	body := fmt.Sprintf("Screening handoff (%s): session %s", handoff.Reason, handoff.SessionID)
	if handoff.LeadID != "" {
		body += fmt.Sprintf(", lead %s", handoff.LeadID)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(body)

	_, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio handoff alert failed", "session_id", handoff.SessionID, "error", err)
		return fmt.Errorf("failed to send handoff alert: %w", err)
	}
	slog.Debug("Twilio handoff alert sent", "session_id", handoff.SessionID, "reason", handoff.Reason)
	return nil
}
