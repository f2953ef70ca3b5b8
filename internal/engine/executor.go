package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
	"github.com/GautamArjun/rrc-chat-ui/internal/store"
)

// DefaultMaxAutoAdvance bounds the auto-advance chain within a single turn.
// A well-formed study config never comes close; hitting the bound means the
// graph is cycling and the turn is aborted instead of spinning.
const DefaultMaxAutoAdvance = 16

// Opts holds the engine configuration applied by Option functions.
type Opts struct {
	MaxAutoAdvance int
}

// Option configures the Engine.
type Option func(*Opts)

// WithMaxAutoAdvance overrides the per-turn auto-advance bound.
func WithMaxAutoAdvance(n int) Option {
	return func(o *Opts) {
		o.MaxAutoAdvance = n
	}
}

// Engine executes screening turns: it resumes the paused node with the
// user's input, then advances through auto nodes and empty prompts until
// the conversation pauses again or ends. State is persisted exactly once
// per successful turn; a failed turn leaves the stored state untouched.
type Engine struct {
	catalog  *Catalog
	sessions store.SessionStore
	deps     Deps
	maxAuto  int
}

// New creates an Engine over the given persistence collaborators.
func New(sessions store.SessionStore, leads store.LeadRepo, handoffs store.HandoffRepo, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxAutoAdvance <= 0 {
		cfg.MaxAutoAdvance = DefaultMaxAutoAdvance
	}
	return &Engine{
		catalog:  NewCatalog(),
		sessions: sessions,
		deps:     Deps{Leads: leads, Handoffs: handoffs},
		maxAuto:  cfg.MaxAutoAdvance,
	}
}

// Bootstrap seeds a fresh session at the greeting node, runs it, and
// persists the initial state. Bootstrapping the same session id again just
// replays the greeting without touching stored progress.
func (e *Engine) Bootstrap(ctx context.Context, cfg *models.StudyConfig, sessionID string) (models.AgentState, models.TurnResponse, error) {
	slog.Debug("Engine.Bootstrap invoked", "session_id", sessionID, "study_id", cfg.Study.ID)
	if existing, err := e.sessions.LoadSession(sessionID); err != nil {
		return models.AgentState{}, models.TurnResponse{}, &CollaboratorError{Op: "session load", Err: err}
	} else if existing != nil {
		return existing.State, e.Describe(existing.State, cfg), nil
	}
	st := models.NewAgentState(sessionID, cfg.Study.ID)

	node, _ := e.catalog.Get(models.StepGreeting)
	greeting := node.(AutoNode)
	st, fragment, err := greeting.Run(ctx, st, cfg, e.deps)
	if err != nil {
		return st, models.TurnResponse{}, err
	}
	if err := e.save(st); err != nil {
		return st, models.TurnResponse{}, err
	}
	return st, buildResponse(st, nil, []string{fragment}), nil
}

// Step applies one user message to the session. The returned state is the
// persisted post-turn state; on error the pre-turn state remains current.
func (e *Engine) Step(ctx context.Context, cfg *models.StudyConfig, st models.AgentState, raw string) (models.AgentState, models.TurnResponse, error) {
	if st.Done {
		return st, models.TurnResponse{}, models.ErrSessionDone
	}
	slog.Debug("Engine.Step invoked", "session_id", st.SessionID, "step", st.CurrentStep)

	node, ok := e.catalog.Get(st.CurrentStep)
	if !ok {
		return st, models.TurnResponse{}, &RoutingError{Step: st.CurrentStep, Reason: models.ErrUnknownStep.Error()}
	}

	// A turn normally pauses on an interactive node. The one exception is
	// the bootstrap greeting, whose reply belongs to the node that follows.
	inode, interactive := node.(InteractiveNode)
	if !interactive {
		next, err := Route(st, cfg)
		if err != nil {
			return st, models.TurnResponse{}, err
		}
		st.CurrentStep = next
		nextNode, _ := e.catalog.Get(next)
		inode, interactive = nextNode.(InteractiveNode)
		if !interactive {
			return st, models.TurnResponse{}, &RoutingError{Step: next, Reason: "input arrived at a non-interactive step"}
		}
	}

	in := models.ParseTurnInput(raw)
	st, reprompt, err := inode.Resume(ctx, st, in, cfg, e.deps)
	if err != nil {
		slog.Error("Engine.Step resume failed", "error", err, "session_id", st.SessionID, "step", st.CurrentStep)
		return st, models.TurnResponse{}, err
	}
	if reprompt != nil {
		if err := e.save(st); err != nil {
			return st, models.TurnResponse{}, err
		}
		return st, buildResponse(st, reprompt, nil), nil
	}

	return e.advance(ctx, cfg, st, nil)
}

// advance walks the graph until an interactive node produces a prompt, the
// session ends, or the bound is hit. Empty prompts and auto nodes both keep
// the chain moving.
func (e *Engine) advance(ctx context.Context, cfg *models.StudyConfig, st models.AgentState, fragments []string) (models.AgentState, models.TurnResponse, error) {
	for i := 0; i < e.maxAuto; i++ {
		if st.Done {
			if err := e.save(st); err != nil {
				return st, models.TurnResponse{}, err
			}
			return st, buildResponse(st, nil, fragments), nil
		}

		next, err := Route(st, cfg)
		if err != nil {
			slog.Error("Engine.advance routing failed", "error", err, "session_id", st.SessionID, "step", st.CurrentStep)
			return st, models.TurnResponse{}, err
		}
		st.CurrentStep = next
		node, _ := e.catalog.Get(next)

		switch n := node.(type) {
		case InteractiveNode:
			var prompt *Prompt
			st, prompt = n.Enter(st, cfg)
			if prompt != nil {
				if err := e.save(st); err != nil {
					return st, models.TurnResponse{}, err
				}
				return st, buildResponse(st, prompt, fragments), nil
			}
		case AutoNode:
			var fragment string
			st, fragment, err = n.Run(ctx, st, cfg, e.deps)
			if err != nil {
				slog.Error("Engine.advance node failed", "error", err, "session_id", st.SessionID, "step", st.CurrentStep)
				return st, models.TurnResponse{}, err
			}
			if fragment != "" {
				fragments = append(fragments, fragment)
			}
		}
	}
	return st, models.TurnResponse{}, &RoutingError{Step: st.CurrentStep, Reason: "auto-advance bound exceeded"}
}

// Describe re-emits the descriptor for the session's current position
// without advancing or persisting anything. Used for session reads and for
// messages arriving after the conversation ended.
func (e *Engine) Describe(st models.AgentState, cfg *models.StudyConfig) models.TurnResponse {
	if st.Done {
		msg := farewell(st, cfg)
		if !st.ConsentGiven && st.HandoffReason == "" {
			msg = cfg.Messaging.ConsentDeclined
		}
		return buildResponse(st, &Prompt{Message: msg}, nil)
	}
	node, ok := e.catalog.Get(st.CurrentStep)
	if !ok {
		return buildResponse(st, nil, nil)
	}
	if inode, interactive := node.(InteractiveNode); interactive {
		if _, prompt := inode.Enter(st, cfg); prompt != nil {
			return buildResponse(st, prompt, nil)
		}
		return buildResponse(st, nil, nil)
	}
	// Only the bootstrap greeting pauses on an auto node.
	msg := strings.TrimSpace(cfg.Messaging.Greeting + " " + cfg.Messaging.ConsentPrompt)
	return buildResponse(st, &Prompt{Message: msg}, nil)
}

func (e *Engine) save(st models.AgentState) error {
	err := e.sessions.SaveSession(models.Session{
		SessionID: st.SessionID,
		StudyID:   st.StudyID,
		State:     st,
	})
	if err != nil {
		slog.Error("Engine session save failed", "error", err, "session_id", st.SessionID)
		return &CollaboratorError{Op: "session save", Err: err}
	}
	return nil
}

// buildResponse assembles the turn descriptor: auto-node fragments joined
// with the pausing prompt's message, typed by what the caller must render.
func buildResponse(st models.AgentState, prompt *Prompt, fragments []string) models.TurnResponse {
	parts := make([]string, 0, len(fragments)+1)
	for _, f := range fragments {
		if f != "" {
			parts = append(parts, f)
		}
	}
	if prompt != nil && prompt.Message != "" {
		parts = append(parts, prompt.Message)
	}

	resp := models.TurnResponse{
		SessionID: st.SessionID,
		Step:      st.CurrentStep,
		Message:   strings.Join(parts, " "),
		Type:      models.ResponseTypeText,
		Done:      st.Done,
	}
	if prompt != nil {
		resp.Field = prompt.Field
		resp.Fields = prompt.Fields
		resp.Options = prompt.Options
		if len(prompt.Fields) > 0 {
			resp.Type = models.ResponseTypeForm
		}
	}
	if st.Done {
		resp.Type = models.ResponseTypeEnd
	}
	return resp
}
