package engine

import (
	"fmt"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

// RoutingError reports a corrupt or unroutable state: an unknown step id, a
// routing precondition that does not hold, or an auto-advance chain that
// exceeded the executor bound. It aborts the turn without persisting.
type RoutingError struct {
	Step   models.StepID
	Reason string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing failed at step %q: %s", e.Step, e.Reason)
}

// CollaboratorError wraps a failure from a persistence collaborator (session
// store, lead repository, handoff repository). The turn is aborted and the
// pre-turn state remains current.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
