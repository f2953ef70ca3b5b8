// Package engine implements the conversation orchestration core: a
// turn-based node graph with auto-advancing non-interactive steps, a pure
// routing function, and a bounded graph executor.
//
// Each node is a pure transformation over the agent state. Side effects
// (lead lookup/create, handoff creation) are issued through the repository
// interfaces in Deps, never embedded in the node logic itself.
package engine

import (
	"context"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
	"github.com/GautamArjun/rrc-chat-ui/internal/store"
)

// Deps holds the persistence collaborators nodes may call. The engine
// consumes these interfaces; it never implements them.
type Deps struct {
	Leads    store.LeadRepo
	Handoffs store.HandoffRepo
}

// Prompt is what an interactive node emits when the turn pauses: the
// templated message plus the widget descriptors the caller renders.
type Prompt struct {
	Message string
	Field   string
	Fields  []models.FieldDescriptor
	Options []string
}

// Node is one named step in the screening graph.
type Node interface {
	ID() models.StepID
	Interactive() bool
}

// AutoNode runs without user input during the auto-advance loop. The
// returned fragment, when non-empty, is appended to the turn's response
// message.
type AutoNode interface {
	Node
	Run(ctx context.Context, st models.AgentState, cfg *models.StudyConfig, deps Deps) (models.AgentState, string, error)
}

// InteractiveNode pauses the turn for user input.
//
// Enter produces the node's prompt for the current state; a nil prompt
// means the node has nothing left to ask (everything already on record)
// and the executor keeps advancing. Resume applies the user's input; a
// non-nil reprompt means local validation failed and the turn pauses again
// at the same node without advancing.
type InteractiveNode interface {
	Node
	Enter(st models.AgentState, cfg *models.StudyConfig) (models.AgentState, *Prompt)
	Resume(ctx context.Context, st models.AgentState, in models.TurnInput, cfg *models.StudyConfig, deps Deps) (models.AgentState, *Prompt, error)
}

// Catalog is the registry of declared nodes, keyed by step id.
type Catalog struct {
	nodes map[models.StepID]Node
}

// NewCatalog builds the full screening node catalog.
func NewCatalog() *Catalog {
	c := &Catalog{nodes: make(map[models.StepID]Node)}
	c.register(
		&greetingNode{},
		&consentNode{},
		&identityCollectionNode{},
		&leadLookupNode{},
		&createLeadNode{},
		&pinAuthNode{},
		&profileCollectionNode{},
		&prescreenNode{},
		&eligibilityNode{},
		&schedulingNode{},
		&handoffNode{},
	)
	return c
}

func (c *Catalog) register(nodes ...Node) {
	for _, n := range nodes {
		c.nodes[n.ID()] = n
	}
}

// Get returns the node registered for a step id.
func (c *Catalog) Get(id models.StepID) (Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// Declared reports whether a step id names a registered node.
func (c *Catalog) Declared(id models.StepID) bool {
	_, ok := c.nodes[id]
	return ok
}
