package core

import "context"

// Agent is a polymorphic participant in the orchestration loop. Concrete
// implementations produce one message per turn from a stable transcript
// snapshot. The orchestrator never inspects role identity beyond dispatch,
// so new roles are addable without touching the turn loop.
type Agent interface {
	// Descriptor returns the agent's static configuration.
	Descriptor() AgentDescriptor

	// Produce generates this agent's next message. The transcript slice is a
	// read-only snapshot; snippets carry retrieved memory for agents whose
	// descriptor enables it (nil otherwise) and must not leak into the
	// returned message body beyond informing its content.
	Produce(ctx context.Context, transcript []Message, snippets []Snippet) (Message, error)
}
