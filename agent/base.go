package agent

import (
	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
)

// BaseAgent bundles the descriptor and shared plumbing for concrete agent
// implementations. Embed it and supply a Produce method to satisfy
// core.Agent.
type BaseAgent struct {
	desc   core.AgentDescriptor
	logger logging.Logger
}

// NewBaseAgent constructs a BaseAgent from a descriptor.
func NewBaseAgent(desc core.AgentDescriptor, logger logging.Logger) BaseAgent {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return BaseAgent{desc: desc, logger: logger}
}

// Descriptor returns the agent's static configuration.
func (b *BaseAgent) Descriptor() core.AgentDescriptor { return b.desc }

// Role returns the agent's role identity.
func (b *BaseAgent) Role() core.Role { return b.desc.Role }

// Logger returns the agent's structured logger.
func (b *BaseAgent) Logger() logging.Logger { return b.logger }
