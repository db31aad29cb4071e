package core

// Role identifies a participant in the orchestration loop.
type Role string

const (
	// RoleUser authors the seeding task message. It never speaks again.
	RoleUser Role = "User"
	// RoleManager plans, coordinates and terminates the task. It is the only
	// role with memory retrieval enabled by default.
	RoleManager Role = "Manager"
	// RoleBackendDev writes server-side code artifacts.
	RoleBackendDev Role = "BackendDev"
	// RoleFrontendDev writes client-side code artifacts.
	RoleFrontendDev Role = "FrontendDev"
	// RoleQAEngineer verifies artifacts and issues review verdicts.
	RoleQAEngineer Role = "QAEngineer"
	// RoleExecutor runs code artifacts inside the sandbox.
	RoleExecutor Role = "Executor"
	// RoleNone is the terminal selection sentinel: no further turns.
	RoleNone Role = ""
)

// DeveloperRoles are the roles that author code artifacts. Failure routing
// hands execution and review failures back to the most recent of these.
var DeveloperRoles = []Role{RoleBackendDev, RoleFrontendDev, RoleQAEngineer}

// IsDeveloper reports whether the role authors executable artifacts.
func (r Role) IsDeveloper() bool {
	for _, d := range DeveloperRoles {
		if r == d {
			return true
		}
	}
	return false
}

// AgentDescriptor is the static configuration of one agent. It is created at
// startup and immutable thereafter.
type AgentDescriptor struct {
	// Role is the agent's identity in the handoff protocol.
	Role Role
	// Description is a short human-readable summary of the agent's duty.
	Description string
	// Handoff lists the roles this agent may hand the conversation to. An
	// empty set means the handoff table alone decides.
	Handoff []Role
	// MemoryEnabled grants the agent access to memory retrieval. Retrieved
	// snippets augment only this agent's prompts and never enter the
	// transcript.
	MemoryEnabled bool
}

// MayHandOff reports whether the descriptor permits handing off to next.
// Descriptors with an empty Handoff set permit every role.
func (d AgentDescriptor) MayHandOff(next Role) bool {
	if len(d.Handoff) == 0 {
		return true
	}
	for _, r := range d.Handoff {
		if r == next {
			return true
		}
	}
	return false
}
