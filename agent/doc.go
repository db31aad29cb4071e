// Package agent provides the concrete participants of the orchestration
// loop: reasoning agents that delegate reply generation to an opaque model
// and classify the reply into the message protocol, and the executor agent
// that binds the sandbox as its tool. All agents embed BaseAgent for
// identity and descriptor handling.
package agent
