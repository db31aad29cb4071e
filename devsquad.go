// Package devsquad provides a high-level façade over the orchestration core:
// the event bus, the deterministic selector router, the agent set and the
// turn-loop orchestrator. Most applications interact with this package by:
//  1. Creating a Squad via New() with a reasoning model and an executor
//  2. Optionally wiring a memory store and custom personas
//  3. Running tasks with Run()
//
// The façade delegates orchestration to orchestrator.Orchestrator while
// keeping setup concise. Defaults are safe for local development: the
// executor runs on the host, memory is disabled and logging is off.
package devsquad

import (
	"context"
	"io"
	"time"

	"github.com/forgeworks/devsquad/agent"
	"github.com/forgeworks/devsquad/bus"
	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
	"github.com/forgeworks/devsquad/model"
	"github.com/forgeworks/devsquad/orchestrator"
	"github.com/forgeworks/devsquad/persona"
	"github.com/forgeworks/devsquad/router"
)

// Options configures a Squad.
type Options struct {
	// Personas overrides the built-in system instructions per role.
	Personas persona.Set

	// Memory enables scoped retrieval for memory-enabled roles.
	Memory core.MemoryStore

	// MemoryRoles lists the roles allowed to query memory. Defaults to the
	// Manager only: scoping retrieval to the coordinating role keeps
	// standards text out of the implementers' prompts.
	MemoryRoles []core.Role

	// MemoryTopK is the number of snippets requested per retrieval.
	MemoryTopK int

	// MaxAttempts bounds the execution/review retry budget.
	MaxAttempts int

	// MaxTurns bounds total agent turns per task.
	MaxTurns int

	// WorkDir is the host directory mounted into the sandbox. Defaults to
	// the process working directory.
	WorkDir string

	// ExecTimeout bounds a single sandboxed run.
	ExecTimeout time.Duration

	// Audit, when set, receives every published message as a JSON line.
	Audit io.Writer

	// Usage, when set, aggregates reasoning token consumption.
	Usage *model.UsageTracker

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Squad is the high-level façade aggregating the bus, router, agents and
// orchestrator for the five-role development protocol.
type Squad struct {
	opts Options
	orch *orchestrator.Orchestrator
	bus  *bus.Bus
}

// New assembles a squad around a reasoning model and a code executor.
func New(m model.Model, exec core.Executor, optFns ...func(o *Options)) *Squad {
	opts := Options{
		Personas:    persona.Defaults(),
		MemoryRoles: []core.Role{core.RoleManager},
		MemoryTopK:  orchestrator.DefaultMemoryTopK,
		MaxAttempts: orchestrator.DefaultMaxAttempts,
		MaxTurns:    orchestrator.DefaultMaxTurns,
		WorkDir:     ".",
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	memoryEnabled := make(map[core.Role]bool, len(opts.MemoryRoles))
	if opts.Memory != nil {
		for _, r := range opts.MemoryRoles {
			memoryEnabled[r] = true
		}
	}

	descs := []core.AgentDescriptor{
		{Role: core.RoleManager, Description: "plans work and confirms completion", MemoryEnabled: memoryEnabled[core.RoleManager]},
		{Role: core.RoleBackendDev, Description: "implements server-side scripts", MemoryEnabled: memoryEnabled[core.RoleBackendDev]},
		{Role: core.RoleFrontendDev, Description: "implements user-facing scripts", MemoryEnabled: memoryEnabled[core.RoleFrontendDev]},
		{Role: core.RoleQAEngineer, Description: "reviews execution output", MemoryEnabled: memoryEnabled[core.RoleQAEngineer]},
		{Role: core.RoleExecutor, Description: "runs code in the sandbox"},
	}

	agents := make([]core.Agent, 0, len(descs))
	for _, d := range descs {
		if d.Role == core.RoleExecutor {
			agents = append(agents, agent.NewExecutorAgent(d, exec, opts.WorkDir, opts.ExecTimeout, opts.Logger))
			continue
		}
		agents = append(agents, agent.NewReasoningAgent(d, opts.Personas.For(d.Role), m, opts.Logger))
	}

	b := bus.New(bus.WithLogger(opts.Logger))
	orch := orchestrator.New(b, router.New(descs), agents,
		orchestrator.WithMaxAttempts(opts.MaxAttempts),
		orchestrator.WithMaxTurns(opts.MaxTurns),
		orchestrator.WithMemory(opts.Memory),
		orchestrator.WithMemoryTopK(opts.MemoryTopK),
		orchestrator.WithAudit(opts.Audit),
		orchestrator.WithUsage(opts.Usage),
		orchestrator.WithLogger(opts.Logger),
	)
	return &Squad{opts: opts, orch: orch, bus: b}
}

// Run executes one task to completion and returns its terminal result.
func (s *Squad) Run(ctx context.Context, task string) (*orchestrator.Result, error) {
	return s.orch.RunTask(ctx, task)
}

// Bus exposes the underlying event bus for observers.
func (s *Squad) Bus() *bus.Bus { return s.bus }
