// Package orchestrator drives the turn loop: seed the bus with the task,
// let the router pick the next agent, hand retrieved memory to agents whose
// descriptor allows it, publish every produced message, and enforce the
// bounded self-healing protocol around sandboxed execution. At most one
// agent is active at a time; the loop suspends while an execution is in
// flight, so the sandbox is a serially-used resource per task.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/forgeworks/devsquad/bus"
	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
	"github.com/forgeworks/devsquad/model"
	"github.com/forgeworks/devsquad/router"
)

const (
	// DefaultMaxAttempts bounds the self-healing retry loop.
	DefaultMaxAttempts = 3
	// DefaultMaxTurns bounds the total number of agent turns per task.
	DefaultMaxTurns = 20
	// DefaultMemoryTopK is the number of snippets retrieved per query.
	DefaultMemoryTopK = 3
)

// Options configures an Orchestrator.
type Options struct {
	// MaxAttempts bounds the shared execution/review retry budget.
	MaxAttempts int
	// MaxTurns aborts tasks whose conversation never converges.
	MaxTurns int
	// Memory enables scoped retrieval for memory-enabled descriptors.
	Memory core.MemoryStore
	// MemoryTopK is the number of snippets requested per retrieval.
	MemoryTopK int
	// Audit, when set, receives every published message as a JSON line.
	Audit io.Writer
	// Usage, when set, is reported in task results.
	Usage *model.UsageTracker
	// Logger receives turn-loop diagnostics.
	Logger logging.Logger
}

// WithMaxAttempts sets the retry budget.
func WithMaxAttempts(n int) func(o *Options) { return func(o *Options) { o.MaxAttempts = n } }

// WithMaxTurns sets the turn budget.
func WithMaxTurns(n int) func(o *Options) { return func(o *Options) { o.MaxTurns = n } }

// WithMemory enables scoped retrieval from the given store.
func WithMemory(m core.MemoryStore) func(o *Options) { return func(o *Options) { o.Memory = m } }

// WithMemoryTopK sets the snippets-per-query count.
func WithMemoryTopK(k int) func(o *Options) { return func(o *Options) { o.MemoryTopK = k } }

// WithAudit streams every published message to w as JSON lines.
func WithAudit(w io.Writer) func(o *Options) { return func(o *Options) { o.Audit = w } }

// WithUsage attaches a token usage tracker surfaced in results.
func WithUsage(t *model.UsageTracker) func(o *Options) { return func(o *Options) { o.Usage = t } }

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) { return func(o *Options) { o.Logger = l } }

// Orchestrator owns the event bus, the agent set and the router, and runs
// tasks to a terminal state. Each task gets its own transcript, retry state
// and bus topic; the orchestrator itself keeps no cross-task state, so one
// instance can run independent tasks sequentially or several instances can
// share stateless executors and memory stores.
type Orchestrator struct {
	bus    *bus.Bus
	router *router.Router
	agents map[core.Role]core.Agent
	opts   Options
}

// Result is the terminal outcome of one task.
type Result struct {
	TaskID   string
	State    TaskState
	Attempts int
	Turns    int
	// LastError carries the most recent failure text for FAILED tasks.
	LastError string
	// Final is the terminal message (DONE or ERROR).
	Final core.Message
	// Transcript is the full attempt history.
	Transcript []core.Message
	// Usage aggregates reasoning token consumption when tracking is enabled.
	Usage model.TokenUsage
}

// New creates an orchestrator over the given agents. The router must be
// declared over the same roles.
func New(b *bus.Bus, r *router.Router, agents []core.Agent, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		MaxTurns:    DefaultMaxTurns,
		MemoryTopK:  DefaultMemoryTopK,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	byRole := make(map[core.Role]core.Agent, len(agents))
	for _, a := range agents {
		byRole[a.Descriptor().Role] = a
	}
	return &Orchestrator{bus: b, router: r, agents: byRole, opts: opts}
}

// RunTask executes one task to a terminal state. The returned error is nil
// exactly when the task ends DONE; FAILED tasks carry the classifying
// sentinel (core.ErrAttemptsExhausted, core.ErrProvision, core.ErrReasoning,
// core.ErrNoEligibleRole, core.ErrTurnBudget) or the context error on
// cancellation. The Result is always populated with the attempt history.
func (o *Orchestrator) RunTask(ctx context.Context, task string) (*Result, error) {
	taskID := core.NewID()
	topic := "task/" + taskID
	transcript := core.NewTranscript()
	retry := NewRetryState(taskID, o.opts.MaxAttempts)
	state := StatePlanning

	appender := o.transcriptAppender(transcript)
	o.bus.Subscribe(topic, appender)
	defer o.bus.Unsubscribe(topic, appender)

	seed := core.NewMessage(topic, core.RoleUser, core.KindPlan, task)
	o.bus.Publish(topic, seed)
	o.opts.Logger.Info("task started", "task_id", taskID, "max_attempts", o.opts.MaxAttempts)

	turns := 0
	fail := func(cause error, body string) (*Result, error) {
		state = StateFailed
		retry.Cancel()
		errMsg := core.NewMessage(topic, core.RoleNone, core.KindError, body)
		if last, ok := transcript.Last(); ok {
			errMsg = errMsg.WithParent(last.ID)
		}
		o.bus.Publish(topic, errMsg)
		o.opts.Logger.Warn("task failed", "task_id", taskID, "cause", cause.Error(), "attempts", retry.Attempts)
		return o.result(taskID, state, retry, turns, body, errMsg, transcript), cause
	}

	for {
		// Cancellation lands only at turn boundaries; an in-flight run is
		// never interrupted except through its own timeout.
		if err := ctx.Err(); err != nil {
			return fail(err, "task cancelled: "+err.Error())
		}
		if turns >= o.opts.MaxTurns {
			return fail(core.ErrTurnBudget, fmt.Sprintf("no convergence after %d turns", turns))
		}

		snap := transcript.Snapshot()
		role, err := o.router.SelectNext(snap, retry.Exhausted())
		if err != nil {
			return fail(err, "routing fault: "+err.Error())
		}
		if role == core.RoleNone {
			break
		}

		a, ok := o.agents[role]
		if !ok {
			return fail(fmt.Errorf("%w: role %s has no registered agent", core.ErrNoEligibleRole, role),
				"routing fault: no agent for role "+string(role))
		}

		snippets, err := o.retrieve(ctx, a.Descriptor(), snap)
		if err != nil {
			// Retrieval trouble degrades the prompt, not the task.
			o.opts.Logger.Warn("memory retrieval failed", "role", string(role), "error", err.Error())
			snippets = nil
		}

		msg, err := a.Produce(ctx, snap, snippets)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrProvision):
				return fail(err, "infrastructure fault: "+err.Error())
			case errors.Is(err, core.ErrReasoning):
				return fail(err, "reasoning fault: "+err.Error())
			default:
				return fail(err, "agent fault: "+err.Error())
			}
		}
		turns++

		// Self-healing bookkeeping: failed executions and failed reviews
		// draw from the same budget. When the budget is spent the failing
		// message is replaced by a terminal ERROR so no further attempt is
		// ever requested.
		if msg.Failed() {
			if !retry.RecordFailure(msg.Body) {
				return fail(fmt.Errorf("%w: %d attempts", core.ErrAttemptsExhausted, retry.Attempts),
					"retry budget exhausted\nlast failure:\n"+msg.Body)
			}
			o.opts.Logger.Info("attempt failed, retrying",
				"task_id", taskID, "kind", string(msg.Kind),
				"attempt", retry.Attempts, "max_attempts", retry.MaxAttempts)
		}

		o.bus.Publish(topic, msg)
		state = nextState(state, msg)
		o.opts.Logger.Debug("turn complete",
			"task_id", taskID, "turn", turns, "role", string(role),
			"kind", string(msg.Kind), "state", state.String())

		if state.Terminal() {
			break
		}
	}

	final, _ := transcript.Last()
	if state == StateDone {
		o.opts.Logger.Info("task done", "task_id", taskID, "turns", turns, "attempts", retry.Attempts)
		return o.result(taskID, state, retry, turns, "", final, transcript), nil
	}
	// Router returned the terminal sentinel without a DONE message; the
	// budget bookkeeping above already published the ERROR in every such
	// path, so this is unreachable in practice but kept total.
	return o.result(taskID, StateFailed, retry, turns, retry.LastError, final, transcript),
		core.ErrAttemptsExhausted
}

// retrieve queries the memory store for agents whose descriptor enables it.
// The query is the most recent message body, which for the opening turn is
// the task description itself.
func (o *Orchestrator) retrieve(ctx context.Context, desc core.AgentDescriptor, snap []core.Message) ([]core.Snippet, error) {
	if !desc.MemoryEnabled || o.opts.Memory == nil || len(snap) == 0 {
		return nil, nil
	}
	return o.opts.Memory.Query(ctx, snap[len(snap)-1].Body, o.opts.MemoryTopK)
}

// transcriptAppender mirrors every published message into the task
// transcript and the audit stream.
func (o *Orchestrator) transcriptAppender(t *core.Transcript) bus.Subscriber {
	var enc *json.Encoder
	if o.opts.Audit != nil {
		enc = json.NewEncoder(o.opts.Audit)
	}
	return bus.SubscriberFunc(func(m core.Message) {
		t.Append(m)
		if enc != nil {
			if err := enc.Encode(m); err != nil {
				o.opts.Logger.Warn("audit write failed", "message_id", m.ID, "error", err.Error())
			}
		}
	})
}

// nextState advances the state machine on a published message.
func nextState(state TaskState, msg core.Message) TaskState {
	switch msg.Kind {
	case core.KindPlan:
		if state == StatePlanning {
			return StateImplementing
		}
		return state
	case core.KindCode:
		return StateExecuting
	case core.KindExecResult:
		if msg.Verdict == core.VerdictPass {
			return StateReviewing
		}
		return StateImplementing
	case core.KindReview:
		if msg.Verdict == core.VerdictPass {
			// DONE still requires the manager's confirmation.
			return StateReviewing
		}
		return StateImplementing
	case core.KindDone:
		return StateDone
	case core.KindError:
		return StateFailed
	default:
		return state
	}
}

func (o *Orchestrator) result(taskID string, state TaskState, retry *RetryState, turns int, lastErr string, final core.Message, t *core.Transcript) *Result {
	res := &Result{
		TaskID:     taskID,
		State:      state,
		Attempts:   retry.Attempts,
		Turns:      turns,
		LastError:  lastErr,
		Final:      final,
		Transcript: t.Snapshot(),
	}
	if res.LastError == "" {
		res.LastError = retry.LastError
	}
	if o.opts.Usage != nil {
		res.Usage = o.opts.Usage.Total()
	}
	return res
}
