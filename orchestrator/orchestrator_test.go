package orchestrator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/devsquad/agent"
	"github.com/forgeworks/devsquad/bus"
	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/internal/testutil"
	"github.com/forgeworks/devsquad/model"
	"github.com/forgeworks/devsquad/orchestrator"
	"github.com/forgeworks/devsquad/router"
)

const factorialScript = "```python\nimport math\nprint(math.factorial(5))\n```"

// squad wires a full five-role agent set around scripted model replies and a
// fake executor.
type squad struct {
	descs []core.AgentDescriptor
	exec  *testutil.FakeExecutor
}

func newSquad(exec *testutil.FakeExecutor) *squad {
	return &squad{
		descs: []core.AgentDescriptor{
			{Role: core.RoleManager, MemoryEnabled: true},
			{Role: core.RoleBackendDev},
			{Role: core.RoleFrontendDev},
			{Role: core.RoleQAEngineer},
			{Role: core.RoleExecutor},
		},
		exec: exec,
	}
}

func (s *squad) agents(replies map[core.Role][]string) []core.Agent {
	out := make([]core.Agent, 0, len(s.descs))
	for _, d := range s.descs {
		if d.Role == core.RoleExecutor {
			out = append(out, agent.NewExecutorAgent(d, s.exec, ".", 5*time.Second, nil))
			continue
		}
		m := model.NewScriptedModel(string(d.Role), replies[d.Role]...)
		out = append(out, agent.NewReasoningAgent(d, "you are "+string(d.Role), m, nil))
	}
	return out
}

func (s *squad) build(replies map[core.Role][]string, optFns ...func(o *orchestrator.Options)) *orchestrator.Orchestrator {
	return orchestrator.New(bus.New(), router.New(s.descs), s.agents(replies), optFns...)
}

func TestRunTask_FactorialHappyPath(t *testing.T) {
	exec := testutil.NewFakeExecutor(core.ExecutionResult{ExitCode: 0, Stdout: "120\n"})
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager: {
			"Backend: write a python script that prints factorial(5).",
			"Factorial script verified. DONE",
		},
		core.RoleBackendDev: {factorialScript},
		core.RoleQAEngineer: {"PASS: output shows 120 as required"},
	})

	res, err := orch.RunTask(context.Background(), "write a script that prints factorial(5)")
	require.NoError(t, err)

	assert.Equal(t, orchestrator.StateDone, res.State)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 5, res.Turns)
	assert.Equal(t, core.KindDone, res.Final.Kind)

	// Seed plus one message per turn, in publish order.
	require.Len(t, res.Transcript, 6)
	kinds := make([]core.Kind, 0, len(res.Transcript))
	for _, m := range res.Transcript {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []core.Kind{
		core.KindPlan, core.KindPlan, core.KindCode,
		core.KindExecResult, core.KindReview, core.KindDone,
	}, kinds)

	// The executor ran exactly once with the developer's script.
	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "python", calls[0].Language)
	assert.Contains(t, calls[0].Script, "math.factorial(5)")
	assert.Contains(t, res.Transcript[3].Body, "120")
}

func TestRunTask_SelfHealingRetry(t *testing.T) {
	exec := testutil.NewFakeExecutor(
		core.ExecutionResult{ExitCode: 1, Stderr: "NameError: name 'factorial' is not defined"},
		core.ExecutionResult{ExitCode: 0, Stdout: "120\n"},
	)
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager: {
			"Backend: print factorial(5).",
			"Verified after the fix. DONE",
		},
		core.RoleBackendDev: {
			"```python\nprint(factorial(5))\n```",
			factorialScript,
		},
		core.RoleQAEngineer: {"PASS: correct output"},
	})

	res, err := orch.RunTask(context.Background(), "print factorial(5)")
	require.NoError(t, err)

	assert.Equal(t, orchestrator.StateDone, res.State)
	assert.Equal(t, 1, res.Attempts, "one failure drew from the budget")
	assert.Len(t, exec.Calls(), 2)

	// The failing result carried the concrete error text back to the author.
	var sawError bool
	for _, m := range res.Transcript {
		if m.Kind == core.KindExecResult && m.Verdict == core.VerdictFail {
			sawError = true
			assert.Contains(t, m.Body, "NameError")
		}
	}
	assert.True(t, sawError)
}

func TestRunTask_RetryBudgetExhausted(t *testing.T) {
	fail := core.ExecutionResult{ExitCode: 1, Stderr: "boom"}
	exec := testutil.NewFakeExecutor(fail, fail, fail)
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager: {"Backend: do the thing."},
		core.RoleBackendDev: {
			"```python\nraise SystemExit(1)\n```",
			"```python\nraise SystemExit(1)\n```",
			"```python\nraise SystemExit(1)\n```",
		},
	}, orchestrator.WithMaxAttempts(3))

	res, err := orch.RunTask(context.Background(), "doomed task")
	require.ErrorIs(t, err, core.ErrAttemptsExhausted)

	assert.Equal(t, orchestrator.StateFailed, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, exec.Calls(), 3, "no execution after the budget is spent")

	// The budget-spending failure is replaced by a terminal ERROR: the third
	// EXEC_RESULT never reaches the transcript.
	final := res.Transcript[len(res.Transcript)-1]
	assert.Equal(t, core.KindError, final.Kind)
	assert.Contains(t, final.Body, "retry budget exhausted")
	var execResults int
	for _, m := range res.Transcript {
		if m.Kind == core.KindExecResult {
			execResults++
		}
	}
	assert.Equal(t, 2, execResults)
}

func TestRunTask_InfrastructureFault(t *testing.T) {
	exec := (&testutil.FakeExecutor{}).
		FailWith(fmt.Errorf("%w: docker daemon not running", core.ErrProvision))
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager:    {"Backend: do the thing."},
		core.RoleBackendDev: {factorialScript},
	})

	res, err := orch.RunTask(context.Background(), "task")
	require.ErrorIs(t, err, core.ErrProvision)

	assert.Equal(t, orchestrator.StateFailed, res.State)
	assert.Equal(t, 0, res.Attempts, "infrastructure faults never draw from the retry budget")
	assert.Equal(t, core.KindError, res.Final.Kind)
	assert.Contains(t, res.Final.Body, "infrastructure fault")
}

func TestRunTask_TurnBudget(t *testing.T) {
	exec := testutil.NewFakeExecutor(core.ExecutionResult{ExitCode: 0, Stdout: "ok"})
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager:    {"Backend: do the thing."},
		core.RoleBackendDev: {factorialScript},
	}, orchestrator.WithMaxTurns(2))

	res, err := orch.RunTask(context.Background(), "task")
	require.ErrorIs(t, err, core.ErrTurnBudget)
	assert.Equal(t, orchestrator.StateFailed, res.State)
	assert.Equal(t, 2, res.Turns)
	assert.Equal(t, core.KindError, res.Final.Kind)
}

func TestRunTask_Cancellation(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager: {"plan"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := orch.RunTask(ctx, "task")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, orchestrator.StateFailed, res.State)
	assert.Equal(t, core.KindError, res.Final.Kind)
}

func TestRunTask_MemoryScoping(t *testing.T) {
	store := &testutil.RecordingStore{
		Snippets: []core.Snippet{{Content: "use math.factorial", Score: 0.9}},
	}
	exec := testutil.NewFakeExecutor(core.ExecutionResult{ExitCode: 0, Stdout: "120\n"})
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager: {
			"Backend: print factorial(5).",
			"All good. DONE",
		},
		core.RoleBackendDev: {factorialScript},
		core.RoleQAEngineer: {"PASS"},
	}, orchestrator.WithMemory(store))

	res, err := orch.RunTask(context.Background(), "print factorial(5)")
	require.NoError(t, err)
	require.Equal(t, orchestrator.StateDone, res.State)

	// Only the memory-enabled Manager queried, once per turn it took, each
	// scoped to the message it was responding to.
	queries := store.Queries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "factorial")
	assert.Contains(t, queries[1], "PASS")
}

func TestRunTask_AuditTrail(t *testing.T) {
	var audit bytes.Buffer
	exec := testutil.NewFakeExecutor(core.ExecutionResult{ExitCode: 0, Stdout: "120\n"})
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager:    {"Backend: print factorial(5).", "DONE"},
		core.RoleBackendDev: {factorialScript},
		core.RoleQAEngineer: {"PASS"},
	}, orchestrator.WithAudit(&audit))

	res, err := orch.RunTask(context.Background(), "print factorial(5)")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(audit.String()), "\n")
	require.Len(t, lines, len(res.Transcript))
	for i, line := range lines {
		var m core.Message
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		assert.Equal(t, res.Transcript[i].ID, m.ID)
		assert.Equal(t, res.Transcript[i].Kind, m.Kind)
	}
}

func TestRunTask_UsageReported(t *testing.T) {
	tracker := model.NewUsageTracker()
	tracker.Record(&model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})

	exec := testutil.NewFakeExecutor(core.ExecutionResult{ExitCode: 0, Stdout: "120\n"})
	sq := newSquad(exec)
	orch := sq.build(map[core.Role][]string{
		core.RoleManager:    {"Backend: print factorial(5).", "DONE"},
		core.RoleBackendDev: {factorialScript},
		core.RoleQAEngineer: {"PASS"},
	}, orchestrator.WithUsage(tracker))

	res, err := orch.RunTask(context.Background(), "print factorial(5)")
	require.NoError(t, err)
	assert.Equal(t, 15, res.Usage.TotalTokens)
}
