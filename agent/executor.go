package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
)

// ExecutorAgent is the one agent bound to a tool: it extracts the code
// artifact from the most recent CODE message, runs it through the sandbox
// executor and reports the outcome as an EXEC_RESULT message. It performs no
// reasoning of its own.
type ExecutorAgent struct {
	BaseAgent
	executor core.Executor
	workDir  string
	timeout  time.Duration
}

var _ core.Agent = (*ExecutorAgent)(nil)

// NewExecutorAgent constructs the sandbox-bound agent. workDir is the task's
// mounted workspace, shared across attempts of the same task only.
func NewExecutorAgent(desc core.AgentDescriptor, executor core.Executor, workDir string, timeout time.Duration, logger logging.Logger) *ExecutorAgent {
	return &ExecutorAgent{
		BaseAgent: NewBaseAgent(desc, logger),
		executor:  executor,
		workDir:   workDir,
		timeout:   timeout,
	}
}

// Produce implements core.Agent. Provisioning faults propagate as errors
// wrapping core.ErrProvision; failing scripts are normal fail-verdict
// results.
func (a *ExecutorAgent) Produce(ctx context.Context, transcript []core.Message, _ []core.Snippet) (core.Message, error) {
	artifact, ok := lastCode(transcript)
	if !ok {
		return core.Message{}, fmt.Errorf("agent %s: no code artifact in transcript", a.Role())
	}

	blocks := ExtractCodeBlocks(artifact.Body)
	if len(blocks) == 0 {
		// The artifact was tagged CODE but carries nothing runnable; hand
		// that back to the developer as a failing result.
		msg := core.NewMessage(artifact.Topic, a.Role(), core.KindExecResult,
			"no executable code block found in the last message").
			WithVerdict(core.VerdictFail).
			WithParent(artifact.ID)
		return msg, nil
	}

	// Every block runs, in order of appearance, each in its own request.
	// A failing block short-circuits: its successors never execute.
	runs := CoalesceBlocks(blocks)
	verdict := core.VerdictPass
	var bodies []string
	for i, b := range runs {
		req := core.ExecutionRequest{
			Language: b.Language,
			Script:   b.Code,
			WorkDir:  a.workDir,
			Timeout:  a.timeout,
		}

		res, err := a.executor.Run(ctx, req)
		if err != nil {
			return core.Message{}, fmt.Errorf("agent %s: %w", a.Role(), err)
		}
		a.Logger().Debug("sandbox execution reported",
			"language", b.Language, "exit_code", res.ExitCode, "timed_out", res.TimedOut)

		body := formatResult(res)
		if len(runs) > 1 {
			body = fmt.Sprintf("block %d/%d (%s)\n%s", i+1, len(runs), b.Language, body)
		}
		bodies = append(bodies, body)

		if !res.Success() {
			verdict = core.VerdictFail
			break
		}
	}

	msg := core.NewMessage(artifact.Topic, a.Role(), core.KindExecResult, strings.Join(bodies, "\n\n")).
		WithVerdict(verdict).
		WithParent(artifact.ID)
	return msg, nil
}

// lastCode returns the most recent CODE message.
func lastCode(transcript []core.Message) (core.Message, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Kind == core.KindCode {
			return transcript[i], true
		}
	}
	return core.Message{}, false
}

// formatResult renders an execution outcome for the transcript. Stderr is
// carried verbatim so the next selected developer sees the concrete error.
func formatResult(res core.ExecutionResult) string {
	body := fmt.Sprintf("exit code: %d", res.ExitCode)
	if res.TimedOut {
		body += " (timed out)"
	}
	if res.Stdout != "" {
		body += "\nstdout:\n" + res.Stdout
	}
	if res.Stderr != "" {
		body += "\nstderr:\n" + res.Stderr
	}
	return body
}
