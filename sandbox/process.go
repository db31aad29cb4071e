package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/forgeworks/devsquad/core"
)

// ProcessExecutor runs scripts as local child processes confined to the
// request's working directory. It honors the full Executor contract (timeout
// kill, truncation, independence between calls) but offers no OS-level
// isolation, so it is intended for tests and trusted local development.
// Use DockerExecutor when the code is untrusted.
type ProcessExecutor struct {
	opts Options
}

var _ core.Executor = (*ProcessExecutor)(nil)

// NewProcessExecutor creates a process-backed executor.
func NewProcessExecutor(optFns ...func(o *Options)) *ProcessExecutor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ProcessExecutor{opts: opts}
}

// Run implements core.Executor.
func (e *ProcessExecutor) Run(ctx context.Context, req core.ExecutionRequest) (core.ExecutionResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.opts.Timeout
	}

	workDir, err := filepath.Abs(req.WorkDir)
	if err != nil {
		return core.ExecutionResult{}, fmt.Errorf("%w: resolve workspace: %v", core.ErrProvision, err)
	}

	scriptPath, err := writeScript(workDir, req.Language, req.Script)
	if err != nil {
		return core.ExecutionResult{}, err
	}
	defer os.Remove(scriptPath)

	argv := append(interpreterFor(req.Language), scriptPath)
	if _, err := exec.LookPath(argv[0]); err != nil {
		return core.ExecutionResult{}, fmt.Errorf("%w: interpreter %s: %v", core.ErrProvision, argv[0], err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir

	raw := runCommand(ctx, cmd, timeout)
	if raw.startErr != nil {
		return core.ExecutionResult{}, fmt.Errorf("%w: start process: %v", core.ErrProvision, raw.startErr)
	}
	if raw.ctxErr != nil {
		return core.ExecutionResult{}, fmt.Errorf("execution canceled: %w", raw.ctxErr)
	}

	res := raw.finish(e.opts.MaxOutputBytes, timeout)
	e.opts.Logger.Debug("process execution finished",
		"language", req.Language, "exit_code", res.ExitCode,
		"timed_out", res.TimedOut, "duration", res.Duration.String())
	return res, nil
}
