package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/forgeworks/devsquad/core"
)

// runResult is the raw outcome of one command run before truncation.
type runResult struct {
	exitCode int
	stdout   string
	stderr   string
	duration time.Duration
	timedOut bool
	// ctxErr is set when the caller's context ended the run; such a run is
	// neither a timeout nor a script result.
	ctxErr   error
	startErr error
}

// runCommand starts cmd, waits at most timeout, and kills the whole process
// group on expiry. A non-zero exit is reported in exitCode, never as an
// error; startErr is set only when the process could not be started at all.
func runCommand(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) runResult {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureCommandProcess(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return runResult{startErr: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	var ctxErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		terminateCommandProcess(cmd)
		<-done
		ctxErr = ctx.Err()
	case <-timer.C:
		terminateCommandProcess(cmd)
		<-done
		timedOut = true
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	if timedOut || ctxErr != nil {
		exitCode = -1
	}

	return runResult{
		exitCode: exitCode,
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		duration: time.Since(start),
		timedOut: timedOut,
		ctxErr:   ctxErr,
	}
}

// finish converts a raw run into the public result, applying truncation and
// the timeout marker.
func (r runResult) finish(maxOutput int, timeout time.Duration) core.ExecutionResult {
	stderr := truncate(r.stderr, maxOutput)
	if r.timedOut {
		if stderr != "" {
			stderr += "\n"
		}
		stderr += "execution timed out after " + timeout.String()
	}
	return core.ExecutionResult{
		ExitCode: r.exitCode,
		Stdout:   truncate(r.stdout, maxOutput),
		Stderr:   stderr,
		Duration: r.duration,
		TimedOut: r.timedOut,
	}
}
