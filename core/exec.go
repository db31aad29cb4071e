package core

import (
	"context"
	"time"
)

// ExecutionRequest describes one sandboxed run of a script. A request is
// consumed exactly once by an Executor.
type ExecutionRequest struct {
	// Language selects the interpreter ("python", "bash", "sh"). Empty
	// defaults to the shell.
	Language string
	// Script is the full script body to execute.
	Script string
	// WorkDir is the mounted workspace directory. It is the only legitimate
	// channel for artifacts to survive across attempts of the same task.
	WorkDir string
	// Timeout bounds wall-clock execution time. Zero applies the executor's
	// default.
	Timeout time.Duration
}

// ExecutionResult is the terminal, immutable outcome of one execution. A
// non-zero exit code is a normal result, never an error.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// TimedOut is set when the script was killed at the timeout boundary.
	TimedOut bool
}

// Success reports whether the execution completed normally with exit code 0.
func (r ExecutionResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Executor runs scripts inside an isolated environment. Run blocks until the
// script finishes or the timeout elapses. It returns an error only for
// infrastructure faults (see ErrProvision); failing user scripts are normal
// results.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}
