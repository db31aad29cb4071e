// Package sandbox implements the isolated execution contract: run a script,
// capture exit status and output, never treat a failing user script as an
// error. Two adapters are provided: a Docker CLI adapter for real isolation
// and a process adapter for tests and trusted local development. Both share
// timeout enforcement (process group kill), output truncation and the
// provisioning-fault escalation rule.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
)

const (
	// DefaultTimeout bounds a single execution when the request carries none.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxOutputBytes caps captured stdout/stderr to bound memory and
	// downstream prompt size.
	DefaultMaxOutputBytes = 64 * 1024

	// TruncationMarker is appended to any output stream cut at the ceiling.
	TruncationMarker = "\n[... output truncated ...]"
)

// Options are shared settings for the executor adapters.
type Options struct {
	// Timeout applies when a request does not set one.
	Timeout time.Duration
	// MaxOutputBytes is the per-stream capture ceiling.
	MaxOutputBytes int
	// Logger receives execution diagnostics.
	Logger logging.Logger
}

func defaultOptions() Options {
	return Options{
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		Logger:         logging.NoOpLogger{},
	}
}

// WithTimeout sets the default execution timeout.
func WithTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxOutputBytes sets the per-stream output ceiling.
func WithMaxOutputBytes(n int) func(o *Options) {
	return func(o *Options) { o.MaxOutputBytes = n }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// truncate enforces the output ceiling, appending an explicit marker when
// anything was cut.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + TruncationMarker
}

// interpreterFor maps a request language to an interpreter argv. Unknown
// languages fall back to the shell.
func interpreterFor(language string) []string {
	switch language {
	case "python", "python3", "py":
		return []string{"python3"}
	case "bash":
		return []string{"bash"}
	case "sh", "shell", "":
		return []string{"sh"}
	default:
		return []string{"sh"}
	}
}

// scriptExtension returns the file extension for a request language.
func scriptExtension(language string) string {
	switch language {
	case "python", "python3", "py":
		return ".py"
	default:
		return ".sh"
	}
}

// writeScript materializes the script body inside the workspace so both the
// process and the container adapters can reach it. The workspace is the only
// state shared across attempts; the script file itself is removed by the
// caller after the run.
func writeScript(workDir, language, body string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create workspace %s: %v", core.ErrProvision, workDir, err)
	}
	name := fmt.Sprintf("attempt_%s%s", core.NewID()[:8], scriptExtension(language))
	path := filepath.Join(workDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("%w: write script: %v", core.ErrProvision, err)
	}
	return path, nil
}
