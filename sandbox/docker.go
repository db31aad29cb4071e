package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/forgeworks/devsquad/core"
)

// containerWorkDir is where the workspace is mounted inside the container.
const containerWorkDir = "/workspace"

// Docker's own exit codes for daemon/contact/launch failures. Anything a
// container's user script produces stays below this range.
const (
	dockerExitDaemon      = 125
	dockerExitNotRunnable = 126
	dockerExitNotFound    = 127
)

// DockerExecutor runs scripts inside a disposable container via the docker
// CLI. The workspace directory is bind-mounted read-write; the network is
// disabled; each invocation uses a fresh container (--rm), so nothing
// persists between calls except workspace files. A pre-baked image is
// expected to carry the interpreters the team emits.
type DockerExecutor struct {
	image  string
	binary string
	opts   Options
}

var _ core.Executor = (*DockerExecutor)(nil)

// DockerOption customizes a DockerExecutor beyond the shared Options.
type DockerOption func(e *DockerExecutor)

// WithBinary overrides the container CLI binary (e.g. "podman").
func WithBinary(bin string) DockerOption {
	return func(e *DockerExecutor) { e.binary = bin }
}

// NewDockerExecutor creates a Docker-backed executor for the given image.
func NewDockerExecutor(image string, optFns ...func(o *Options)) *DockerExecutor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &DockerExecutor{image: image, binary: "docker", opts: opts}
}

// Configure applies DockerOptions after construction.
func (e *DockerExecutor) Configure(optFns ...DockerOption) *DockerExecutor {
	for _, fn := range optFns {
		fn(e)
	}
	return e
}

// Run implements core.Executor.
func (e *DockerExecutor) Run(ctx context.Context, req core.ExecutionRequest) (core.ExecutionResult, error) {
	if _, err := exec.LookPath(e.binary); err != nil {
		return core.ExecutionResult{}, fmt.Errorf("%w: %s not available: %v", core.ErrProvision, e.binary, err)
	}

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

	interpreter := interpreterFor(req.Language)
	args := []string{
		"run", "--rm",
		"--network", "none",
		"-v", workDir + ":" + containerWorkDir,
		"-w", containerWorkDir,
		e.image,
	}
	args = append(args, interpreter...)
	args = append(args, containerWorkDir+"/"+filepath.Base(scriptPath))

	cmd := exec.Command(e.binary, args...)

	raw := runCommand(ctx, cmd, timeout)
	if raw.startErr != nil {
		return core.ExecutionResult{}, fmt.Errorf("%w: start %s: %v", core.ErrProvision, e.binary, raw.startErr)
	}
	if raw.ctxErr != nil {
		return core.ExecutionResult{}, fmt.Errorf("execution canceled: %w", raw.ctxErr)
	}

	// Exit codes in docker's own range mean the container never ran the
	// script: daemon unreachable, image missing, interpreter absent. Those
	// are infrastructure faults, not script results, and retrying the code
	// loop will not fix them.
	if !raw.timedOut {
		switch raw.exitCode {
		case dockerExitDaemon, dockerExitNotRunnable, dockerExitNotFound:
			return core.ExecutionResult{}, fmt.Errorf("%w: %s exited %d: %s",
				core.ErrProvision, e.binary, raw.exitCode, truncate(raw.stderr, 1024))
		}
	}

	res := raw.finish(e.opts.MaxOutputBytes, timeout)
	e.opts.Logger.Debug("docker execution finished",
		"image", e.image, "language", req.Language, "exit_code", res.ExitCode,
		"timed_out", res.TimedOut, "duration", res.Duration.String())
	return res, nil
}
