package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/devsquad/core"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "short", truncate("short", 0), "zero limit disables truncation")

	long := strings.Repeat("a", 100)
	got := truncate(long, 10)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", 10)))
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
}

func TestInterpreterFor(t *testing.T) {
	assert.Equal(t, []string{"python3"}, interpreterFor("python"))
	assert.Equal(t, []string{"python3"}, interpreterFor("py"))
	assert.Equal(t, []string{"bash"}, interpreterFor("bash"))
	assert.Equal(t, []string{"sh"}, interpreterFor(""))
	assert.Equal(t, []string{"sh"}, interpreterFor("ruby"))
}

func TestWriteScript(t *testing.T) {
	dir := t.TempDir()
	path, err := writeScript(dir, "python", "print(1)\n")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".py"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", string(content))
}

func TestProcessExecutor_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	e := NewProcessExecutor()

	res, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "sh",
		Script:   "echo hello\necho oops >&2\n",
		WorkDir:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
	assert.Contains(t, res.Stderr, "oops")
	assert.False(t, res.TimedOut)
}

func TestProcessExecutor_NonZeroExitIsNotAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	e := NewProcessExecutor()

	res, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "sh",
		Script:   "exit 3\n",
		WorkDir:  t.TempDir(),
	})
	require.NoError(t, err, "a failing script is a result, not an error")
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
}

func TestProcessExecutor_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	e := NewProcessExecutor()

	start := time.Now()
	res, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "sh",
		Script:   "sleep 30\n",
		WorkDir:  t.TempDir(),
		Timeout:  200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Success())
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, res.Stderr, "timed out")
}

func TestProcessExecutor_CancellationIsNotATimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	e := NewProcessExecutor()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.Run(ctx, core.ExecutionRequest{
		Language: "sh",
		Script:   "sleep 30\n",
		WorkDir:  t.TempDir(),
		Timeout:  time.Minute,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrProvision)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestProcessExecutor_OutputTruncation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	e := NewProcessExecutor(WithMaxOutputBytes(32))

	res, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "sh",
		Script:   "i=0; while [ $i -lt 100 ]; do echo aaaaaaaaaa; i=$((i+1)); done\n",
		WorkDir:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Stdout, TruncationMarker))
	assert.LessOrEqual(t, len(res.Stdout), 32+len(TruncationMarker))
}

func TestProcessExecutor_WorkspacePersistsAcrossRuns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	e := NewProcessExecutor()
	dir := t.TempDir()

	_, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "sh",
		Script:   "echo state > state.txt\n",
		WorkDir:  dir,
	})
	require.NoError(t, err)

	res, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "sh",
		Script:   "cat state.txt\n",
		WorkDir:  dir,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "state")

	// The attempt scripts themselves do not accumulate in the workspace.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, ent := range entries {
		assert.False(t, strings.HasPrefix(ent.Name(), "attempt_"))
	}
}

func TestProcessExecutor_MissingInterpreter(t *testing.T) {
	e := NewProcessExecutor()
	t.Setenv("PATH", t.TempDir())

	_, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "python",
		Script:   "print(1)",
		WorkDir:  t.TempDir(),
	})
	assert.ErrorIs(t, err, core.ErrProvision)
}

func TestDockerExecutor_MissingBinaryIsProvisioningFault(t *testing.T) {
	e := NewDockerExecutor("python:3.12-slim").
		Configure(WithBinary("definitely-not-a-docker-binary"))

	_, err := e.Run(context.Background(), core.ExecutionRequest{
		Language: "python",
		Script:   "print(1)",
		WorkDir:  t.TempDir(),
	})
	assert.ErrorIs(t, err, core.ErrProvision)
}

// stubDockerBinary writes an executable that mimics the docker CLI exiting
// with the given code and returns its path.
func stubDockerBinary(t *testing.T, exitCode int, stderr string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-stub")
	script := "#!/bin/sh\n"
	if stderr != "" {
		script += "echo '" + stderr + "' >&2\n"
	}
	script += "exit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDockerExecutor_ExitCodeClassification(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh stub not available")
	}

	// Docker's own 125-127 range means the container never ran the script;
	// anything below is the script's own result.
	tests := []struct {
		name         string
		exitCode     int
		provisioning bool
	}{
		{"DaemonError", 125, true},
		{"CommandNotRunnable", 126, true},
		{"CommandNotFound", 127, true},
		{"ScriptFailure", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewDockerExecutor("python:3.12-slim").
				Configure(WithBinary(stubDockerBinary(t, tt.exitCode, "stub diagnostics")))

			res, err := e.Run(context.Background(), core.ExecutionRequest{
				Language: "python",
				Script:   "print(1)",
				WorkDir:  t.TempDir(),
			})
			if tt.provisioning {
				require.ErrorIs(t, err, core.ErrProvision)
				assert.Contains(t, err.Error(), "stub diagnostics")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exitCode, res.ExitCode)
			assert.False(t, res.TimedOut)
			assert.Contains(t, res.Stderr, "stub diagnostics")
		})
	}
}
