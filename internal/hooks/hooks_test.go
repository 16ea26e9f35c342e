package hooks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeHook writes an executable shell script named after the hook.
func writeHook(t *testing.T, dir string, name Name, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("hook scripts are shell scripts")
	}
	path := filepath.Join(dir, string(name))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

func newRunner(t *testing.T) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, logs bytes.Buffer
	return &Runner{
		Dir:     t.TempDir(),
		WorkDir: t.TempDir(),
		Timeout: 5 * time.Second,
		Enabled: true,
		Logger:  log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel}),
		Stdout:  &out,
		Stderr:  &out,
	}, &out, &logs
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		hook       Name
		exit       int
		wantV      Verdict
		wantStatus Status
	}{
		{"zero continues", NextIteration, 0, Continue, StatusRan},
		{"one skips next_iteration", NextIteration, 1, Skip, StatusRan},
		{"one continues started", Started, 1, Continue, StatusRan},
		{"one continues finished", Finished, 1, Continue, StatusRan},
		{"two aborts", Started, 2, Abort, StatusRan},
		{"two aborts next_iteration", NextIteration, 2, Abort, StatusRan},
		{"other code continues", NextIteration, 7, Continue, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newRunner(t)
			writeHook(t, r.Dir, tt.hook, "exit "+strconv.Itoa(tt.exit))

			res := r.Run(context.Background(), tt.hook, Env{})
			assert.Equal(t, tt.wantV, res.Verdict)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.exit, res.ExitCode)
		})
	}
}

func TestRunMissingAndDisabled(t *testing.T) {
	r, _, _ := newRunner(t)

	res := r.Run(context.Background(), Started, Env{})
	assert.Equal(t, Continue, res.Verdict)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.NoError(t, res.Err)

	writeHook(t, r.Dir, Started, "exit 2")
	r.Enabled = false
	res = r.Run(context.Background(), Started, Env{})
	assert.Equal(t, Continue, res.Verdict)
	assert.Equal(t, StatusDisabled, res.Status)
}

func TestRunNotExecutable(t *testing.T) {
	r, _, _ := newRunner(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, string(Started)), []byte("#!/bin/sh\nexit 2\n"), 0o644))
	if runtime.GOOS == "windows" {
		t.Skip("no execute bit on windows")
	}

	res := r.Run(context.Background(), Started, Env{})
	assert.Equal(t, Continue, res.Verdict)
	assert.Equal(t, StatusNotExecutable, res.Status)

	require.NoError(t, os.Remove(filepath.Join(r.Dir, string(Started))))
	require.NoError(t, os.Mkdir(filepath.Join(r.Dir, string(Started)), 0o755))
	res = r.Run(context.Background(), Started, Env{})
	assert.Equal(t, StatusNotExecutable, res.Status)
}

func TestRunTimeout(t *testing.T) {
	r, _, logs := newRunner(t)
	r.Timeout = 200 * time.Millisecond
	writeHook(t, r.Dir, NextIteration, "sleep 10")

	start := time.Now()
	res := r.Run(context.Background(), NextIteration, Env{})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Continue, res.Verdict)
	assert.Equal(t, StatusTimeout, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, logs.String(), "hook timed out")
}

func TestRunEnvironment(t *testing.T) {
	r, out, _ := newRunner(t)
	writeHook(t, r.Dir, Finished, `echo "iter=$FRESHER_ITERATION mode=$FRESHER_MODE finish=$FRESHER_FINISH_TYPE dur=$FRESHER_DURATION_SECONDS commits=$FRESHER_TOTAL_COMMITS"; pwd`)

	res := r.Run(context.Background(), Finished, Env{
		Iteration:    3,
		Mode:         "building",
		TotalCommits: 2,
		FinishType:   "hook_abort",
		Duration:     90 * time.Second,
	})
	require.Equal(t, StatusRan, res.Status)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "iter=3 mode=building finish=hook_abort dur=90 commits=2", lines[0])

	wantDir, err := filepath.EvalSymlinks(r.WorkDir)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(lines[1])
	require.NoError(t, err)
	assert.Equal(t, wantDir, gotDir)
}

func TestEnvironPerHook(t *testing.T) {
	env := Env{
		Iteration:     2,
		Mode:          "planning",
		ProjectDir:    "/proj",
		MaxIterations: 5,
		LastExitCode:  1,
		LastDuration:  42 * time.Second,
		CommitsMade:   3,
		FinishType:    "complete",
		Duration:      10 * time.Second,
		LastCommitSHA: "abc",
	}

	next := env.Environ(NextIteration)
	assert.Contains(t, next, "FRESHER_ITERATION=2")
	assert.Contains(t, next, "FRESHER_MAX_ITERATIONS=5")
	assert.Contains(t, next, "FRESHER_LAST_EXIT_CODE=1")
	assert.Contains(t, next, "FRESHER_LAST_DURATION_SECONDS=42")
	assert.Contains(t, next, "FRESHER_COMMITS_MADE=3")
	assert.Contains(t, next, "FRESHER_LAST_COMMIT_SHA=abc")
	assert.NotContains(t, next, "FRESHER_FINISH_TYPE=complete")

	finished := env.Environ(Finished)
	assert.Contains(t, finished, "FRESHER_FINISH_TYPE=complete")
	assert.Contains(t, finished, "FRESHER_DURATION_SECONDS=10")
	assert.NotContains(t, finished, "FRESHER_COMMITS_MADE=3")

	started := env.Environ(Started)
	assert.Contains(t, started, "FRESHER_PROJECT_DIR=/proj")
	assert.NotContains(t, started, "FRESHER_LAST_EXIT_CODE=1")
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "abort", Abort.String())
}
