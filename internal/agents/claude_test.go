package agents

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRevisions struct {
	heads   []string
	calls   int
	commits uint
}

func (f *fakeRevisions) Head(context.Context) (string, error) {
	i := f.calls
	if i >= len(f.heads) {
		i = len(f.heads) - 1
	}
	f.calls++
	return f.heads[i], nil
}

func (f *fakeRevisions) CountCommits(context.Context, string, string) (uint, error) {
	return f.commits, nil
}

func writeFakeAgent(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestBuildArgs(t *testing.T) {
	a := NewClaudeAgent(Config{
		MaxTurns:             7,
		DangerousPermissions: true,
		SystemPromptFile:     ".fresher/AGENTS.md",
		Model:                "opus",
		Args:                 []string{"--extra"},
		Revisions:            &fakeRevisions{heads: []string{""}},
	}, nil, nil)

	args := a.BuildArgs("do work")
	assert.Equal(t, []string{
		"-p", "do work",
		"--append-system-prompt-file", ".fresher/AGENTS.md",
		"--dangerously-skip-permissions",
		"--output-format", "stream-json",
		"--max-turns", "7",
		"--no-session-persistence",
		"--model", "opus",
		"--verbose",
		"--extra",
	}, args)
	for _, arg := range args {
		assert.NotContains(t, []string{"--resume", "--continue", "-c", "-r"}, arg)
	}
}

func TestBuildArgsDefaults(t *testing.T) {
	a := NewClaudeAgent(Config{Revisions: &fakeRevisions{heads: []string{""}}}, nil, nil)
	args := a.BuildArgs("p")
	assert.Equal(t, []string{
		"-p", "p",
		"--output-format", "stream-json",
		"--max-turns", "50",
		"--no-session-persistence",
		"--verbose",
	}, args)
	assert.Equal(t, DefaultBinary, a.cfg.Binary)
}

func TestClaudeAgentRun(t *testing.T) {
	bin := writeFakeAgent(t, `
echo "warming up"
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}'
echo "oops on stderr" >&2
printf '%s' '{"type":"result","result":"finished","num_turns":2}'
`)
	revs := &fakeRevisions{heads: []string{"aaa", "bbb"}, commits: 2}
	var rendered bytes.Buffer
	agent := NewClaudeAgent(Config{Binary: bin, Revisions: revs}, NewConsoleRenderer(&rendered, false), nil)

	var raw bytes.Buffer
	out, err := agent.Run(context.Background(), Iteration{Number: 1, Prompt: "go", RawLog: &raw, LogPath: "it.jsonl"})
	require.NoError(t, err)

	assert.Equal(t, 0, out.ExitCode)
	assert.True(t, out.Succeeded())
	require.NotNil(t, out.Result)
	assert.Equal(t, "finished", out.Result.Result)
	assert.Equal(t, 1, out.Malformed)
	assert.True(t, out.WorkHappened)
	assert.EqualValues(t, 2, out.Commits)
	assert.Equal(t, "aaa", out.StartRevision)
	assert.Equal(t, "bbb", out.EndRevision)
	assert.Equal(t, "it.jsonl", out.LogPath)

	log := raw.String()
	assert.Contains(t, log, "warming up\n")
	assert.Contains(t, log, `"type":"stderr"`)
	assert.Contains(t, log, "oops on stderr")
	assert.True(t, strings.HasSuffix(log, `"num_turns":2}`+"\n"))

	assert.Contains(t, rendered.String(), "hello")
	assert.Contains(t, rendered.String(), "finished")
}

func TestClaudeAgentRunNoChanges(t *testing.T) {
	bin := writeFakeAgent(t, "exit 3\n")
	revs := &fakeRevisions{heads: []string{"aaa"}}
	agent := NewClaudeAgent(Config{Binary: bin, Revisions: revs}, nil, nil)

	out, err := agent.Run(context.Background(), Iteration{Number: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.False(t, out.Succeeded())
	assert.False(t, out.WorkHappened)
	assert.Zero(t, out.Commits)
	assert.Nil(t, out.Result)
}

func TestClaudeAgentRunSpawnFailure(t *testing.T) {
	agent := NewClaudeAgent(Config{
		Binary:    filepath.Join(t.TempDir(), "does-not-exist"),
		Revisions: &fakeRevisions{heads: []string{""}},
	}, nil, nil)

	_, err := agent.Run(context.Background(), Iteration{Number: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")
}

func TestClaudeAgentRunTimeout(t *testing.T) {
	bin := writeFakeAgent(t, "sleep 10\n")
	agent := NewClaudeAgent(Config{
		Binary:    bin,
		Timeout:   200 * time.Millisecond,
		Revisions: &fakeRevisions{heads: []string{""}},
	}, nil, nil)

	start := time.Now()
	out, err := agent.Run(context.Background(), Iteration{Number: 1})
	require.NoError(t, err)
	assert.NotEqual(t, 0, out.ExitCode)
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestClaudeAgentRunBackgroundChild(t *testing.T) {
	prev := waitDelay
	waitDelay = 200 * time.Millisecond
	t.Cleanup(func() { waitDelay = prev })

	bin := writeFakeAgent(t, `
sleep 6 &
echo '{"type":"result","result":"done"}'
`)
	agent := NewClaudeAgent(Config{Binary: bin, Revisions: &fakeRevisions{heads: []string{""}}}, nil, nil)

	start := time.Now()
	out, err := agent.Run(context.Background(), Iteration{Number: 1})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, 0, out.ExitCode)
	require.NotNil(t, out.Result)
	assert.Equal(t, "done", out.Result.Result)
}

func TestExitCodeFromError(t *testing.T) {
	assert.Equal(t, 0, exitCodeFromError(nil))
	assert.Equal(t, 0, exitCodeFromError(exec.ErrWaitDelay))
	assert.Equal(t, -1, exitCodeFromError(errors.New("boom")))
}
