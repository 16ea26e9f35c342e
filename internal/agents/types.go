package agents

import (
	"context"
	"io"
	"time"
)

const (
	// ReadBufferSize is the initial buffer for reading agent output.
	ReadBufferSize = 64 * 1024

	// MaxStderrLineSize bounds a single stderr line.
	MaxStderrLineSize = 1024 * 1024

	// DefaultMaxTurns caps the agent's turns per iteration.
	DefaultMaxTurns = 50

	// DefaultBinary is the agent executable looked up on PATH.
	DefaultBinary = "claude"
)

// Revisions answers revision queries against the project repository.
type Revisions interface {
	Head(ctx context.Context) (string, error)
	CountCommits(ctx context.Context, from, to string) (uint, error)
}

// Config holds configuration for the agent subprocess.
type Config struct {
	// Binary is the path to the agent binary.
	Binary string

	// Model is passed as --model when set.
	Model string

	// MaxTurns is passed as --max-turns.
	MaxTurns int

	// DangerousPermissions adds --dangerously-skip-permissions.
	DangerousPermissions bool

	// SystemPromptFile is appended to the agent's system prompt when set.
	SystemPromptFile string

	// Args are additional arguments appended after the built-in ones.
	Args []string

	// WorkDir is the working directory for the agent command.
	WorkDir string

	// Timeout bounds one iteration. Zero or negative disables it.
	Timeout time.Duration

	// Env is appended to the inherited environment.
	Env []string

	// Revisions reports the repository revision. Nil uses git in WorkDir.
	Revisions Revisions
}

// Iteration is the input to a single agent run.
type Iteration struct {
	Number uint
	Prompt string

	// RawLog receives every stdout line verbatim plus framed stderr lines.
	RawLog io.Writer

	// LogPath is recorded in the Outcome for reference.
	LogPath string
}

// Outcome summarizes one agent run. It is not modified after Run returns.
type Outcome struct {
	ExitCode      int
	Duration      time.Duration
	Result        *ResultMessage
	WorkHappened  bool
	Commits       uint
	StartRevision string
	EndRevision   string
	LogPath       string
	Malformed     int
}

// Succeeded reports a zero exit status.
func (o Outcome) Succeeded() bool {
	return o.ExitCode == 0
}
