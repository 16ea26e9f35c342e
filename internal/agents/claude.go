package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shanewwarren/fresher-sub000/internal/vcs"
)

// ClaudeAgent runs the claude CLI in non-interactive stream-json mode.
type ClaudeAgent struct {
	cfg      Config
	renderer Renderer
	logger   *log.Logger
}

// NewClaudeAgent creates a Claude agent. A nil renderer discards events and
// a nil logger discards diagnostics.
func NewClaudeAgent(cfg Config, renderer Renderer, logger *log.Logger) *ClaudeAgent {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Revisions == nil {
		cfg.Revisions = vcs.New(cfg.WorkDir)
	}
	if renderer == nil {
		renderer = NullRenderer{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ClaudeAgent{cfg: cfg, renderer: renderer, logger: logger}
}

// BuildArgs returns the command-line arguments for one invocation. Session
// persistence is always disabled and no resume flag is ever passed, so each
// invocation starts from a fresh context.
func (a *ClaudeAgent) BuildArgs(prompt string) []string {
	args := []string{"-p", prompt}
	if a.cfg.SystemPromptFile != "" {
		args = append(args, "--append-system-prompt-file", a.cfg.SystemPromptFile)
	}
	if a.cfg.DangerousPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	args = append(args,
		"--output-format", "stream-json",
		"--max-turns", strconv.Itoa(a.cfg.MaxTurns),
		"--no-session-persistence",
	)
	if a.cfg.Model != "" {
		args = append(args, "--model", a.cfg.Model)
	}
	args = append(args, "--verbose")
	return append(args, a.cfg.Args...)
}

// Run executes one iteration. A non-zero exit status is reported in the
// Outcome; the returned error is non-nil only when the process could not be
// started.
func (a *ClaudeAgent) Run(ctx context.Context, it Iteration) (Outcome, error) {
	out := Outcome{LogPath: it.LogPath}
	out.StartRevision = a.revision(ctx)

	rawLog := newRawLog(it.RawLog)
	start := time.Now()
	proc, err := startProcess(ctx, a.cfg, a.BuildArgs(it.Prompt))
	if err != nil {
		return out, fmt.Errorf("start %s: %w", a.cfg.Binary, err)
	}
	a.logger.Debug("agent started", "iteration", it.Number, "pid", proc.cmd.Process.Pid)

	stream := &streamState{renderer: a.renderer, rawLog: rawLog, logger: a.logger}
	readErr := stream.consume(proc.ctx, proc.stdout, proc.stderr)
	runErr := proc.wait()
	out.Duration = time.Since(start)
	out.ExitCode = exitCodeFromError(runErr)
	out.Result = stream.result
	out.Malformed = stream.malformed

	if readErr != nil {
		a.logger.Warn("reading agent output", "err", readErr)
	}
	if errors.Is(runErr, exec.ErrWaitDelay) {
		a.logger.Warn("agent left a background process holding its output; stopped reading", "iteration", it.Number, "after", waitDelay)
	}
	if proc.timedOut() {
		a.logger.Error("agent timed out", "iteration", it.Number, "timeout", a.cfg.Timeout)
	}

	out.EndRevision = a.revision(ctx)
	out.WorkHappened = out.EndRevision != "" && out.EndRevision != out.StartRevision
	if out.WorkHappened {
		n, err := a.cfg.Revisions.CountCommits(ctx, out.StartRevision, out.EndRevision)
		if err != nil {
			a.logger.Warn("counting commits", "err", err)
		}
		out.Commits = n
	}
	return out, nil
}

func (a *ClaudeAgent) revision(ctx context.Context) string {
	rev, err := a.cfg.Revisions.Head(ctx)
	if err != nil {
		a.logger.Warn("reading repository revision", "err", err)
		return ""
	}
	return rev
}
