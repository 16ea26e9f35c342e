// Package hooks runs the user's lifecycle scripts from .fresher/hooks.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shanewwarren/fresher-sub000/internal/utils"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 30 * time.Second

// waitDelay caps how long Wait blocks on inherited pipes after a kill.
const waitDelay = 2 * time.Second

// Name identifies a lifecycle hook.
type Name string

const (
	Started       Name = "started"
	NextIteration Name = "next_iteration"
	Finished      Name = "finished"
)

// Verdict is the control decision derived from a hook's exit code.
type Verdict int

const (
	Continue Verdict = iota
	Skip
	Abort
)

func (v Verdict) String() string {
	switch v {
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return "continue"
	}
}

// Status describes what happened when a hook was looked up and run.
type Status string

const (
	StatusDisabled      Status = "disabled"
	StatusNotFound      Status = "not_found"
	StatusNotExecutable Status = "not_executable"
	StatusRan           Status = "ran"
	StatusTimeout       Status = "timeout"
	StatusError         Status = "error"
)

// Result captures the outcome of one hook invocation.
type Result struct {
	Name     Name
	Verdict  Verdict
	Status   Status
	ExitCode int
	Duration time.Duration
	Err      error
}

// Runner executes hook scripts. The zero value is disabled.
type Runner struct {
	// Dir holds one script per hook name.
	Dir string

	// WorkDir is the working directory for scripts.
	WorkDir string

	// Timeout bounds each script. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Enabled turns hooks on.
	Enabled bool

	Logger *log.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the named hook and maps its exit status to a verdict:
// 0 continues, 1 skips (next_iteration only), 2 aborts. Anything else,
// including a timeout or a failure to start, is logged and continues.
func (r *Runner) Run(ctx context.Context, name Name, env Env) Result {
	res := Result{Name: name, Verdict: Continue}
	if !r.Enabled {
		res.Status = StatusDisabled
		return res
	}

	path := filepath.Join(r.Dir, string(name))
	info, err := os.Stat(path)
	if err != nil {
		res.Status = StatusNotFound
		if !errors.Is(err, os.ErrNotExist) {
			res.Err = fmt.Errorf("stat hook %s: %w", path, err)
			r.logger().Warn("hook lookup failed", "hook", name, "err", err)
		}
		return res
	}
	if !utils.IsExecutable(path, info) {
		res.Status = StatusNotExecutable
		r.logger().Debug("hook is not executable, skipping", "hook", name, "path", path)
		return res
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(hookCtx, path)
	cmd.Dir = r.WorkDir
	cmd.Env = append(os.Environ(), env.Environ(name)...)
	cmd.Stdout = writerOr(r.Stdout, os.Stdout)
	cmd.Stderr = writerOr(r.Stderr, os.Stderr)
	cmd.WaitDelay = waitDelay
	utils.DetachProcessGroup(cmd)

	start := time.Now()
	err = cmd.Run()
	res.Duration = time.Since(start)
	res.ExitCode = exitCodeFromError(err)

	if errors.Is(hookCtx.Err(), context.DeadlineExceeded) {
		res.Status = StatusTimeout
		res.Err = fmt.Errorf("hook %s timed out after %s", name, timeout)
		r.logger().Error("hook timed out", "hook", name, "timeout", timeout)
		return res
	}
	if ctx.Err() != nil {
		res.Status = StatusError
		res.Err = fmt.Errorf("hook %s cancelled: %w", name, ctx.Err())
		return res
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		res.Status = StatusError
		res.Err = fmt.Errorf("run hook %s: %w", name, err)
		r.logger().Error("hook failed to run", "hook", name, "err", err)
		return res
	}

	res.Status = StatusRan
	switch res.ExitCode {
	case 0:
	case 1:
		if name == NextIteration {
			res.Verdict = Skip
		} else {
			r.logger().Warn("hook exited 1; skip only applies to next_iteration", "hook", name)
		}
	case 2:
		res.Verdict = Abort
	default:
		res.Status = StatusError
		res.Err = fmt.Errorf("hook %s exited %d", name, res.ExitCode)
		r.logger().Error("hook exited with unexpected code", "hook", name, "exit_code", res.ExitCode)
	}
	return res
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		r.Logger = log.New(io.Discard)
	}
	return r.Logger
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
