package agents

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/shanewwarren/fresher-sub000/internal/utils"
)

// waitDelay bounds how long output is still read after the agent exits. A
// background process left behind by the agent keeps the pipes open; after
// the delay they are closed and the iteration ends.
var waitDelay = 5 * time.Second

// process is a started agent command. Wait runs in its own goroutine so
// WaitDelay applies while the readers are still draining.
type process struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	stdout io.Reader
	stderr io.Reader
	done   chan error
}

// startProcess spawns the agent in its own process group so a terminal
// interrupt does not reach it. Cancelling ctx still kills it.
func startProcess(ctx context.Context, cfg Config, args []string) (*process, error) {
	ctx, cancel := applyTimeout(ctx, cfg.Timeout)

	cmd := exec.CommandContext(ctx, cfg.Binary, args...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stdin = nil
	cmd.WaitDelay = waitDelay
	utils.DetachProcessGroup(cmd)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		cancel()
		stdoutW.Close()
		stderrW.Close()
		return nil, err
	}

	p := &process{cmd: cmd, ctx: ctx, cancel: cancel, stdout: stdoutR, stderr: stderrR, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		// The readers see EOF once Wait has copied everything it will copy.
		stdoutW.Close()
		stderrW.Close()
		p.done <- err
	}()
	return p, nil
}

// wait returns the result of cmd.Wait. Call it after both readers are done.
func (p *process) wait() error {
	defer p.cancel()
	return <-p.done
}

func (p *process) timedOut() bool {
	return errors.Is(p.ctx.Err(), context.DeadlineExceeded)
}

func applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	// The agent exited 0 but left a process holding its output open.
	if errors.Is(err, exec.ErrWaitDelay) {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
