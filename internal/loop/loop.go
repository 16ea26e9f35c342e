// Package loop drives a run: it invokes the agent once per iteration with a
// fresh context, consults hooks and the termination oracle, and persists the
// run state after every step.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shanewwarren/fresher-sub000/internal/agents"
	"github.com/shanewwarren/fresher-sub000/internal/hooks"
	"github.com/shanewwarren/fresher-sub000/internal/logging"
	"github.com/shanewwarren/fresher-sub000/internal/state"
	"github.com/shanewwarren/fresher-sub000/internal/termination"
)

// Agent runs one iteration of the coding agent.
type Agent interface {
	Run(ctx context.Context, it agents.Iteration) (agents.Outcome, error)
}

// HookRunner runs a lifecycle hook.
type HookRunner interface {
	Run(ctx context.Context, name hooks.Name, env hooks.Env) hooks.Result
}

// Oracle decides whether the run stops after an iteration.
type Oracle interface {
	Decide(in termination.Input) termination.Verdict
}

// Store persists the run record and guards it against concurrent runs.
type Store interface {
	Save(run *state.Run) error
	Lock() (func() error, error)
}

// Options configure a Controller.
type Options struct {
	Mode             state.Mode
	ProjectDir       string
	MaxIterations    uint
	SmartTermination bool
	PlanPath         string
	ImplDir          string
	Prompt           string

	// SkipDelay is waited after a next_iteration hook skips.
	SkipDelay time.Duration

	// LogDir receives per-run logs. Empty disables them.
	LogDir string

	Agent     Agent
	Hooks     HookRunner
	Oracle    Oracle
	Store     Store
	Revisions agents.Revisions

	// Interrupt is set by the signal watcher and read between steps.
	Interrupt *atomic.Bool

	Logger  *log.Logger
	Summary io.Writer
	Now     func() time.Time
}

// Controller runs the loop. A Controller is used for a single Run call.
type Controller struct {
	opts      Options
	logger    *log.Logger
	events    agents.LogWriter
	runLogger *logging.RunLogger
	unlock    func() error
	last      *agents.Outcome
	finished  bool
}

// New validates opts and fills defaults.
func New(opts Options) (*Controller, error) {
	if opts.Agent == nil {
		return nil, errors.New("loop: agent is required")
	}
	if opts.Store == nil {
		return nil, errors.New("loop: state store is required")
	}
	if opts.Mode != state.ModePlanning && opts.Mode != state.ModeBuilding {
		return nil, fmt.Errorf("loop: invalid mode %q", opts.Mode)
	}
	if opts.Oracle == nil {
		opts.Oracle = termination.New(opts.Logger)
	}
	if opts.Hooks == nil {
		opts.Hooks = noHooks{}
	}
	if opts.Interrupt == nil {
		opts.Interrupt = &atomic.Bool{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Summary == nil {
		opts.Summary = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{opts: opts, logger: opts.Logger}, nil
}

// Run executes the loop until a finish reason is set and returns the final
// run record. The error is non-nil only for setup failures and when the
// agent cannot be started; every other way a run ends is a finish reason.
func (c *Controller) Run(ctx context.Context) (run *state.Run, err error) {
	unlock, err := c.opts.Store.Lock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	c.unlock = unlock

	run = state.NewRun(c.opts.Mode, c.opts.Now())
	run.LastCommitSHA = c.revision(ctx)
	if err := c.openLogs(run); err != nil {
		c.release()
		return nil, err
	}
	if err := c.opts.Store.Save(run); err != nil {
		c.closeLogs()
		c.release()
		return nil, fmt.Errorf("save state: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			run.Finish(state.FinishError)
			c.emit(agents.LogEvent{Type: agents.EventError, Content: fmt.Sprintf("panic: %v", r)})
			c.finish(ctx, run)
			panic(r)
		}
		if err != nil {
			run.Finish(state.FinishError)
			c.emit(agents.LogEvent{Type: agents.EventError, Content: err.Error()})
		}
		c.finish(ctx, run)
	}()

	c.emit(agents.LogEvent{Type: agents.EventRunStarted, RunID: run.ID, Content: fmt.Sprintf("Starting fresher (%s mode)", run.Mode)})

	started := c.runHook(ctx, hooks.Started, c.hookEnv(run, hooks.Started))
	if started.Verdict == hooks.Abort {
		run.Finish(state.FinishHookAbort)
		return run, nil
	}

	for {
		if reason, stop := c.preCheck(ctx, run); stop {
			run.Finish(reason)
			return run, nil
		}

		next := c.runHook(ctx, hooks.NextIteration, c.hookEnv(run, hooks.NextIteration))
		switch next.Verdict {
		case hooks.Abort:
			run.Finish(state.FinishHookAbort)
			return run, nil
		case hooks.Skip:
			c.logger.Info("Skipping iteration (hook requested)")
			c.wait(ctx, c.opts.SkipDelay)
			continue
		}

		outcome, err := c.iterate(ctx, run)
		if err != nil {
			return run, err
		}

		if ctx.Err() != nil {
			run.Finish(state.FinishManual)
			return run, nil
		}
		if !outcome.Succeeded() {
			c.emit(agents.LogEvent{
				Type:      agents.EventError,
				Iteration: run.Iteration,
				ExitCode:  outcome.ExitCode,
				Content:   fmt.Sprintf("Agent exited with code %d", outcome.ExitCode),
			})
			run.Finish(state.FinishError)
			return run, nil
		}

		verdict := c.opts.Oracle.Decide(termination.Input{
			Interrupted:      c.opts.Interrupt.Load(),
			Iteration:        run.Iteration,
			MaxIterations:    c.opts.MaxIterations,
			SmartTermination: c.opts.SmartTermination,
			PlanPath:         c.opts.PlanPath,
			ImplDir:          c.opts.ImplDir,
			Outcome:          outcome,
		})
		if verdict.Stop {
			run.Finish(verdict.Reason)
			return run, nil
		}
	}
}

// preCheck applies the stop conditions that do not need an outcome.
func (c *Controller) preCheck(ctx context.Context, run *state.Run) (state.FinishReason, bool) {
	if c.opts.Interrupt.Load() || ctx.Err() != nil {
		return state.FinishManual, true
	}
	if c.opts.MaxIterations > 0 && run.Iteration >= c.opts.MaxIterations {
		return state.FinishMaxIterations, true
	}
	return "", false
}

// iterate runs the agent once and records the outcome.
func (c *Controller) iterate(ctx context.Context, run *state.Run) (agents.Outcome, error) {
	n := run.StartIteration(c.revision(ctx), c.opts.Now())
	if err := c.opts.Store.Save(run); err != nil {
		c.logger.Warn("saving state", "err", err)
	}

	it := agents.Iteration{Number: n, Prompt: c.opts.Prompt}
	var itLog *logging.IterationLog
	if c.runLogger != nil {
		l, err := c.runLogger.OpenIteration(n)
		if err != nil {
			c.logger.Warn("opening iteration log", "err", err)
		} else {
			itLog = l
			it.RawLog = l
			it.LogPath = l.Path
		}
	}

	c.emit(agents.LogEvent{Type: agents.EventIterationStart, Iteration: n, LogPath: it.LogPath, Content: fmt.Sprintf("Iteration %d", n)})

	outcome, err := c.opts.Agent.Run(ctx, it)
	if itLog != nil {
		if cerr := itLog.Close(); cerr != nil {
			c.logger.Warn("closing iteration log", "err", cerr)
		}
	}
	if err != nil {
		return outcome, fmt.Errorf("iteration %d: %w", n, err)
	}

	run.CompleteIteration(outcome.ExitCode, outcome.Commits, outcome.EndRevision, outcome.Duration)
	if err := c.opts.Store.Save(run); err != nil {
		c.logger.Warn("saving state", "err", err)
	}
	c.last = &outcome

	c.emit(agents.LogEvent{
		Type:       agents.EventIterationEnd,
		Iteration:  n,
		ExitCode:   outcome.ExitCode,
		Commits:    outcome.Commits,
		DurationMS: outcome.Duration.Milliseconds(),
		LogPath:    outcome.LogPath,
	})
	return outcome, nil
}

// finish is the single exit path: it persists the final record, runs the
// finished hook, prints the summary and releases the lock. It runs once.
func (c *Controller) finish(ctx context.Context, run *state.Run) {
	if c.finished {
		return
	}
	c.finished = true

	run.Finish(state.FinishError)
	run.UpdateDuration(c.opts.Now())
	if err := c.opts.Store.Save(run); err != nil {
		c.logger.Error("saving final state", "err", err)
	}

	// The finished hook must run even after a hard stop cancelled ctx.
	c.runHook(context.WithoutCancel(ctx), hooks.Finished, c.hookEnv(run, hooks.Finished))

	c.emit(agents.LogEvent{
		Type:       agents.EventFinished,
		Iteration:  run.Iteration,
		Commits:    run.TotalCommits,
		DurationMS: run.Duration().Milliseconds(),
		FinishType: string(run.FinishType),
	})
	printSummary(c.opts.Summary, run, c.logDir())

	c.closeLogs()
	c.release()
}

func (c *Controller) runHook(ctx context.Context, name hooks.Name, env hooks.Env) hooks.Result {
	res := c.opts.Hooks.Run(ctx, name, env)
	if res.Status == hooks.StatusDisabled || res.Status == hooks.StatusNotFound {
		return res
	}
	c.emit(agents.LogEvent{
		Type:       agents.EventHook,
		Iteration:  env.Iteration,
		Hook:       string(name),
		Verdict:    res.Verdict.String(),
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
	})
	return res
}

func (c *Controller) hookEnv(run *state.Run, name hooks.Name) hooks.Env {
	env := hooks.Env{
		Iteration:       run.Iteration,
		Mode:            string(run.Mode),
		ProjectDir:      c.opts.ProjectDir,
		MaxIterations:   int(c.opts.MaxIterations),
		TotalIterations: run.Iteration,
		TotalCommits:    run.TotalCommits,
		RunID:           run.ID,
		LastCommitSHA:   run.LastCommitSHA,
	}
	switch name {
	case hooks.NextIteration:
		env.Iteration = run.Iteration + 1
		env.LastExitCode = run.LastExitCode
		if c.last != nil {
			env.LastDuration = c.last.Duration
			env.CommitsMade = c.last.Commits
		}
	case hooks.Finished:
		env.FinishType = string(run.FinishType)
		env.Duration = run.Duration()
	}
	return env
}

// wait sleeps for d or until ctx is done.
func (c *Controller) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Controller) revision(ctx context.Context) string {
	if c.opts.Revisions == nil {
		return ""
	}
	rev, err := c.opts.Revisions.Head(ctx)
	if err != nil {
		c.logger.Warn("reading repository revision", "err", err)
		return ""
	}
	return rev
}

func (c *Controller) openLogs(run *state.Run) error {
	console := agents.NewConsoleLogWriter(c.logger)
	if c.opts.LogDir == "" {
		c.events = agents.NormalizeLogWriter(console)
		return nil
	}
	rl, err := logging.NewRunLogger(c.opts.LogDir, c.opts.ProjectDir, run.ID)
	if err != nil {
		return fmt.Errorf("init run logger: %w", err)
	}
	c.runLogger = rl
	c.events = agents.NormalizeLogWriter(agents.NewTeeLogWriter(
		agents.NewJSONLWriter(rl.Writer()),
		console,
	))
	return nil
}

func (c *Controller) emit(event agents.LogEvent) {
	if c.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.opts.Now().UTC()
	}
	if err := c.events.Write(event); err != nil {
		c.logger.Warn("writing run log", "err", err)
	}
}

func (c *Controller) logDir() string {
	if c.runLogger == nil {
		return ""
	}
	return c.runLogger.Dir
}

func (c *Controller) closeLogs() {
	if c.runLogger == nil {
		return
	}
	if err := c.runLogger.Close(); err != nil {
		c.logger.Warn("closing run log", "err", err)
	}
}

func (c *Controller) release() {
	if c.unlock == nil {
		return
	}
	if err := c.unlock(); err != nil {
		c.logger.Warn("releasing run lock", "err", err)
	}
	c.unlock = nil
}

type noHooks struct{}

func (noHooks) Run(_ context.Context, name hooks.Name, _ hooks.Env) hooks.Result {
	return hooks.Result{Name: name, Verdict: hooks.Continue, Status: hooks.StatusDisabled}
}
