package loop

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanewwarren/fresher-sub000/internal/agents"
	"github.com/shanewwarren/fresher-sub000/internal/hooks"
	"github.com/shanewwarren/fresher-sub000/internal/state"
)

type fakeAgent struct {
	mu    sync.Mutex
	calls []agents.Iteration
	run   func(ctx context.Context, it agents.Iteration) (agents.Outcome, error)
}

func (a *fakeAgent) Run(ctx context.Context, it agents.Iteration) (agents.Outcome, error) {
	a.mu.Lock()
	a.calls = append(a.calls, it)
	a.mu.Unlock()
	if a.run != nil {
		return a.run(ctx, it)
	}
	return agents.Outcome{Duration: time.Second, WorkHappened: true, Commits: 1}, nil
}

func (a *fakeAgent) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type hookCall struct {
	name   hooks.Name
	env    hooks.Env
	ctxErr error
}

type fakeHooks struct {
	mu       sync.Mutex
	calls    []hookCall
	verdicts map[hooks.Name][]hooks.Verdict
}

func (h *fakeHooks) Run(ctx context.Context, name hooks.Name, env hooks.Env) hooks.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hookCall{name: name, env: env, ctxErr: ctx.Err()})
	v := hooks.Continue
	if queue := h.verdicts[name]; len(queue) > 0 {
		v = queue[0]
		h.verdicts[name] = queue[1:]
	}
	return hooks.Result{Name: name, Verdict: v, Status: hooks.StatusRan}
}

func (h *fakeHooks) named(name hooks.Name) []hookCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hookCall
	for _, c := range h.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type memStore struct {
	mu       sync.Mutex
	saves    []state.Run
	locked   bool
	lockErr  error
	unlocked int
}

func (s *memStore) Save(run *state.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, *run)
	return nil
}

func (s *memStore) Lock() (func() error, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	s.locked = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.locked = false
		s.unlocked++
		return nil
	}, nil
}

func (s *memStore) last() state.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

type harness struct {
	agent   *fakeAgent
	hooks   *fakeHooks
	store   *memStore
	summary *bytes.Buffer
	logs    *bytes.Buffer
	opts    Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		agent:   &fakeAgent{},
		hooks:   &fakeHooks{verdicts: map[hooks.Name][]hooks.Verdict{}},
		store:   &memStore{},
		summary: &bytes.Buffer{},
		logs:    &bytes.Buffer{},
	}
	h.opts = Options{
		Mode:       state.ModeBuilding,
		ProjectDir: t.TempDir(),
		PlanPath:   filepath.Join(t.TempDir(), "IMPLEMENTATION_PLAN.md"),
		Prompt:     "do the next task",
		Agent:      h.agent,
		Hooks:      h.hooks,
		Store:      h.store,
		Logger:     log.NewWithOptions(h.logs, log.Options{Level: log.DebugLevel}),
		Summary:    h.summary,
	}
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context) (*state.Run, error) {
	t.Helper()
	c, err := New(h.opts)
	require.NoError(t, err)
	return c.Run(ctx)
}

func (h *harness) assertFinishedOnce(t *testing.T, want state.FinishReason) {
	t.Helper()
	finished := h.hooks.named(hooks.Finished)
	require.Len(t, finished, 1)
	assert.Equal(t, string(want), finished[0].env.FinishType)
	assert.NoError(t, finished[0].ctxErr)
	assert.Equal(t, 1, strings.Count(h.summary.String(), "Fresher loop complete"))
	assert.Equal(t, want, h.store.last().FinishType)
	assert.False(t, h.store.locked)
	assert.Equal(t, 1, h.store.unlocked)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Mode: state.ModeBuilding, Store: &memStore{}})
	assert.Error(t, err)

	_, err = New(Options{Mode: state.ModeBuilding, Agent: &fakeAgent{}})
	assert.Error(t, err)

	_, err = New(Options{Mode: "bogus", Agent: &fakeAgent{}, Store: &memStore{}})
	assert.Error(t, err)
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxIterations = 3

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishMaxIterations, run.FinishType)
	assert.Equal(t, uint(3), run.Iteration)
	assert.Equal(t, uint(3), run.TotalCommits)
	assert.Equal(t, 3, h.agent.count())
	h.assertFinishedOnce(t, state.FinishMaxIterations)

	for i, it := range h.agent.calls {
		assert.Equal(t, uint(i+1), it.Number)
		assert.Equal(t, "do the next task", it.Prompt)
	}
}

func TestRunStartedHookAbort(t *testing.T) {
	h := newHarness(t)
	h.hooks.verdicts[hooks.Started] = []hooks.Verdict{hooks.Abort}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishHookAbort, run.FinishType)
	assert.Equal(t, 0, h.agent.count())
	assert.Empty(t, h.hooks.named(hooks.NextIteration))
	h.assertFinishedOnce(t, state.FinishHookAbort)
}

func TestRunNextIterationHookAbort(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxIterations = 5
	h.hooks.verdicts[hooks.NextIteration] = []hooks.Verdict{hooks.Continue, hooks.Abort}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishHookAbort, run.FinishType)
	assert.Equal(t, 1, h.agent.count())
	h.assertFinishedOnce(t, state.FinishHookAbort)
}

func TestRunNextIterationHookSkip(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxIterations = 1
	h.hooks.verdicts[hooks.NextIteration] = []hooks.Verdict{hooks.Skip}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishMaxIterations, run.FinishType)
	assert.Equal(t, 1, h.agent.count())
	assert.Len(t, h.hooks.named(hooks.NextIteration), 2)
	assert.Contains(t, h.logs.String(), "Skipping iteration")
}

func TestRunSkipDelayIsInterruptible(t *testing.T) {
	h := newHarness(t)
	h.opts.SkipDelay = time.Hour
	h.hooks.verdicts[hooks.NextIteration] = []hooks.Verdict{hooks.Skip}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	run, err := h.run(t, ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, state.FinishManual, run.FinishType)
	assert.Equal(t, 0, h.agent.count())
	h.assertFinishedOnce(t, state.FinishManual)
}

func TestRunHookEnvironment(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxIterations = 2
	h.agent.run = func(_ context.Context, it agents.Iteration) (agents.Outcome, error) {
		return agents.Outcome{ExitCode: 0, Commits: it.Number, Duration: 2 * time.Second}, nil
	}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	started := h.hooks.named(hooks.Started)
	require.Len(t, started, 1)
	assert.Equal(t, uint(0), started[0].env.Iteration)
	assert.Equal(t, "building", started[0].env.Mode)
	assert.Equal(t, 2, started[0].env.MaxIterations)
	assert.Equal(t, run.ID, started[0].env.RunID)

	next := h.hooks.named(hooks.NextIteration)
	require.Len(t, next, 2)
	assert.Equal(t, uint(1), next[0].env.Iteration)
	assert.Equal(t, uint(0), next[0].env.CommitsMade)
	assert.Equal(t, uint(2), next[1].env.Iteration)
	assert.Equal(t, uint(1), next[1].env.TotalIterations)
	assert.Equal(t, uint(1), next[1].env.CommitsMade)
	assert.Equal(t, 2*time.Second, next[1].env.LastDuration)

	finished := h.hooks.named(hooks.Finished)
	require.Len(t, finished, 1)
	assert.Equal(t, uint(2), finished[0].env.TotalIterations)
	assert.Equal(t, uint(3), finished[0].env.TotalCommits)
	assert.Equal(t, "max_iterations", finished[0].env.FinishType)
}

func TestRunAgentNonZeroExit(t *testing.T) {
	h := newHarness(t)
	h.agent.run = func(context.Context, agents.Iteration) (agents.Outcome, error) {
		return agents.Outcome{ExitCode: 3}, nil
	}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishError, run.FinishType)
	assert.Equal(t, 3, run.LastExitCode)
	h.assertFinishedOnce(t, state.FinishError)
	assert.Contains(t, h.logs.String(), "Agent exited with code 3")
}

func TestRunSpawnFailure(t *testing.T) {
	h := newHarness(t)
	spawnErr := errors.New("exec: \"claude\": executable file not found in $PATH")
	h.agent.run = func(context.Context, agents.Iteration) (agents.Outcome, error) {
		return agents.Outcome{ExitCode: -1}, spawnErr
	}

	run, err := h.run(t, context.Background())
	require.ErrorIs(t, err, spawnErr)

	assert.Equal(t, state.FinishError, run.FinishType)
	h.assertFinishedOnce(t, state.FinishError)
}

func TestRunAgentPanic(t *testing.T) {
	h := newHarness(t)
	h.agent.run = func(context.Context, agents.Iteration) (agents.Outcome, error) {
		panic("boom")
	}

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = h.run(t, context.Background())
	})
	h.assertFinishedOnce(t, state.FinishError)
}

func TestRunLockHeld(t *testing.T) {
	h := newHarness(t)
	h.store.lockErr = state.ErrLocked

	run, err := h.run(t, context.Background())
	require.ErrorIs(t, err, state.ErrLocked)

	assert.Nil(t, run)
	assert.Empty(t, h.hooks.calls)
	assert.Equal(t, 0, h.agent.count())
	assert.Empty(t, h.summary.String())
}

func TestRunInterruptFinishesCurrentIteration(t *testing.T) {
	h := newHarness(t)
	interrupt := &atomic.Bool{}
	h.opts.Interrupt = interrupt
	h.agent.run = func(context.Context, agents.Iteration) (agents.Outcome, error) {
		interrupt.Store(true)
		return agents.Outcome{WorkHappened: true}, nil
	}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishManual, run.FinishType)
	assert.Equal(t, 1, h.agent.count())
	h.assertFinishedOnce(t, state.FinishManual)
}

func TestRunInterruptBeforeFirstIteration(t *testing.T) {
	h := newHarness(t)
	h.opts.Interrupt = &atomic.Bool{}
	h.opts.Interrupt.Store(true)

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishManual, run.FinishType)
	assert.Equal(t, 0, h.agent.count())
}

func TestRunHardStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.agent.run = func(ctx context.Context, _ agents.Iteration) (agents.Outcome, error) {
		cancel()
		<-ctx.Done()
		return agents.Outcome{ExitCode: -1}, nil
	}

	run, err := h.run(t, ctx)
	require.NoError(t, err)

	assert.Equal(t, state.FinishManual, run.FinishType)
	h.assertFinishedOnce(t, state.FinishManual)
}

func TestRunNoChangesWithSmartTermination(t *testing.T) {
	h := newHarness(t)
	h.opts.SmartTermination = true
	h.agent.run = func(context.Context, agents.Iteration) (agents.Outcome, error) {
		return agents.Outcome{WorkHappened: false}, nil
	}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishNoChanges, run.FinishType)
	assert.Equal(t, uint(2), run.Iteration)
}

func TestRunCompleteWithSmartTermination(t *testing.T) {
	h := newHarness(t)
	h.opts.SmartTermination = true
	h.agent.run = func(context.Context, agents.Iteration) (agents.Outcome, error) {
		plan := "# Plan\n\n- [x] first task\n- [x] second task\n"
		if err := os.WriteFile(h.opts.PlanPath, []byte(plan), 0o644); err != nil {
			return agents.Outcome{}, err
		}
		return agents.Outcome{WorkHappened: true, Commits: 1}, nil
	}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, state.FinishComplete, run.FinishType)
	assert.Equal(t, uint(1), run.Iteration)
	h.assertFinishedOnce(t, state.FinishComplete)
}

func TestRunWritesLogs(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxIterations = 2
	h.opts.LogDir = t.TempDir()
	h.agent.run = func(_ context.Context, it agents.Iteration) (agents.Outcome, error) {
		if it.RawLog == nil {
			return agents.Outcome{}, errors.New("no raw log")
		}
		_, err := it.RawLog.Write([]byte(`{"type":"result","result":"ok"}` + "\n"))
		return agents.Outcome{LogPath: it.LogPath}, err
	}

	run, err := h.run(t, context.Background())
	require.NoError(t, err)

	dir := filepath.Join(h.opts.LogDir, run.ID)
	data, err := os.ReadFile(filepath.Join(dir, "run.jsonl"))
	require.NoError(t, err)
	text := string(data)
	for _, want := range []string{`"type":"run_started"`, `"type":"iteration_start"`, `"type":"iteration_end"`, `"type":"hook"`, `"type":"finished"`, `"finish_type":"max_iterations"`} {
		assert.Contains(t, text, want)
	}

	for _, n := range []string{"iteration-1.jsonl", "iteration-2.jsonl"} {
		raw, err := os.ReadFile(filepath.Join(dir, n))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"result":"ok"`)
	}
	assert.Contains(t, h.summary.String(), dir)
}

func TestRunPersistsEveryStep(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxIterations = 1

	_, err := h.run(t, context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(h.store.saves), 4)
	first := h.store.saves[0]
	assert.Equal(t, uint(0), first.Iteration)
	assert.Empty(t, first.FinishType)

	started := h.store.saves[1]
	assert.Equal(t, uint(1), started.Iteration)
	assert.NotNil(t, started.IterationStartedAt)
	assert.Equal(t, uint(0), started.TotalCommits)

	completed := h.store.saves[2]
	assert.Equal(t, uint(1), completed.TotalCommits)
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	run := state.NewRun(state.ModePlanning, time.Now())
	run.Iteration = 4
	run.TotalCommits = 2
	run.DurationSeconds = 125
	run.Finish(state.FinishComplete)

	printSummary(&buf, run, "")
	out := buf.String()
	assert.Contains(t, out, "Fresher loop complete")
	assert.Contains(t, out, "planning")
	assert.Contains(t, out, "2m 5s")
	assert.Contains(t, out, "complete")
	assert.NotContains(t, out, "Logs")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", formatDuration(0))
	assert.Equal(t, "59s", formatDuration(59*time.Second))
	assert.Equal(t, "1m 0s", formatDuration(time.Minute))
	assert.Equal(t, "1h 1m 1s", formatDuration(time.Hour+time.Minute+time.Second))
}
