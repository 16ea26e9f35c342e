package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Building")
	require.NoError(t, err)
	assert.Equal(t, ModeBuilding, m)

	m, err = ParseMode(" planning ")
	require.NoError(t, err)
	assert.Equal(t, ModePlanning, m)

	_, err = ParseMode("deploy")
	require.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := NewRun(ModeBuilding, start)
	require.NotEmpty(t, run.ID)
	assert.Zero(t, run.Iteration)
	assert.False(t, run.Finished())

	assert.Equal(t, uint(1), run.StartIteration("aaa", start.Add(time.Second)))
	run.CompleteIteration(0, 2, "bbb", 3*time.Second)
	assert.Equal(t, uint(2), run.TotalCommits)
	assert.Equal(t, "bbb", run.LastCommitSHA)
	assert.Equal(t, "aaa", run.IterationSHA)
	assert.Equal(t, 3.0, run.LastDuration)

	assert.Equal(t, uint(2), run.StartIteration("bbb", start.Add(2*time.Second)))
	run.CompleteIteration(1, 0, "", time.Second)
	assert.Equal(t, 1, run.LastExitCode)
	assert.Equal(t, "bbb", run.LastCommitSHA)

	assert.True(t, run.Finish(FinishError))
	assert.False(t, run.Finish(FinishComplete), "second finish must be ignored")
	assert.Equal(t, FinishError, run.FinishType)

	run.UpdateDuration(start.Add(90 * time.Second))
	assert.Equal(t, uint64(90), run.DurationSeconds)
	assert.Equal(t, 90*time.Second, run.Duration())
}

func TestNewRunIDsDiffer(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, NewRun(ModePlanning, now).ID, NewRun(ModePlanning, now).ID)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	run, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, &Run{}, run)
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := NewRun(ModePlanning, start)
	run.StartIteration("abc123", start)
	run.CompleteIteration(0, 1, "def456", 1500*time.Millisecond)
	run.Finish(FinishMaxIterations)
	run.UpdateDuration(start.Add(2 * time.Minute))
	require.NoError(t, store.Save(run))

	assert.Equal(t, filepath.Join(dir, ".fresher", ".state"), store.Path())
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `finish_type = "max_iterations"`)
	assert.Contains(t, string(data), `mode = "planning"`)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, uint(1), loaded.Iteration)
	assert.Equal(t, uint(1), loaded.TotalCommits)
	assert.Equal(t, "def456", loaded.LastCommitSHA)
	assert.Equal(t, FinishMaxIterations, loaded.FinishType)
	assert.Equal(t, uint64(120), loaded.DurationSeconds)
	assert.True(t, start.Equal(loaded.StartedAt))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must not be left behind")
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	require.NoError(t, os.WriteFile(store.Path(), []byte("iteration = [unterminated"), 0o644))

	_, err := store.Load()
	require.Error(t, err)
}

func TestStoreLock(t *testing.T) {
	dir := t.TempDir()
	first := NewStore(dir)
	second := NewStore(dir)

	unlock, err := first.Lock()
	require.NoError(t, err)

	_, err = second.Lock()
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())

	unlock, err = second.Lock()
	require.NoError(t, err)
	require.NoError(t, unlock())
}
