// Package state holds the persisted record of a loop run.
package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects which prompt drives the agent.
type Mode string

const (
	ModePlanning Mode = "planning"
	ModeBuilding Mode = "building"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePlanning:
		return ModePlanning, nil
	case ModeBuilding:
		return ModeBuilding, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want planning or building)", s)
	}
}

// FinishReason records why a run stopped.
type FinishReason string

const (
	FinishManual        FinishReason = "manual"
	FinishError         FinishReason = "error"
	FinishMaxIterations FinishReason = "max_iterations"
	FinishComplete      FinishReason = "complete"
	FinishNoChanges     FinishReason = "no_changes"
	FinishHookAbort     FinishReason = "hook_abort"
)

// Run is one end-to-end execution of the loop.
type Run struct {
	ID                 string       `toml:"id" json:"id"`
	Mode               Mode         `toml:"mode" json:"mode"`
	StartedAt          time.Time    `toml:"started_at" json:"started_at"`
	Iteration          uint         `toml:"iteration" json:"iteration"`
	LastExitCode       int          `toml:"last_exit_code" json:"last_exit_code"`
	LastCommitSHA      string       `toml:"last_commit_sha,omitempty" json:"last_commit_sha,omitempty"`
	IterationSHA       string       `toml:"iteration_sha,omitempty" json:"iteration_sha,omitempty"`
	IterationStartedAt *time.Time   `toml:"iteration_started_at,omitempty" json:"iteration_started_at,omitempty"`
	LastDuration       float64      `toml:"last_duration_seconds" json:"last_duration_seconds"`
	TotalCommits       uint         `toml:"total_commits" json:"total_commits"`
	DurationSeconds    uint64       `toml:"duration_seconds" json:"duration_seconds"`
	FinishType         FinishReason `toml:"finish_type,omitempty" json:"finish_type,omitempty"`
}

// NewRun starts a fresh record. No counters carry over from earlier runs.
func NewRun(mode Mode, now time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: now.UTC(),
	}
}

// StartIteration advances the iteration counter and remembers the revision
// the iteration starts from.
func (r *Run) StartIteration(sha string, now time.Time) uint {
	r.Iteration++
	r.IterationSHA = sha
	t := now.UTC()
	r.IterationStartedAt = &t
	if sha != "" {
		r.LastCommitSHA = sha
	}
	return r.Iteration
}

// CompleteIteration records the result of the current iteration.
func (r *Run) CompleteIteration(exitCode int, commits uint, sha string, elapsed time.Duration) {
	r.LastExitCode = exitCode
	r.TotalCommits += commits
	r.LastDuration = elapsed.Seconds()
	if sha != "" {
		r.LastCommitSHA = sha
	}
}

// Finish sets the finish reason. Only the first call has an effect; it
// reports whether this call set the reason.
func (r *Run) Finish(reason FinishReason) bool {
	if r.FinishType != "" {
		return false
	}
	r.FinishType = reason
	return true
}

// Finished reports whether a finish reason has been set.
func (r *Run) Finished() bool {
	return r.FinishType != ""
}

// UpdateDuration sets the elapsed wall time since StartedAt.
func (r *Run) UpdateDuration(now time.Time) {
	d := now.Sub(r.StartedAt)
	if d < 0 {
		d = 0
	}
	r.DurationSeconds = uint64(d / time.Second)
}

// Duration returns the recorded run duration.
func (r *Run) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}
