package hooks

import (
	"strconv"
	"time"
)

// EnvPrefix prefixes every variable passed to a hook.
const EnvPrefix = "FRESHER_"

// Env is the run context exported to hook scripts.
type Env struct {
	Iteration       uint
	Mode            string
	ProjectDir      string
	MaxIterations   int
	TotalIterations uint
	TotalCommits    uint
	RunID           string
	LastCommitSHA   string

	// Set for next_iteration.
	LastExitCode int
	LastDuration time.Duration
	CommitsMade  uint

	// Set for finished.
	FinishType string
	Duration   time.Duration
}

// Environ renders the variables for the named hook as KEY=value pairs.
// Every hook receives the base set; next_iteration and finished add their
// own.
func (e Env) Environ(name Name) []string {
	vars := [][2]string{
		{"ITERATION", strconv.FormatUint(uint64(e.Iteration), 10)},
		{"MODE", e.Mode},
		{"PROJECT_DIR", e.ProjectDir},
		{"MAX_ITERATIONS", strconv.Itoa(e.MaxIterations)},
		{"TOTAL_ITERATIONS", strconv.FormatUint(uint64(e.TotalIterations), 10)},
		{"TOTAL_COMMITS", strconv.FormatUint(uint64(e.TotalCommits), 10)},
	}
	if e.RunID != "" {
		vars = append(vars, [2]string{"RUN_ID", e.RunID})
	}
	if e.LastCommitSHA != "" {
		vars = append(vars, [2]string{"LAST_COMMIT_SHA", e.LastCommitSHA})
	}

	switch name {
	case NextIteration:
		vars = append(vars,
			[2]string{"LAST_EXIT_CODE", strconv.Itoa(e.LastExitCode)},
			[2]string{"LAST_DURATION_SECONDS", seconds(e.LastDuration)},
			[2]string{"COMMITS_MADE", strconv.FormatUint(uint64(e.CommitsMade), 10)},
		)
	case Finished:
		vars = append(vars,
			[2]string{"FINISH_TYPE", e.FinishType},
			[2]string{"DURATION_SECONDS", seconds(e.Duration)},
		)
	}

	out := make([]string, 0, len(vars))
	for _, kv := range vars {
		out = append(out, EnvPrefix+kv[0]+"="+kv[1])
	}
	return out
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
