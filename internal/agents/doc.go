// Package agents runs the coding-agent subprocess for one loop iteration.
//
// Each iteration spawns a fresh `claude -p` process with session persistence
// disabled, so no invocation can see the conversation of an earlier one.
// The process's stream-json output is read line by line: every raw line is
// appended to the iteration log, decoded into an Event and handed to a
// Renderer for the terminal. The final result line and the repository
// revision before and after the run are folded into an Outcome.
//
// A non-zero exit status is reported in the Outcome rather than as an
// error; only a failure to spawn the process is fatal.
//
// Lifecycle records for the run log use LogEvent and the LogWriter
// implementations in this package.
package agents
