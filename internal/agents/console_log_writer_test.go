package agents

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsoleLogWriter(buf *bytes.Buffer) *ConsoleLogWriter {
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return NewConsoleLogWriter(logger)
}

func TestConsoleLogWriter_Write(t *testing.T) {
	tests := []struct {
		name       string
		event      LogEvent
		wantLevel  string
		wantMsg    string
		wantFields []string
	}{
		{
			name:      "error event",
			event:     LogEvent{Type: EventError, Content: "something went wrong"},
			wantLevel: "ERRO",
			wantMsg:   "something went wrong",
		},
		{
			name:       "iteration start",
			event:      LogEvent{Type: EventIterationStart, Iteration: 3},
			wantLevel:  "INFO",
			wantMsg:    "Iteration started",
			wantFields: []string{"iteration=3"},
		},
		{
			name: "iteration end",
			event: LogEvent{
				Type:       EventIterationEnd,
				Iteration:  2,
				ExitCode:   1,
				Commits:    4,
				DurationMS: int64(90 * time.Second / time.Millisecond),
			},
			wantLevel:  "INFO",
			wantMsg:    "Iteration finished",
			wantFields: []string{"exit_code=1", "commits=4", "duration=1m30s"},
		},
		{
			name:       "hook continue is debug",
			event:      LogEvent{Type: EventHook, Hook: "started", Verdict: "continue"},
			wantLevel:  "DEBU",
			wantMsg:    "Hook ran",
			wantFields: []string{"hook=started"},
		},
		{
			name:       "hook abort is info",
			event:      LogEvent{Type: EventHook, Hook: "started", Verdict: "abort"},
			wantLevel:  "INFO",
			wantFields: []string{"verdict=abort"},
		},
		{
			name:       "finished",
			event:      LogEvent{Type: EventFinished, FinishType: "complete"},
			wantLevel:  "INFO",
			wantMsg:    "Run finished",
			wantFields: []string{"reason=complete"},
		},
		{
			name:      "unknown type falls back to debug",
			event:     LogEvent{Type: "custom"},
			wantLevel: "DEBU",
			wantMsg:   "custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, newTestConsoleLogWriter(&buf).Write(tt.event))

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			if tt.wantMsg != "" {
				assert.Contains(t, out, tt.wantMsg)
			}
			for _, f := range tt.wantFields {
				assert.Contains(t, out, f)
			}
		})
	}
}

func TestConsoleLogWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	w := NewConsoleLogWriter(logger)

	require.NoError(t, w.Write(LogEvent{Type: EventHook, Hook: "finished", Verdict: "continue"}))
	assert.Empty(t, buf.String())

	require.NoError(t, w.Write(LogEvent{Type: EventRunStarted}))
	assert.Contains(t, buf.String(), "Run started")
}
