package agents

import (
	"time"

	"github.com/charmbracelet/log"
)

// ConsoleLogWriter mirrors lifecycle records to a charmbracelet/log logger
// for colorful, leveled console output.
type ConsoleLogWriter struct {
	logger *log.Logger
}

// NewConsoleLogWriter wraps logger.
func NewConsoleLogWriter(logger *log.Logger) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: logger}
}

// Write logs a lifecycle record at a level matching its type.
func (c *ConsoleLogWriter) Write(event LogEvent) error {
	msg := formatMessage(event)
	fields := c.extractFields(event)

	switch event.Type {
	case EventError:
		c.logger.Error(msg, fields...)
	case EventHook:
		if event.Verdict == "continue" {
			c.logger.Debug(msg, fields...)
		} else {
			c.logger.Info(msg, fields...)
		}
	case EventRunStarted, EventIterationStart, EventIterationEnd, EventFinished:
		c.logger.Info(msg, fields...)
	default:
		c.logger.Debug(msg, fields...)
	}
	return nil
}

// extractFields extracts structured fields from a LogEvent for charmbracelet/log.
func (c *ConsoleLogWriter) extractFields(event LogEvent) []any {
	var fields []any
	if event.Iteration != 0 {
		fields = append(fields, "iteration", event.Iteration)
	}
	if event.Hook != "" {
		fields = append(fields, "hook", event.Hook)
	}
	if event.Verdict != "" {
		fields = append(fields, "verdict", event.Verdict)
	}
	if event.Type == EventIterationEnd {
		fields = append(fields, "exit_code", event.ExitCode, "commits", event.Commits)
		if event.DurationMS > 0 {
			d := time.Duration(event.DurationMS) * time.Millisecond
			fields = append(fields, "duration", d.Round(time.Second))
		}
	}
	if event.FinishType != "" {
		fields = append(fields, "reason", event.FinishType)
	}
	return fields
}

// formatMessage formats a log message from a LogEvent.
func formatMessage(event LogEvent) string {
	if event.Content != "" {
		return event.Content
	}
	switch event.Type {
	case EventRunStarted:
		return "Run started"
	case EventIterationStart:
		return "Iteration started"
	case EventIterationEnd:
		return "Iteration finished"
	case EventHook:
		return "Hook ran"
	case EventFinished:
		return "Run finished"
	case EventError:
		return "Error"
	default:
		return event.Type
	}
}
