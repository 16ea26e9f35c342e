package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Lifecycle record types written to the run log.
const (
	EventRunStarted     = "run_started"
	EventIterationStart = "iteration_start"
	EventIterationEnd   = "iteration_end"
	EventHook           = "hook"
	EventFinished       = "finished"
	EventError          = "error"
)

// LogEvent is one lifecycle record of a run.
type LogEvent struct {
	// Type is one of the Event* constants.
	Type string `json:"type"`

	Timestamp time.Time `json:"timestamp"`

	// Content is a human-readable message.
	Content string `json:"content,omitempty"`

	RunID     string `json:"run_id,omitempty"`
	Iteration uint   `json:"iteration,omitempty"`

	// Hook and Verdict are set for hook records.
	Hook    string `json:"hook,omitempty"`
	Verdict string `json:"verdict,omitempty"`

	// Command is set for iteration_start records.
	Command []string `json:"command,omitempty"`

	ExitCode   int    `json:"exit_code,omitempty"`
	Commits    uint   `json:"commits,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	FinishType string `json:"finish_type,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
}

// LogWriter receives the lifecycle records of a run.
type LogWriter interface {
	Write(event LogEvent) error
}

// JSONLWriter encodes each record as one line of run.jsonl.
type JSONLWriter struct {
	w io.Writer
}

// NewJSONLWriter returns a JSONLWriter on w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

// Write stamps the record when it carries no timestamp.
func (l *JSONLWriter) Write(event LogEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}

// TeeLogWriter copies every record to the console and the run log.
type TeeLogWriter struct {
	writers []LogWriter
}

// NewTeeLogWriter skips nil writers.
func NewTeeLogWriter(writers ...LogWriter) *TeeLogWriter {
	m := &TeeLogWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Write keeps going after a failing writer and joins the errors.
func (m *TeeLogWriter) Write(event LogEvent) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DiscardLogWriter drops every record.
type DiscardLogWriter struct{}

func (DiscardLogWriter) Write(event LogEvent) error {
	return nil
}

type lockedLogWriter struct {
	mu     sync.Mutex
	writer LogWriter
}

func (l *lockedLogWriter) Write(event LogEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Write(event)
}

// NormalizeLogWriter makes writer safe for concurrent use and replaces nil
// with a DiscardLogWriter.
func NormalizeLogWriter(writer LogWriter) LogWriter {
	if writer == nil {
		return DiscardLogWriter{}
	}
	if _, ok := writer.(*lockedLogWriter); ok {
		return writer
	}
	return &lockedLogWriter{writer: writer}
}
