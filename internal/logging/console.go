package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LogOptions configures the console logger.
type LogOptions struct {
	Level      string
	Format     string
	Timestamps bool
}

// NewConsoleLogger returns a leveled logger prefixed with "fresher".
// Unknown levels and formats fall back to info and text.
func NewConsoleLogger(w io.Writer, opts LogOptions) *log.Logger {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	formatter, err := ParseFormatter(opts.Format)
	if err != nil {
		formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		Prefix:          "fresher",
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.Kitchen,
	})
}

// ParseLevel parses a level name. An empty string is info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
}

// ParseFormatter parses a formatter name. An empty string is text.
func ParseFormatter(s string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("invalid log format %q", s)
	}
}
