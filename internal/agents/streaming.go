package agents

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// streamState folds the agent's output into an Outcome while it runs.
// Only the stdout reader touches result and malformed.
type streamState struct {
	renderer  Renderer
	rawLog    *rawLog
	logger    *log.Logger
	result    *ResultMessage
	malformed int
}

// consume drains stdout and stderr concurrently and returns when both
// pipes reach EOF.
func (s *streamState) consume(ctx context.Context, stdout, stderr io.Reader) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.readStdout(stdout)
	})
	g.Go(func() error {
		return s.readStderr(ctx, stderr)
	})
	return g.Wait()
}

// readStdout reads newline-delimited events. A partial line is held in the
// reader's buffer until its newline arrives; a final unterminated line is
// processed at EOF.
func (s *streamState) readStdout(r io.Reader) error {
	reader := bufio.NewReaderSize(r, ReadBufferSize)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read stdout: %w", err)
		}
	}
}

func (s *streamState) handleLine(line []byte) {
	trimmed := bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(trimmed)) == 0 {
		return
	}
	if err := s.rawLog.writeLine(trimmed); err != nil {
		s.logger.Warn("writing iteration log", "err", err)
	}

	event := ParseEvent(trimmed)
	switch e := event.(type) {
	case ResultEvent:
		msg := e.ResultMessage
		s.result = &msg
	case UnknownEvent:
		if e.Kind == "" {
			s.malformed++
			s.logger.Debug("non-JSON agent output", "line", truncate(e.Raw, 200))
		}
	}
	s.renderer.Render(event)
}

// readStderr forwards stderr to the logger and the iteration log.
func (s *streamState) readStderr(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, ReadBufferSize), MaxStderrLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if ctx.Err() == nil {
			s.logger.Warn(line, "stream", "stderr")
		}
		if err := s.rawLog.writeStderr(line); err != nil {
			s.logger.Warn("writing iteration log", "err", err)
		}
	}
	if err := scanner.Err(); err != nil {
		// Drain so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("read stderr: %w", err)
	}
	return nil
}

// rawLog serializes writes from the stdout and stderr readers.
type rawLog struct {
	mu sync.Mutex
	w  io.Writer
}

func newRawLog(w io.Writer) *rawLog {
	if w == nil {
		w = io.Discard
	}
	return &rawLog{w: w}
}

func (l *rawLog) writeLine(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		return err
	}
	_, err := l.w.Write([]byte{'\n'})
	return err
}

type stderrRecord struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

func (l *rawLog) writeStderr(line string) error {
	data, err := json.Marshal(stderrRecord{Type: "stderr", Timestamp: time.Now().UTC(), Content: line})
	if err != nil {
		return err
	}
	return l.writeLine(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
