// Package logging writes per-run JSONL logs and tails them.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// RunLogFile holds the controller's lifecycle records for one run.
	RunLogFile = "run.jsonl"

	iterationPrefix = "iteration-"
	logExt          = ".jsonl"

	followInterval = 100 * time.Millisecond
	tailChunkSize  = 4096
)

// RunLogger owns the log directory of a single run:
//
//	<base>/<run-id>/run.jsonl
//	<base>/<run-id>/iteration-<n>.jsonl
type RunLogger struct {
	Dir     string
	RunID   string
	LogPath string

	mu   sync.Mutex
	file *os.File
}

// NewRunLogger creates the run directory and its run.jsonl file. A relative
// baseDir is resolved against workDir.
func NewRunLogger(baseDir, workDir, runID string) (*RunLogger, error) {
	if baseDir == "" {
		return nil, errors.New("log base dir is empty")
	}
	if runID == "" {
		return nil, errors.New("run id is empty")
	}

	dir := filepath.Join(resolveBaseDir(baseDir, workDir), sanitizeLabel(runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(dir, RunLogFile)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &RunLogger{Dir: dir, RunID: runID, LogPath: logPath, file: file}, nil
}

// Writer returns the run.jsonl writer. Writes are serialized.
func (r *RunLogger) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.file == nil {
			return 0, os.ErrClosed
		}
		return r.file.Write(p)
	})
}

// IterationPath returns the raw log path for iteration n.
func (r *RunLogger) IterationPath(n uint) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s%d%s", iterationPrefix, n, logExt))
}

// OpenIteration creates the raw log for iteration n.
func (r *RunLogger) OpenIteration(n uint) (*IterationLog, error) {
	path := r.IterationPath(n)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create iteration log: %w", err)
	}
	return &IterationLog{Path: path, file: file}, nil
}

// Close closes run.jsonl.
func (r *RunLogger) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// IterationLog receives the agent's raw output for one iteration. It is
// safe for the stdout and stderr readers to write concurrently.
type IterationLog struct {
	Path string

	mu   sync.Mutex
	file *os.File
}

func (l *IterationLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, os.ErrClosed
	}
	return l.file.Write(p)
}

// Close flushes and closes the file.
func (l *IterationLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return syncErr
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func resolveBaseDir(baseDir, workDir string) string {
	if filepath.IsAbs(baseDir) {
		return filepath.Clean(baseDir)
	}
	if workDir == "" {
		workDir = "."
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	return filepath.Clean(filepath.Join(workDir, baseDir))
}

// ResolveLogDir returns the absolute log base directory.
func ResolveLogDir(baseDir, workDir string) (string, error) {
	if baseDir == "" {
		return "", errors.New("log base dir is empty")
	}
	return resolveBaseDir(baseDir, workDir), nil
}

func sanitizeLabel(input string) string {
	if strings.TrimSpace(input) == "" {
		return "run"
	}

	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-'
		if !valid {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}

	label := strings.Trim(b.String(), "_")
	if label == "" {
		return "run"
	}
	return label
}

// LogRun is one run directory and its files.
type LogRun struct {
	RunID      string
	Dir        string
	ModTime    time.Time
	Iterations []string
}

// FindLogRuns lists run directories under logDir, newest first. A missing
// logDir yields no runs.
func FindLogRuns(logDir string) ([]LogRun, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	var runs []LogRun
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(logDir, entry.Name())
		run := LogRun{RunID: entry.Name(), Dir: dir}
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), logExt) {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(run.ModTime) {
				run.ModTime = info.ModTime()
			}
			if strings.HasPrefix(f.Name(), iterationPrefix) {
				run.Iterations = append(run.Iterations, filepath.Join(dir, f.Name()))
			}
		}
		if run.ModTime.IsZero() {
			continue
		}
		sort.Slice(run.Iterations, func(i, j int) bool {
			return iterationNumber(run.Iterations[i]) < iterationNumber(run.Iterations[j])
		})
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].ModTime.After(runs[j].ModTime)
	})
	return runs, nil
}

func iterationNumber(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), logExt)
	var n int
	if _, err := fmt.Sscanf(strings.TrimPrefix(name, iterationPrefix), "%d", &n); err != nil {
		return -1
	}
	return n
}

// FindLatestLog returns the most recently modified iteration log under
// logDir, or "" when there is none.
func FindLatestLog(logDir string) (string, error) {
	var latest string
	var latestTime time.Time

	err := filepath.WalkDir(logDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == logDir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, iterationPrefix) || !strings.HasSuffix(name, logExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latest = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read log dir: %w", err)
	}
	return latest, nil
}

// TailLog writes the last n lines of path to w (all lines when n <= 0).
// With follow set it keeps copying appended data until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := seekLastLines(file, n); err != nil {
			return fmt.Errorf("seek to tail position: %w", err)
		}
	}

	if _, err := io.Copy(w, file); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := io.Copy(w, file); err != nil {
			return err
		}
	}
}

// seekLastLines positions file at the start of its last n lines by reading
// backwards in fixed-size chunks.
func seekLastLines(file *os.File, n int) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	buf := make([]byte, tailChunkSize)
	pos := size
	newlines := 0

	// A trailing newline ends the last line rather than starting a new one.
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		newlines = -1
	}

	for pos > 0 {
		chunk := int64(len(buf))
		if pos < chunk {
			chunk = pos
		}
		pos -= chunk
		if _, err := file.ReadAt(buf[:chunk], pos); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		for i := chunk - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			newlines++
			if newlines == n {
				_, err := file.Seek(pos+i+1, io.SeekStart)
				return err
			}
		}
	}
	_, err = file.Seek(0, io.SeekStart)
	return err
}
