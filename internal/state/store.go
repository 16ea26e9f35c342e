package state

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/shanewwarren/fresher-sub000/internal/fresherdir"
)

// ErrLocked is returned by Lock when another loop holds the project.
var ErrLocked = errors.New("another fresher loop is running in this project")

// Store persists a Run as TOML under .fresher/.
type Store struct {
	path     string
	lockPath string
}

// NewStore returns a store for the project rooted at workDir.
func NewStore(workDir string) *Store {
	return &Store{
		path:     fresherdir.StatePath(workDir),
		lockPath: fresherdir.LockPath(workDir),
	}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted run. A missing file yields a zero Run and no error.
func (s *Store) Load() (*Run, error) {
	run := &Run{}
	if _, err := toml.DecodeFile(s.path, run); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Run{}, nil
		}
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return run, nil
}

// Save writes the run atomically. Readers see either the old or the new
// record, never a partial one.
func (s *Store) Save(run *Run) error {
	if run == nil {
		return errors.New("save state: nil run")
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(run); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := atomicWrite(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Lock takes an exclusive, non-blocking lock on the project. The returned
// func releases it.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(s.lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", s.lockPath, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() error {
		if err := fl.Unlock(); err != nil {
			return fmt.Errorf("unlock %s: %w", s.lockPath, err)
		}
		return nil
	}, nil
}

// atomicWrite writes data to a temp file in the target directory, syncs it
// and renames it over path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	committed = true
	return nil
}
