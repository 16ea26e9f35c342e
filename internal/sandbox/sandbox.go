// Package sandbox detects whether fresher is running inside an isolated
// container and enforces the isolation requirement before a run starts.
package sandbox

import (
	"errors"
	"os"
	"strings"
)

// Environment markers set by the container tooling.
const (
	EnvInDocker     = "FRESHER_IN_DOCKER"
	EnvDevContainer = "DEVCONTAINER"
	DockerEnvFile   = "/.dockerenv"
)

// ErrNotIsolated is returned by Enforce when isolation is required but the
// process runs on the host.
var ErrNotIsolated = errors.New("docker isolation required but not in container")

// Detector reports container markers. The zero value reads the real process
// environment and filesystem.
type Detector struct {
	Getenv     func(string) string
	MarkerFile string
}

// Inside reports whether any container marker is present.
func (d Detector) Inside() bool {
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if isTrue(getenv(EnvInDocker)) || isTrue(getenv(EnvDevContainer)) {
		return true
	}
	marker := d.MarkerFile
	if marker == "" {
		marker = DockerEnvFile
	}
	_, err := os.Stat(marker)
	return err == nil
}

// Enforce returns ErrNotIsolated when useDocker is set and no container
// marker is present.
func (d Detector) Enforce(useDocker bool) error {
	if !useDocker || d.Inside() {
		return nil
	}
	return ErrNotIsolated
}

// Inside reports whether the current process runs in a container.
func Inside() bool {
	return Detector{}.Inside()
}

// Enforce applies the isolation requirement to the current process.
func Enforce(useDocker bool) error {
	return Detector{}.Enforce(useDocker)
}

// Hint is printed alongside ErrNotIsolated.
const Hint = `Options:
  1. Open this folder in your editor and reopen it in the dev container
  2. Run: docker compose -f .fresher/docker/docker-compose.yml run --rm fresher

To disable docker isolation: export FRESHER_USE_DOCKER=false`

func isTrue(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
