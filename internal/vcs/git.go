// Package vcs queries the project's git repository for revisions.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Git runs read-only git queries in a work directory.
type Git struct {
	Binary  string
	WorkDir string
}

// New returns a Git for workDir using the git on PATH.
func New(workDir string) *Git {
	return &Git{Binary: "git", WorkDir: workDir}
}

// Head returns the current HEAD revision. It returns "" with no error when
// workDir is not a repository or has no commits yet.
func (g *Git) Head(ctx context.Context) (string, error) {
	out, err := g.output(ctx, "rev-parse", "HEAD")
	if err != nil {
		if isExitError(err) {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// CountCommits returns the number of commits reachable from to but not from
// from. An empty from counts every commit reachable from to.
func (g *Git) CountCommits(ctx context.Context, from, to string) (uint, error) {
	if to == "" || from == to {
		return 0, nil
	}
	rangeArg := to
	if from != "" {
		rangeArg = from + ".." + to
	}
	out, err := g.output(ctx, "rev-list", "--count", rangeArg)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse commit count %q: %w", out, err)
	}
	return uint(n), nil
}

func (g *Git) output(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if g.WorkDir != "" {
		cmd.Dir = g.WorkDir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
