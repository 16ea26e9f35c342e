//go:build windows

package utils

import (
	"io/fs"
	"os/exec"
)

// DetachProcessGroup is a no-op on Windows; the default Cancel kills the
// direct child only.
func DetachProcessGroup(cmd *exec.Cmd) {}

// IsExecutable falls back to PATHEXT since Windows has no execute bit.
func IsExecutable(path string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && IsWindowsExecutable(path)
}
