//go:build !windows

package utils

import (
	"io/fs"
	"os/exec"
	"syscall"
)

// DetachProcessGroup starts cmd in its own process group so a terminal
// Ctrl+C reaches only the parent. Cancelling the command's context kills the
// whole group, including grandchildren that inherited its pipes.
func DetachProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}

// IsExecutable reports whether a regular file has any execute bit set.
func IsExecutable(path string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
