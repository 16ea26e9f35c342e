package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveBinary finds an executable given either a path or a bare name
// looked up on PATH, and returns its resolved location.
func ResolveBinary(binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", errors.New("binary not configured")
	}

	path := binary
	if !strings.ContainsRune(binary, filepath.Separator) && !strings.ContainsRune(binary, '/') {
		resolved, err := exec.LookPath(binary)
		if err != nil {
			return "", fmt.Errorf("%s not found on PATH", binary)
		}
		path = resolved
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if !IsExecutable(path, info) {
		return "", fmt.Errorf("%s is not executable", path)
	}
	return path, nil
}

// WindowsExecutableExtensions parses PATHEXT into a set of lowercase
// extensions with a leading dot.
func WindowsExecutableExtensions() map[string]bool {
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	exts := map[string]bool{}
	for _, ext := range SplitAndTrim(pathext, ";") {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}
	return exts
}

// IsWindowsExecutable reports whether path carries a PATHEXT extension.
func IsWindowsExecutable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && WindowsExecutableExtensions()[ext]
}
