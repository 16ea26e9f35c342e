// Package fresherdir provides constants and path helpers for the .fresher directory structure.
package fresherdir

import "path/filepath"

const (
	// Dir is the name of the fresher state directory.
	Dir = ".fresher"

	// ConfigFile is the project config file name (inside .fresher).
	ConfigFile = "config.toml"

	// EnvFile is an optional dotenv file (inside .fresher).
	EnvFile = ".env"

	// StateFile holds the persisted run record (inside .fresher).
	StateFile = ".state"

	// LockFile guards against two loops sharing one project (inside .fresher).
	LockFile = ".state.lock"

	// AgentsFile is appended to the agent's system prompt when present.
	AgentsFile = "AGENTS.md"

	// HooksDir holds the lifecycle hook scripts (inside .fresher).
	HooksDir = "hooks"

	// DefaultPlanFile is the implementation plan, relative to the project root.
	DefaultPlanFile = "IMPLEMENTATION_PLAN.md"
)

// DirPath returns the full path to the .fresher directory within a work directory.
func DirPath(workDir string) string {
	if workDir == "." || workDir == "" {
		return Dir
	}
	return filepath.Join(workDir, Dir)
}

// ConfigPath returns the full path to the config file within a work directory.
func ConfigPath(workDir string) string {
	return joinPath(workDir, ConfigFile)
}

// EnvPath returns the full path to the dotenv file within a work directory.
func EnvPath(workDir string) string {
	return joinPath(workDir, EnvFile)
}

// StatePath returns the full path to the state file within a work directory.
func StatePath(workDir string) string {
	return joinPath(workDir, StateFile)
}

// LockPath returns the full path to the run lock within a work directory.
func LockPath(workDir string) string {
	return joinPath(workDir, LockFile)
}

// AgentsPath returns the full path to AGENTS.md within a work directory.
func AgentsPath(workDir string) string {
	return joinPath(workDir, AgentsFile)
}

// HooksPath returns the hooks directory within a work directory.
func HooksPath(workDir string) string {
	return joinPath(workDir, HooksDir)
}

// PromptPath returns the override prompt path for a mode, e.g. PROMPT.building.md.
func PromptPath(workDir, mode string) string {
	return joinPath(workDir, "PROMPT."+mode+".md")
}

func joinPath(workDir, file string) string {
	return filepath.Join(DirPath(workDir), file)
}
