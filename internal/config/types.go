package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Source represents where a configuration value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "config file"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// Run modes.
const (
	ModePlanning = "planning"
	ModeBuilding = "building"
)

// Default values.
const (
	DefaultMode               = ModePlanning
	DefaultMaxIterations      = 0
	DefaultMaxTurns           = 50
	DefaultModel              = "sonnet"
	DefaultBinary             = "claude"
	DefaultSkipDelaySeconds   = 1
	DefaultHookTimeoutSeconds = 30
	DefaultLogDir             = ".fresher/logs"
	DefaultSpecDir            = "specs"
	DefaultSrcDir             = "src"
	DefaultPlanFile           = "IMPLEMENTATION_PLAN.md"
	DefaultImplDir            = "impl"
	DefaultDockerMemory       = "4g"
	DefaultDockerCPUs         = "2"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Config holds the full configuration for fresher.
type Config struct {
	Fresher  FresherConfig  `toml:"fresher" json:"fresher"`
	Commands CommandsConfig `toml:"commands" json:"commands"`
	Paths    PathsConfig    `toml:"paths" json:"paths"`
	Hooks    HooksConfig    `toml:"hooks" json:"hooks"`
	Docker   DockerConfig   `toml:"docker" json:"docker"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`

	// ProjectDir is the absolute project root (computed).
	ProjectDir string `toml:"-" json:"-"`
}

// FresherConfig holds loop and agent settings.
type FresherConfig struct {
	Mode                 string `toml:"mode" json:"mode"`
	MaxIterations        uint   `toml:"max_iterations" json:"max_iterations"`
	SmartTermination     bool   `toml:"smart_termination" json:"smart_termination"`
	DangerousPermissions bool   `toml:"dangerous_permissions" json:"dangerous_permissions"`
	MaxTurns             int    `toml:"max_turns" json:"max_turns"`
	Model                string `toml:"model" json:"model"`
	Binary               string `toml:"binary" json:"binary"`

	// SkipDelaySeconds is the pause after a next_iteration hook skips.
	SkipDelaySeconds int `toml:"skip_delay_seconds" json:"skip_delay_seconds"`

	// IterationTimeoutSeconds bounds one agent run. Zero disables it.
	IterationTimeoutSeconds int `toml:"iteration_timeout_seconds" json:"iteration_timeout_seconds"`
}

// CommandsConfig names the project's validation commands. They are offered
// to the agent through the prompt.
type CommandsConfig struct {
	Test  string `toml:"test" json:"test"`
	Build string `toml:"build" json:"build"`
	Lint  string `toml:"lint" json:"lint"`
}

// PathsConfig holds project-relative paths.
type PathsConfig struct {
	LogDir   string `toml:"log_dir" json:"log_dir"`
	SpecDir  string `toml:"spec_dir" json:"spec_dir"`
	SrcDir   string `toml:"src_dir" json:"src_dir"`
	PlanFile string `toml:"plan_file" json:"plan_file"`
	ImplDir  string `toml:"impl_dir" json:"impl_dir"`
}

// HooksConfig controls lifecycle hook execution.
type HooksConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	Timeout int  `toml:"timeout" json:"timeout"`
}

// DockerConfig controls container isolation. Memory and CPUs are read by
// the container tooling.
type DockerConfig struct {
	UseDocker bool   `toml:"use_docker" json:"use_docker"`
	Memory    string `toml:"memory" json:"memory"`
	CPUs      string `toml:"cpus" json:"cpus"`
}

// LoggingConfig configures the console logger.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level"`
	Format     string `toml:"format" json:"format"`
	Timestamps bool   `toml:"timestamps" json:"timestamps"`
}

// Defaults returns a configuration populated with built-in defaults.
func Defaults() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Fresher = FresherConfig{
		Mode:                 DefaultMode,
		MaxIterations:        DefaultMaxIterations,
		SmartTermination:     true,
		DangerousPermissions: true,
		MaxTurns:             DefaultMaxTurns,
		Model:                DefaultModel,
		Binary:               DefaultBinary,
		SkipDelaySeconds:     DefaultSkipDelaySeconds,
	}
	cfg.Commands = CommandsConfig{}
	cfg.Paths = PathsConfig{
		LogDir:   DefaultLogDir,
		SpecDir:  DefaultSpecDir,
		SrcDir:   DefaultSrcDir,
		PlanFile: DefaultPlanFile,
		ImplDir:  DefaultImplDir,
	}
	cfg.Hooks = HooksConfig{Enabled: true, Timeout: DefaultHookTimeoutSeconds}
	cfg.Docker = DockerConfig{Memory: DefaultDockerMemory, CPUs: DefaultDockerCPUs}
	cfg.Logging = LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat}
}

// ValidateMode checks a mode name.
func ValidateMode(mode string) error {
	switch mode {
	case ModePlanning, ModeBuilding:
		return nil
	default:
		return fmt.Errorf("invalid mode %q (want %s or %s)", mode, ModePlanning, ModeBuilding)
	}
}

// PlanPath returns the absolute plan file path.
func (c *Config) PlanPath() string { return c.resolve(c.Paths.PlanFile) }

// SpecPath returns the absolute spec directory.
func (c *Config) SpecPath() string { return c.resolve(c.Paths.SpecDir) }

// ImplPath returns the absolute hierarchical plan directory.
func (c *Config) ImplPath() string { return c.resolve(c.Paths.ImplDir) }

// LogPath returns the absolute log directory.
func (c *Config) LogPath() string { return c.resolve(c.Paths.LogDir) }

// SkipDelay returns the skip pause as a duration.
func (c *Config) SkipDelay() time.Duration {
	return time.Duration(c.Fresher.SkipDelaySeconds) * time.Second
}

// HookTimeout returns the hook timeout as a duration.
func (c *Config) HookTimeout() time.Duration {
	return time.Duration(c.Hooks.Timeout) * time.Second
}

// IterationTimeout returns the agent timeout, zero when disabled.
func (c *Config) IterationTimeout() time.Duration {
	return time.Duration(c.Fresher.IterationTimeoutSeconds) * time.Second
}

func (c *Config) resolve(p string) string {
	p = expandPath(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
