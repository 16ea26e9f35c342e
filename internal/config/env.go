package config

import (
	"os"
	"strconv"
)

// loadFromEnv overrides config from environment variables. Values that do
// not parse are ignored.
func loadFromEnv(cfg *Config, sources map[string]Source) {
	str := func(name, key string, target *string) {
		if v := os.Getenv(name); v != "" {
			*target = v
			sources[key] = SourceEnv
		}
	}
	boolean := func(name, key string, target *bool) {
		if v := os.Getenv(name); v != "" {
			*target = boolFromString(v)
			sources[key] = SourceEnv
		}
	}
	integer := func(name, key string, target *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
				sources[key] = SourceEnv
			}
		}
	}

	str("FRESHER_MODE", "fresher.mode", &cfg.Fresher.Mode)
	if v := os.Getenv("FRESHER_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 0); err == nil {
			cfg.Fresher.MaxIterations = uint(n)
			sources["fresher.max_iterations"] = SourceEnv
		}
	}
	boolean("FRESHER_SMART_TERMINATION", "fresher.smart_termination", &cfg.Fresher.SmartTermination)
	boolean("FRESHER_DANGEROUS_PERMISSIONS", "fresher.dangerous_permissions", &cfg.Fresher.DangerousPermissions)
	integer("FRESHER_MAX_TURNS", "fresher.max_turns", &cfg.Fresher.MaxTurns)
	str("FRESHER_MODEL", "fresher.model", &cfg.Fresher.Model)
	str("CLAUDE_BIN", "fresher.binary", &cfg.Fresher.Binary)
	integer("FRESHER_SKIP_DELAY", "fresher.skip_delay_seconds", &cfg.Fresher.SkipDelaySeconds)
	integer("FRESHER_ITERATION_TIMEOUT", "fresher.iteration_timeout_seconds", &cfg.Fresher.IterationTimeoutSeconds)

	str("FRESHER_TEST_CMD", "commands.test", &cfg.Commands.Test)
	str("FRESHER_BUILD_CMD", "commands.build", &cfg.Commands.Build)
	str("FRESHER_LINT_CMD", "commands.lint", &cfg.Commands.Lint)

	str("FRESHER_LOG_DIR", "paths.log_dir", &cfg.Paths.LogDir)
	str("FRESHER_SPEC_DIR", "paths.spec_dir", &cfg.Paths.SpecDir)
	str("FRESHER_SRC_DIR", "paths.src_dir", &cfg.Paths.SrcDir)
	str("FRESHER_PLAN_FILE", "paths.plan_file", &cfg.Paths.PlanFile)
	str("FRESHER_IMPL_DIR", "paths.impl_dir", &cfg.Paths.ImplDir)

	boolean("FRESHER_HOOKS_ENABLED", "hooks.enabled", &cfg.Hooks.Enabled)
	integer("FRESHER_HOOK_TIMEOUT", "hooks.timeout", &cfg.Hooks.Timeout)

	boolean("FRESHER_USE_DOCKER", "docker.use_docker", &cfg.Docker.UseDocker)
	str("FRESHER_DOCKER_MEMORY", "docker.memory", &cfg.Docker.Memory)
	str("FRESHER_DOCKER_CPUS", "docker.cpus", &cfg.Docker.CPUs)

	str("FRESHER_LOG_LEVEL", "logging.level", &cfg.Logging.Level)
	str("FRESHER_LOG_FORMAT", "logging.format", &cfg.Logging.Format)
	boolean("FRESHER_LOG_TIMESTAMPS", "logging.timestamps", &cfg.Logging.Timestamps)
}
