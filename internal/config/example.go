package config

// ExampleConfig returns a config.toml listing every option with its default.
func ExampleConfig() string {
	return `# Fresher configuration (.fresher/config.toml)
# Environment variables (FRESHER_*) and CLI flags override these values.

[fresher]
mode = "planning"
# 0 means unlimited
max_iterations = 0
smart_termination = true
dangerous_permissions = true
max_turns = 50
model = "sonnet"
binary = "claude"
skip_delay_seconds = 1
# 0 disables the per-iteration timeout
iteration_timeout_seconds = 0

[commands]
test = ""
build = ""
lint = ""

[paths]
log_dir = ".fresher/logs"
spec_dir = "specs"
src_dir = "src"
plan_file = "IMPLEMENTATION_PLAN.md"
impl_dir = "impl"

[hooks]
enabled = true
# seconds
timeout = 30

[docker]
use_docker = false
memory = "4g"
cpus = "2"

[logging]
level = "info"
format = "text"
timestamps = false
`
}
