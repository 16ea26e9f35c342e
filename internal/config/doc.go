// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. Project config file (.fresher/config.toml), validated against an
//    embedded JSON Schema
// 3. Project dotenv file (.fresher/.env), which never overrides variables
//    already present in the environment
// 4. Environment variables (FRESHER_*, CLAUDE_BIN)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
package config
