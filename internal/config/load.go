package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/shanewwarren/fresher-sub000/internal/fresherdir"
)

// WithSources holds configuration along with the source of each key that
// was set by something other than the defaults.
type WithSources struct {
	Config  *Config
	Sources map[string]Source
	File    string
}

// Load loads configuration for the project at workDir from defaults,
// .fresher/config.toml, .fresher/.env and the environment. Flags are
// applied afterwards with Flags.Apply.
func Load(workDir string) (*Config, error) {
	ws, err := LoadWithSources(workDir)
	if err != nil {
		return nil, err
	}
	return ws.Config, nil
}

// LoadWithSources loads configuration and tracks where each value came from.
func LoadWithSources(workDir string) (*WithSources, error) {
	if workDir == "" {
		workDir = "."
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	cfg := Defaults()
	cfg.ProjectDir = abs
	ws := &WithSources{Config: cfg, Sources: make(map[string]Source)}

	// 1. Project config file
	configPath := fresherdir.ConfigPath(abs)
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFile(cfg, configPath, ws.Sources); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
		ws.File = configPath
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat config file: %w", err)
	}

	// 2. Dotenv file; existing variables win
	if err := loadDotEnv(fresherdir.EnvPath(abs)); err != nil {
		return nil, err
	}

	// 3. Environment
	loadFromEnv(cfg, ws.Sources)

	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return ws, nil
}

// loadConfigFile validates and decodes TOML config from path.
func loadConfigFile(cfg *Config, path string, sources map[string]Source) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := ValidateTOML(data); err != nil {
		return err
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	for _, key := range md.Keys() {
		if len(key) == 2 {
			sources[key.String()] = SourceFile
		}
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// finalizeConfig validates derived values.
func finalizeConfig(cfg *Config) error {
	if err := ValidateMode(cfg.Fresher.Mode); err != nil {
		return err
	}
	if cfg.Fresher.MaxTurns <= 0 {
		cfg.Fresher.MaxTurns = DefaultMaxTurns
	}
	if cfg.Fresher.Binary == "" {
		cfg.Fresher.Binary = DefaultBinary
	}
	if cfg.Fresher.SkipDelaySeconds < 0 {
		cfg.Fresher.SkipDelaySeconds = 0
	}
	if cfg.Hooks.Timeout <= 0 {
		cfg.Hooks.Timeout = DefaultHookTimeoutSeconds
	}
	return nil
}
