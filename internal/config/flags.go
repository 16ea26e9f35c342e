package config

import (
	"github.com/spf13/pflag"
)

// Flags holds CLI overrides. Only flags the user actually set are applied.
type Flags struct {
	fs *pflag.FlagSet

	maxIterations    uint
	maxTurns         int
	model            string
	smartTermination bool
	dangerous        bool
	skipDelay        int
	noHooks          bool
	planFile         string
	specDir          string
	logLevel         string
	logFormat        string
}

// BindFlags registers the run flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.UintVarP(&f.maxIterations, "max-iterations", "n", 0, "Maximum iterations (0 = unlimited)")
	fs.IntVar(&f.maxTurns, "max-turns", DefaultMaxTurns, "Maximum agent turns per iteration")
	fs.StringVar(&f.model, "model", "", "Model passed to the agent")
	fs.BoolVar(&f.smartTermination, "smart-termination", true, "Stop when the plan is complete or nothing changed")
	fs.BoolVar(&f.dangerous, "dangerous-permissions", true, "Skip agent permission prompts")
	fs.IntVar(&f.skipDelay, "skip-delay", DefaultSkipDelaySeconds, "Seconds to wait after a hook skips an iteration")
	fs.BoolVar(&f.noHooks, "no-hooks", false, "Disable lifecycle hooks")
	fs.StringVar(&f.planFile, "plan", "", "Implementation plan file")
	fs.StringVar(&f.specDir, "spec-dir", "", "Specification directory")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format (text, json, logfmt)")
	return f
}

// Apply copies explicitly set flags onto cfg and records their source.
func (f *Flags) Apply(ws *WithSources) error {
	cfg := ws.Config
	set := func(name, key string, apply func()) {
		if f.fs.Changed(name) {
			apply()
			ws.Sources[key] = SourceFlag
		}
	}

	set("max-iterations", "fresher.max_iterations", func() { cfg.Fresher.MaxIterations = f.maxIterations })
	set("max-turns", "fresher.max_turns", func() { cfg.Fresher.MaxTurns = f.maxTurns })
	set("model", "fresher.model", func() { cfg.Fresher.Model = f.model })
	set("smart-termination", "fresher.smart_termination", func() { cfg.Fresher.SmartTermination = f.smartTermination })
	set("dangerous-permissions", "fresher.dangerous_permissions", func() { cfg.Fresher.DangerousPermissions = f.dangerous })
	set("skip-delay", "fresher.skip_delay_seconds", func() { cfg.Fresher.SkipDelaySeconds = f.skipDelay })
	set("no-hooks", "hooks.enabled", func() { cfg.Hooks.Enabled = !f.noHooks })
	set("plan", "paths.plan_file", func() { cfg.Paths.PlanFile = f.planFile })
	set("spec-dir", "paths.spec_dir", func() { cfg.Paths.SpecDir = f.specDir })
	set("log-level", "logging.level", func() { cfg.Logging.Level = f.logLevel })
	set("log-format", "logging.format", func() { cfg.Logging.Format = f.logFormat })

	return finalizeConfig(cfg)
}
