package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shanewwarren/fresher-sub000/internal/fresherdir"
	"github.com/shanewwarren/fresher-sub000/internal/plan"
	"github.com/shanewwarren/fresher-sub000/internal/sandbox"
	"github.com/shanewwarren/fresher-sub000/internal/utils"
)

// ErrEnvironment marks problems that must be fixed before a run can start.
var ErrEnvironment = errors.New("environment not ready")

// ValidateEnvironment checks the prerequisites of a run in mode. Every
// problem found is reported, each wrapping ErrEnvironment.
func ValidateEnvironment(cfg *Config, mode string) error {
	return validateEnvironment(cfg, mode, sandbox.Detector{})
}

func validateEnvironment(cfg *Config, mode string, detector sandbox.Detector) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrEnvironment}, args...)...))
	}

	if err := ValidateMode(mode); err != nil {
		fail("%v", err)
	}

	dir := fresherdir.DirPath(cfg.ProjectDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fail("%s not found; create it with a config.toml to initialize the project", dir)
	}

	if _, err := utils.ResolveBinary(cfg.Fresher.Binary); err != nil {
		fail("agent binary: %v", err)
	}

	if mode == ModeBuilding && !plan.HasHierarchicalPlan(cfg.ImplPath()) {
		if _, err := os.Stat(cfg.PlanPath()); err != nil {
			fail("no implementation plan at %s; run `fresher plan` first", cfg.PlanPath())
		}
	}

	if err := detector.Enforce(cfg.Docker.UseDocker); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrEnvironment, err))
	}

	return errors.Join(errs...)
}
