package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shanewwarren/fresher-sub000/internal/config"
	"github.com/shanewwarren/fresher-sub000/internal/fresherdir"
	"github.com/shanewwarren/fresher-sub000/internal/hooks"
	"github.com/shanewwarren/fresher-sub000/internal/plan"
	"github.com/shanewwarren/fresher-sub000/internal/sandbox"
	"github.com/shanewwarren/fresher-sub000/internal/state"
	"github.com/shanewwarren/fresher-sub000/internal/utils"
)

var errDoctorFailed = errors.New("doctor checks failed")

// checker prints one line per check and remembers whether any failed.
type checker struct {
	w      io.Writer
	failed bool
}

func (c *checker) ok(format string, args ...any) {
	fmt.Fprintf(c.w, "  %s %s\n", goodStyle.Render("✓"), fmt.Sprintf(format, args...))
}

func (c *checker) warn(format string, args ...any) {
	fmt.Fprintf(c.w, "  %s %s\n", warnStyle.Render("!"), fmt.Sprintf(format, args...))
}

func (c *checker) fail(format string, args ...any) {
	c.failed = true
	fmt.Fprintf(c.w, "  %s %s\n", badStyle.Render("✗"), fmt.Sprintf(format, args...))
}

func (c *checker) section(title string) {
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, headingStyle.Render(title))
}

func (a *app) newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the project is ready for fresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			return doctor(a.stdout, ws)
		},
	}
}

func doctor(w io.Writer, ws *config.WithSources) error {
	cfg := ws.Config
	c := &checker{w: w}

	fmt.Fprintln(w, headingStyle.Render("Fresher Doctor"))
	fmt.Fprintf(w, "Project: %s\n", cfg.ProjectDir)

	c.section("Project")
	dir := fresherdir.DirPath(cfg.ProjectDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		c.fail("%s not found", dir)
	} else {
		c.ok("%s", dir)
	}
	if ws.File != "" {
		c.ok("config: %s", ws.File)
	} else {
		c.warn("no config.toml, using defaults")
	}
	if _, err := os.Stat(fresherdir.AgentsPath(cfg.ProjectDir)); err == nil {
		c.ok("AGENTS.md appended to the system prompt")
	}
	for _, mode := range []string{config.ModePlanning, config.ModeBuilding} {
		if _, err := os.Stat(fresherdir.PromptPath(cfg.ProjectDir, mode)); err == nil {
			c.ok("%s prompt override: %s", mode, filepath.Base(fresherdir.PromptPath(cfg.ProjectDir, mode)))
		}
	}

	c.section("Dependencies")
	if path, err := utils.ResolveBinary(cfg.Fresher.Binary); err != nil {
		c.fail("agent: %v", err)
	} else {
		c.ok("agent: %s", path)
	}
	if path, err := utils.ResolveBinary("git"); err != nil {
		c.warn("git: %v (commit counting disabled)", err)
	} else {
		c.ok("git: %s", path)
	}

	c.section("Plan")
	if _, err := os.Stat(cfg.SpecPath()); err != nil {
		c.warn("spec dir %s not found", cfg.SpecPath())
	} else {
		c.ok("specs: %s", cfg.SpecPath())
	}
	if plan.HasHierarchicalPlan(cfg.ImplPath()) {
		counts, err := plan.Progress(cfg.PlanPath(), cfg.ImplPath())
		if err != nil {
			c.fail("hierarchical plan: %v", err)
		} else {
			c.ok("hierarchical plan: %s (%d/%d done)", cfg.ImplPath(), counts.Completed, counts.Total)
		}
	} else if counts, err := plan.Progress(cfg.PlanPath(), ""); err != nil {
		c.fail("plan: %v", err)
	} else if _, err := os.Stat(cfg.PlanPath()); err != nil {
		c.warn("plan %s not found (run fresher plan)", cfg.PlanPath())
	} else {
		c.ok("plan: %s (%d/%d done)", cfg.PlanPath(), counts.Completed, counts.Total)
	}

	c.section("Last run")
	last, err := state.NewStore(cfg.ProjectDir).Load()
	switch {
	case err != nil:
		c.warn("%v", err)
	case last.ID == "":
		fmt.Fprintf(w, "  %s none recorded\n", dimStyle.Render("-"))
	case !last.Finished():
		c.warn("%s run %s stopped at iteration %d without a finish reason (still running or killed)", last.Mode, last.ID, last.Iteration)
	default:
		c.ok("%s run %s: %s after %d iteration(s), %d commit(s)", last.Mode, last.ID, last.FinishType, last.Iteration, last.TotalCommits)
	}

	c.section("Hooks")
	if !cfg.Hooks.Enabled {
		c.warn("disabled")
	} else {
		hooksDir := fresherdir.HooksPath(cfg.ProjectDir)
		for _, name := range []hooks.Name{hooks.Started, hooks.NextIteration, hooks.Finished} {
			path := filepath.Join(hooksDir, string(name))
			info, err := os.Stat(path)
			switch {
			case err != nil:
				fmt.Fprintf(w, "  %s %s: none\n", dimStyle.Render("-"), name)
			case !utils.IsExecutable(path, info):
				c.warn("%s: not executable, will be skipped", name)
			default:
				c.ok("%s", name)
			}
		}
	}

	c.section("Isolation")
	switch {
	case sandbox.Inside():
		c.ok("running inside a container")
	case cfg.Docker.UseDocker:
		c.fail("use_docker is set but not running in a container")
	default:
		c.warn("not in a container; the agent runs with host access")
	}

	fmt.Fprintln(w)
	if c.failed {
		fmt.Fprintln(w, warnStyle.Render("Some checks failed."))
		return errDoctorFailed
	}
	fmt.Fprintln(w, goodStyle.Render("All checks passed."))
	return nil
}
