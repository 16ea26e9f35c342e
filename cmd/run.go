package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/shanewwarren/fresher-sub000/internal/agents"
	"github.com/shanewwarren/fresher-sub000/internal/config"
	"github.com/shanewwarren/fresher-sub000/internal/fresherdir"
	"github.com/shanewwarren/fresher-sub000/internal/hooks"
	"github.com/shanewwarren/fresher-sub000/internal/loop"
	"github.com/shanewwarren/fresher-sub000/internal/prompts"
	"github.com/shanewwarren/fresher-sub000/internal/sandbox"
	"github.com/shanewwarren/fresher-sub000/internal/state"
	"github.com/shanewwarren/fresher-sub000/internal/termination"
	"github.com/shanewwarren/fresher-sub000/internal/vcs"
)

func (a *app) newLoopCommand(mode string) *cobra.Command {
	use, short := "plan", "Run the planning loop: derive the implementation plan from specs"
	if mode == config.ModeBuilding {
		use, short = "build", "Run the building loop: implement one plan task per iteration"
	}

	var flags *config.Flags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLoop(cmd.Context(), mode, flags)
		},
	}
	flags = config.BindFlags(cmd.Flags())
	return cmd
}

func (a *app) runLoop(ctx context.Context, mode string, flags *config.Flags) error {
	ws, err := a.loadConfig(flags)
	if err != nil {
		return err
	}
	cfg := ws.Config
	cfg.Fresher.Mode = mode
	logger := a.logger(cfg)

	if err := config.ValidateEnvironment(cfg, mode); err != nil {
		if errors.Is(err, sandbox.ErrNotIsolated) {
			fmt.Fprintln(a.stderr, sandbox.Hint)
		}
		return &ExitError{Code: ExitEnvironment, Err: err}
	}

	promptStore := prompts.NewStore(cfg.ProjectDir)
	prompt, err := promptStore.Load(prompts.Data{
		Mode:     mode,
		SpecDir:  cfg.Paths.SpecDir,
		SrcDir:   cfg.Paths.SrcDir,
		PlanFile: cfg.Paths.PlanFile,
		ImplDir:  cfg.Paths.ImplDir,
		Commands: prompts.Commands{
			Test:  cfg.Commands.Test,
			Build: cfg.Commands.Build,
			Lint:  cfg.Commands.Lint,
		},
	})
	if err != nil {
		return fmt.Errorf("loading prompt: %w", err)
	}
	if prompt.Source != "" {
		logger.Info("Using prompt override", "path", prompt.Source)
	}

	git := vcs.New(cfg.ProjectDir)
	agent := agents.NewClaudeAgent(agents.Config{
		Binary:               cfg.Fresher.Binary,
		Model:                cfg.Fresher.Model,
		MaxTurns:             cfg.Fresher.MaxTurns,
		DangerousPermissions: cfg.Fresher.DangerousPermissions,
		SystemPromptFile:     promptStore.SystemPromptFile(),
		WorkDir:              cfg.ProjectDir,
		Timeout:              cfg.IterationTimeout(),
		Revisions:            git,
	}, agents.NewConsoleRenderer(a.stdout, a.verbose), logger)

	hookRunner := &hooks.Runner{
		Dir:     fresherdir.HooksPath(cfg.ProjectDir),
		WorkDir: cfg.ProjectDir,
		Timeout: cfg.HookTimeout(),
		Enabled: cfg.Hooks.Enabled,
		Logger:  logger,
		Stdout:  a.stdout,
		Stderr:  a.stderr,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var interrupt atomic.Bool
	stop := loop.WatchSignals(ctx, cancel, &interrupt, logger)
	defer stop()

	ctrl, err := loop.New(loop.Options{
		Mode:             state.Mode(mode),
		ProjectDir:       cfg.ProjectDir,
		MaxIterations:    cfg.Fresher.MaxIterations,
		SmartTermination: cfg.Fresher.SmartTermination,
		PlanPath:         cfg.PlanPath(),
		ImplDir:          cfg.ImplPath(),
		Prompt:           prompt.Text,
		SkipDelay:        cfg.SkipDelay(),
		LogDir:           cfg.LogPath(),
		Agent:            agent,
		Hooks:            hookRunner,
		Oracle:           termination.New(logger),
		Store:            state.NewStore(cfg.ProjectDir),
		Revisions:        git,
		Interrupt:        &interrupt,
		Logger:           logger,
		Summary:          a.stdout,
	})
	if err != nil {
		return err
	}

	run, err := ctrl.Run(ctx)
	if err != nil {
		if errors.Is(err, state.ErrLocked) {
			return &ExitError{Code: ExitLocked, Err: err}
		}
		return err
	}
	if run.FinishType == state.FinishError {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%s loop finished with an error after %d iteration(s)", mode, run.Iteration)}
	}
	return nil
}
