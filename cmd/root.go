// Package cmd implements the fresher command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shanewwarren/fresher-sub000/internal/config"
	"github.com/shanewwarren/fresher-sub000/internal/logging"
	"github.com/shanewwarren/fresher-sub000/internal/state"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitEnvironment = 2
	ExitLocked      = 3
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, state.ErrLocked):
		return ExitLocked
	case errors.Is(err, config.ErrEnvironment):
		return ExitEnvironment
	}
	return ExitFailure
}

// app carries state shared by the subcommands.
type app struct {
	projectDir string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer
}

// NewRootCommand builds the fresher command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fresher",
		Short: "Run a coding agent in a loop with a fresh context every iteration",
		Long: `Fresher runs the claude CLI repeatedly against a project. Each iteration
starts a new agent process with no memory of earlier ones; state lives in the
repository, the implementation plan and .fresher/.

  fresher plan     turn specs/ into IMPLEMENTATION_PLAN.md
  fresher build    implement the plan one task per iteration
  fresher verify   report how well the plan covers the specs`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
		},
	}
	root.SetVersionTemplate("fresher version {{.Version}}\n")

	root.PersistentFlags().StringVarP(&a.projectDir, "dir", "C", ".", "Project directory")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Show system events and tool results from the agent")

	root.AddCommand(
		a.newLoopCommand(config.ModePlanning),
		a.newLoopCommand(config.ModeBuilding),
		a.newVerifyCommand(),
		a.newTailCommand(),
		a.newLogsCommand(),
		a.newDoctorCommand(),
		a.newConfigCommand(),
		a.newVersionCommand(),
	)
	return root
}

// Run executes the CLI with args.
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Execute runs the CLI with the process arguments and prints any error.
func Execute(ctx context.Context) int {
	return runMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitCode(err)
}

// loadConfig reads the project configuration. Flags, when given, are applied
// on top.
func (a *app) loadConfig(flags *config.Flags) (*config.WithSources, error) {
	ws, err := config.LoadWithSources(a.projectDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags != nil {
		if err := flags.Apply(ws); err != nil {
			return nil, fmt.Errorf("applying flags: %w", err)
		}
	}
	return ws, nil
}

func (a *app) logger(cfg *config.Config) *log.Logger {
	return logging.NewConsoleLogger(a.stderr, logging.LogOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Timestamps: cfg.Logging.Timestamps,
	})
}
