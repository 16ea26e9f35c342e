package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shanewwarren/fresher-sub000/internal/logging"
)

func (a *app) newTailCommand() *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest iteration log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			logPath, err := logging.FindLatestLog(ws.Config.LogPath())
			if err != nil {
				return fmt.Errorf("finding latest log: %w", err)
			}
			if logPath == "" {
				fmt.Fprintln(a.stdout, "No log files found.")
				return nil
			}

			fmt.Fprintf(a.stdout, "Tailing: %s\n", logPath)
			if follow {
				fmt.Fprintln(a.stdout, "(Ctrl+C to stop)")
			}
			fmt.Fprintln(a.stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return logging.TailLog(ctx, a.stdout, logPath, lines, follow)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show (0 = all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing appended lines")
	return cmd
}

func (a *app) newLogsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recorded runs and their iteration logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			runs, err := logging.FindLogRuns(ws.Config.LogPath())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}
			for i, run := range runs {
				if limit > 0 && i == limit {
					fmt.Fprintln(a.stdout, dimStyle.Render(fmt.Sprintf("... and %d older runs", len(runs)-limit)))
					break
				}
				fmt.Fprintf(a.stdout, "%s  %s  %d iteration(s)\n",
					infoStyle.Render(run.RunID), run.ModTime.Local().Format(time.DateTime), len(run.Iterations))
				if a.verbose {
					for _, path := range run.Iterations {
						fmt.Fprintf(a.stdout, "  %s\n", path)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum runs to list (0 = all)")
	return cmd
}
