package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shanewwarren/fresher-sub000/internal/config"
	"github.com/shanewwarren/fresher-sub000/internal/plan"
)

// Report output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

const (
	barWidth        = 20
	pendingListSize = 10
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

type hierarchicalReport struct {
	PlanType     string                 `json:"plan_type" yaml:"plan_type"`
	ImplDir      string                 `json:"impl_dir" yaml:"impl_dir"`
	TotalTasks   int                    `json:"total_tasks" yaml:"total_tasks"`
	Completed    int                    `json:"completed_tasks" yaml:"completed_tasks"`
	Pending      int                    `json:"pending_tasks" yaml:"pending_tasks"`
	InProgress   int                    `json:"in_progress_tasks" yaml:"in_progress_tasks"`
	IsComplete   bool                   `json:"is_complete" yaml:"is_complete"`
	Features     []plan.FeatureProgress `json:"features" yaml:"features"`
	CrossCutting plan.Counts            `json:"cross_cutting" yaml:"cross_cutting"`
}

type missingPlan struct {
	Error string `json:"error" yaml:"error"`
	Path  string `json:"path" yaml:"path"`
}

func (a *app) newVerifyCommand() *cobra.Command {
	var planFile, format string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report plan progress and how well the plan covers the specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case formatText, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown format %q (expected text, json or yaml)", format)
			}
			ws, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			cfg := ws.Config
			if planFile != "" {
				cfg.Paths.PlanFile = planFile
			}
			return verify(a.stdout, a.stderr, cfg, format)
		},
	}
	cmd.Flags().StringVar(&planFile, "plan", "", "Implementation plan file (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}

func verify(stdout, stderr io.Writer, cfg *config.Config, format string) error {
	implDir := cfg.ImplPath()
	if plan.HasHierarchicalPlan(implDir) {
		features, index, err := plan.Features(implDir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", implDir, err)
		}
		report := buildHierarchicalReport(implDir, features, index)
		if format == formatText {
			printHierarchicalReport(stdout, report)
			return nil
		}
		return encode(stdout, format, report)
	}

	planPath := cfg.PlanPath()
	report, err := plan.GenerateReport(planPath, cfg.SpecPath())
	if errors.Is(err, os.ErrNotExist) {
		if format == formatText {
			fmt.Fprintf(stderr, "Plan file not found: %s\n\nRun %s first to create an implementation plan.\n",
				planPath, infoStyle.Render("fresher plan"))
			return nil
		}
		return encode(stdout, format, missingPlan{Error: "Plan file not found", Path: planPath})
	}
	if err != nil {
		return fmt.Errorf("verifying plan: %w", err)
	}
	if format == formatText {
		printReport(stdout, report)
		return nil
	}
	return encode(stdout, format, report)
}

func buildHierarchicalReport(implDir string, features []plan.FeatureProgress, index plan.Counts) hierarchicalReport {
	total := index
	for _, f := range features {
		total = total.Add(f.Counts)
	}
	if features == nil {
		features = []plan.FeatureProgress{}
	}
	return hierarchicalReport{
		PlanType:     "hierarchical",
		ImplDir:      implDir,
		TotalTasks:   total.Total,
		Completed:    total.Completed,
		Pending:      total.Pending,
		InProgress:   total.InProgress,
		IsComplete:   plan.IsComplete(total),
		Features:     features,
		CrossCutting: index,
	}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q", format)
}

func printReport(w io.Writer, r *plan.Report) {
	fmt.Fprintln(w, headingStyle.Render("Implementation Plan Verification"))
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintln(w)

	printTaskSummary(w, r.TotalTasks, r.CompletedTasks, r.InProgressTasks, r.PendingTasks)

	fmt.Fprintln(w, headingStyle.Render("Traceability"))
	fmt.Fprintf(w, "  Tasks with refs: %s\n", infoStyle.Render(fmt.Sprint(r.TasksWithRefs)))
	orphans := goodStyle
	if r.OrphanTasks > 0 {
		orphans = warnStyle
	}
	fmt.Fprintf(w, "  Orphan tasks:    %s\n", orphans.Render(fmt.Sprint(r.OrphanTasks)))
	fmt.Fprintln(w)

	if len(r.Coverage) > 0 {
		fmt.Fprintln(w, headingStyle.Render("Spec Coverage"))
		for _, e := range r.Coverage {
			style := badStyle
			switch {
			case e.CoveragePercent >= 80:
				style = goodStyle
			case e.CoveragePercent >= 50:
				style = warnStyle
			}
			fmt.Fprintf(w, "  %-20s %s %s (%d reqs, %d tasks)\n",
				e.SpecName, bar(e.CoveragePercent), style.Render(fmt.Sprintf("%.0f%%", e.CoveragePercent)),
				e.RequirementCount, e.TaskCount)
		}
		fmt.Fprintln(w)
	}

	var pending []plan.Task
	for _, t := range r.Tasks {
		if t.Status == plan.StatusPending {
			pending = append(pending, t)
		}
	}
	if len(pending) > 0 {
		fmt.Fprintln(w, headingStyle.Render("Pending Tasks"))
		for i, t := range pending {
			if i == pendingListSize {
				fmt.Fprintf(w, "  %s\n", dimStyle.Render(fmt.Sprintf("... and %d more", len(pending)-pendingListSize)))
				break
			}
			priority := "P?"
			if t.Priority != nil {
				priority = fmt.Sprintf("P%d", *t.Priority)
			}
			fmt.Fprintf(w, "  %s %s %s\n", dimStyle.Render("["+priority+"]"), badStyle.Render("○"), t.Description)
		}
		fmt.Fprintln(w)
	}

	switch {
	case r.PendingTasks == 0 && r.TotalTasks > 0:
		fmt.Fprintf(w, "%s All tasks completed!\n", goodStyle.Render("✓"))
	case r.PendingTasks > 0:
		fmt.Fprintf(w, "%s %d tasks remaining\n", warnStyle.Render("→"), r.PendingTasks)
	}
}

func printHierarchicalReport(w io.Writer, r hierarchicalReport) {
	fmt.Fprintln(w, headingStyle.Render("Implementation Plan Verification (Hierarchical)"))
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	fmt.Fprintln(w, headingStyle.Render("Feature Summary"))
	var next *plan.FeatureProgress
	open := 0
	for i, f := range r.Features {
		pct := f.Percent()
		style := lipgloss.NewStyle()
		switch {
		case pct >= 100:
			style = goodStyle
		case pct >= 50:
			style = warnStyle
		}
		fmt.Fprintf(w, "  %-20s %s %s\n", f.Name, bar(pct),
			style.Render(fmt.Sprintf("%.0f%% (%d/%d)", pct, f.Completed, f.Total)))
		if f.Pending > 0 {
			open++
			if next == nil {
				next = &r.Features[i]
			}
		}
	}
	fmt.Fprintln(w)

	if cc := r.CrossCutting; cc.Total > 0 {
		pending := goodStyle
		if cc.Pending > 0 {
			pending = warnStyle
		}
		fmt.Fprintln(w, headingStyle.Render("Cross-Cutting Tasks"))
		fmt.Fprintf(w, "  Total: %d, Completed: %s, Pending: %s\n",
			cc.Total, goodStyle.Render(fmt.Sprint(cc.Completed)), pending.Render(fmt.Sprint(cc.Pending)))
		fmt.Fprintln(w)
	}

	printTaskSummary(w, r.TotalTasks, r.Completed, r.InProgress, r.Pending)

	switch {
	case r.IsComplete:
		fmt.Fprintf(w, "%s All tasks completed!\n", goodStyle.Render("✓"))
	case next != nil:
		fmt.Fprintf(w, "%s %d tasks remaining across %d features\n", warnStyle.Render("→"), r.Pending, open)
		fmt.Fprintf(w, "  Next focus: %s (%d pending)\n", infoStyle.Render(next.Name), next.Pending)
	case r.Pending > 0:
		fmt.Fprintf(w, "%s %d tasks remaining\n", warnStyle.Render("→"), r.Pending)
	}
}

func printTaskSummary(w io.Writer, total, completed, inProgress, pending int) {
	pct := 0
	if total > 0 {
		pct = completed * 100 / total
	}
	fmt.Fprintln(w, headingStyle.Render("Task Summary"))
	fmt.Fprintf(w, "  Total tasks:     %s\n", infoStyle.Render(fmt.Sprint(total)))
	fmt.Fprintf(w, "  Completed:       %s\n", goodStyle.Render(fmt.Sprintf("%d (%d%%)", completed, pct)))
	fmt.Fprintf(w, "  In Progress:     %s\n", warnStyle.Render(fmt.Sprint(inProgress)))
	fmt.Fprintf(w, "  Pending:         %s\n", badStyle.Render(fmt.Sprint(pending)))
	fmt.Fprintln(w)
}

// bar renders pct as a fixed-width progress bar.
func bar(pct float64) string {
	filled := int(pct / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}
