package loop

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/shanewwarren/fresher-sub000/internal/state"
)

var (
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	summaryLabel = lipgloss.NewStyle().Faint(true).Width(12)
	summaryBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

var finishStyles = map[state.FinishReason]lipgloss.Style{
	state.FinishComplete:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	state.FinishNoChanges:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	state.FinishMaxIterations: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	state.FinishManual:        lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	state.FinishHookAbort:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	state.FinishError:         lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
}

// printSummary writes the end-of-run box.
func printSummary(w io.Writer, run *state.Run, logDir string) {
	rows := []string{
		summaryTitle.Render("Fresher loop complete"),
		"",
		row("Mode", string(run.Mode)),
		row("Iterations", fmt.Sprintf("%d", run.Iteration)),
		row("Commits", fmt.Sprintf("%d", run.TotalCommits)),
		row("Duration", formatDuration(run.Duration())),
		summaryLabel.Render("Finished") + finishStyles[run.FinishType].Render(string(run.FinishType)),
	}
	if logDir != "" {
		rows = append(rows, row("Logs", logDir))
	}
	fmt.Fprintln(w, summaryBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func row(label, value string) string {
	return summaryLabel.Render(label) + value
}

// formatDuration renders d as "1h 2m 3s", dropping leading zero units.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
