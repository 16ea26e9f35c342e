package agents

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Renderer presents decoded events to a human.
type Renderer interface {
	Render(Event)
}

// NullRenderer discards events.
type NullRenderer struct{}

// Render does nothing.
func (NullRenderer) Render(Event) {}

const (
	toolPreviewLen   = 100
	resultPreviewLen = 200
)

// ConsoleRenderer prints assistant text and tool calls as they stream.
// System, framing and unknown events are shown only when Verbose is set.
type ConsoleRenderer struct {
	Verbose bool

	mu     sync.Mutex
	w      io.Writer
	dim    *color.Color
	tools  map[string]*color.Color
	plain  *color.Color
	accent *color.Color
}

// NewConsoleRenderer writes to w. Colors are enabled only when w is a
// terminal.
func NewConsoleRenderer(w io.Writer, verbose bool) *ConsoleRenderer {
	r := &ConsoleRenderer{
		Verbose: verbose,
		w:       w,
		dim:     color.New(color.Faint),
		plain:   color.New(color.Bold),
		accent:  color.New(color.FgCyan),
		tools: map[string]*color.Color{
			"Bash":  color.New(color.FgBlue, color.Bold),
			"Read":  color.New(color.FgGreen, color.Bold),
			"Write": color.New(color.FgYellow, color.Bold),
			"Edit":  color.New(color.FgYellow, color.Bold),
			"Glob":  color.New(color.FgCyan, color.Bold),
			"Grep":  color.New(color.FgCyan, color.Bold),
			"Task":  color.New(color.FgMagenta, color.Bold),
		},
	}
	if !IsTerminal(w) {
		r.setColor(false)
	} else {
		r.setColor(true)
	}
	return r
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *ConsoleRenderer) setColor(on bool) {
	all := []*color.Color{r.dim, r.plain, r.accent}
	for _, c := range r.tools {
		all = append(all, c)
	}
	for _, c := range all {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Render prints one event.
func (r *ConsoleRenderer) Render(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := event.(type) {
	case SystemEvent:
		if r.Verbose && e.Subtype != "" {
			r.println(r.dim.Sprint("[system] " + e.Subtype))
		}
	case AssistantEvent:
		for _, b := range e.Blocks {
			switch {
			case b.IsText() && b.Text != "":
				r.println(b.Text)
			case b.IsToolUse():
				r.println("  " + r.dim.Sprint("→") + " " + r.formatTool(b))
			}
		}
	case ToolResultEvent:
		if !r.Verbose {
			return
		}
		for _, res := range e.Results {
			r.println("  " + r.dim.Sprint("← "+truncate(oneLine(res.Content), resultPreviewLen)))
		}
	case ContentBlockEvent:
		if r.Verbose && e.Kind == "content_block_start" && e.Block != nil && e.Block.IsToolUse() {
			r.println("  " + r.dim.Sprint("starting:") + " " + e.Block.Name)
		}
	case ResultEvent:
		if e.Result != "" {
			r.println("")
			r.println(e.Result)
		}
		if r.Verbose {
			if e.DurationMS > 0 {
				r.println(r.dim.Sprint("Duration:") + " " + r.accent.Sprintf("%dms", e.DurationMS))
			}
			if cost := e.Cost(); cost > 0 {
				r.println(r.dim.Sprint("Cost:") + fmt.Sprintf(" $%.4f", cost))
			}
			if e.NumTurns > 0 {
				r.println(r.dim.Sprint("Turns:") + fmt.Sprintf(" %d", e.NumTurns))
			}
		}
	case UnknownEvent:
		// Non-JSON output is always shown; unknown event types only when verbose.
		switch {
		case e.Kind == "":
			r.println(e.Raw)
		case r.Verbose:
			r.println(r.dim.Sprint("[" + e.Kind + "]"))
		}
	}
}

func (r *ConsoleRenderer) formatTool(b ContentBlock) string {
	c, ok := r.tools[b.Name]
	if !ok {
		c = r.plain
	}
	detail := toolDetail(b.Name, b.Input)
	if detail == "" {
		return c.Sprint(b.Name)
	}
	if b.Name == "Bash" {
		detail = truncate(oneLine(detail), toolPreviewLen)
	}
	return c.Sprint(b.Name+":") + " " + detail
}

func (r *ConsoleRenderer) println(s string) {
	fmt.Fprintln(r.w, s)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
