package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/leofalp/graphyte/patterns/graph"
)

// Console prints the human-readable run messages. Colour is used only when
// the writer is a terminal.
type Console struct {
	out io.Writer

	title  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
}

// NewConsole returns a Console writing to w. A nil w discards output.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	renderer := lipgloss.NewRenderer(w)
	return &Console{
		out:    w,
		title:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		ok:     renderer.NewStyle().Foreground(lipgloss.Color("#22C55E")),
		warn:   renderer.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		fail:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		muted:  renderer.NewStyle().Foreground(lipgloss.Color("241")),
		accent: renderer.NewStyle().Underline(true).Foreground(lipgloss.Color("#06B6D4")),
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Start announces a run and the link to its trace.
func (c *Console) Start(inputLength int, traceID, traceURL string) {
	c.printf("%s %s\n", c.title.Render("graphyte"), c.muted.Render(fmt.Sprintf("analyzing %d characters", inputLength)))
	if traceURL != "" {
		c.printf("  trace: %s\n", c.accent.Render(traceURL))
		return
	}
	c.printf("  trace: %s\n", c.muted.Render(traceID))
}

// Notice prints a warning that is not tied to a stage.
func (c *Console) Notice(msg string) {
	c.printf("%s %s\n", c.warn.Render("!"), msg)
}

// Stage prints the outcome of one stage.
func (c *Console) Stage(outcome Outcome) {
	var mark string
	switch outcome.Status {
	case graph.NodeCompleted:
		mark = c.ok.Render("✔ completed")
	case graph.NodeEmpty:
		mark = c.warn.Render("∅ empty    ")
	case graph.NodeSkipped:
		mark = c.muted.Render("↷ skipped  ")
	default:
		mark = c.fail.Render("✖ failed   ")
	}

	line := fmt.Sprintf("  %s  %-38s", mark, outcome.Stage)
	if outcome.Duration > 0 {
		line += " " + c.muted.Render(outcome.Duration.Round(time.Millisecond).String())
	}
	if outcome.Status != graph.NodeCompleted && outcome.Reason != "" {
		line += " " + c.muted.Render("("+outcome.Reason+")")
	}
	c.printf("%s\n", line)
}

// Summary prints every stage outcome and the run totals.
func (c *Console) Summary(result *Result) {
	c.printf("%s\n", c.title.Render("Stage results"))
	for _, outcome := range result.Outcomes {
		c.Stage(outcome)
	}
	c.printf("%s %d completed, %d empty, %d skipped, %d failed in %s; %d model calls, %d tokens, est. %s\n",
		c.title.Render("Done:"),
		result.Count(graph.NodeCompleted),
		result.Count(graph.NodeEmpty),
		result.Count(graph.NodeSkipped),
		result.Count(graph.NodeFailed),
		result.Duration().Round(time.Millisecond),
		result.Usage.Requests,
		result.Usage.TotalUsage.TotalTokens,
		result.Cost,
	)
}
