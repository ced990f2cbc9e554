// Package ui holds terminal styling shared by the CLI commands.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/ffpull/ffpull/internal/engine"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FA9A")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4C4C")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)
)

// Init picks the color profile for stdout. Colors are dropped when stdout
// is not a terminal or NO_COLOR is set.
func Init() {
	if !IsTerminal(os.Stdout) || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 80.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }
func RenderHeader(s string) string { return headerStyle.Render(s) }

// RenderLogLine colors a "[SEV] ..." line by severity.
func RenderLogLine(line string) string {
	switch {
	case strings.HasPrefix(line, "[ERROR]"):
		return RenderFail(line)
	case strings.HasPrefix(line, "[WARN]"):
		return RenderWarn(line)
	default:
		return line
	}
}

// RenderOutcome returns a colored label for an outcome.
func RenderOutcome(o engine.Outcome) string {
	switch o.Kind {
	case engine.UpToDate:
		return RenderMuted(o.Kind.String())
	case engine.FastForwarded:
		return RenderPass(o.Kind.String())
	case engine.Conflict:
		return RenderWarn(o.Kind.String())
	default:
		return RenderFail(o.Kind.String())
	}
}

// ProgressBar renders a fixed-width bar for fraction in [0,1].
func ProgressBar(fraction float64, width int) string {
	if width < 3 {
		width = 3
	}
	fraction = max(0, min(1, fraction))
	filled := int(fraction * float64(width))
	return "[" + RenderAccent(strings.Repeat("=", filled)) + strings.Repeat(" ", width-filled) + "]"
}

// PrintProgress writes one progress line. On a terminal the previous line
// is overwritten until the batch completes.
func PrintProgress(w io.Writer, p engine.Progress, live bool) {
	line := fmt.Sprintf("%s %3.0f%% (%d/%d) %s: %s",
		ProgressBar(p.Fraction, 20), p.Fraction*100, p.Index, p.Total, p.Record.Name, RenderOutcome(p.Outcome))
	if live {
		fmt.Fprintf(w, "\r\033[K%s", line)
		if p.Index == p.Total {
			fmt.Fprintln(w)
		}
		return
	}
	fmt.Fprintln(w, line)
}
