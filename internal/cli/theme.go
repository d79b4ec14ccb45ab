package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Title   lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Hint    lipgloss.Color
}

const markdownWidth = 80

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Title:   lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Warning: lipgloss.Color("#FFAF00"), // amber
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// printer renders styled text when writing to a terminal and plain text otherwise.
type printer struct {
	w      io.Writer
	styled bool
	theme  Theme
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w), theme: defaultTheme}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) title(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Title).Bold(true), s)
}

func (p *printer) success(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Success).Bold(true), s)
}

func (p *printer) warning(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Warning).Bold(true), s)
}

func (p *printer) hint(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Hint).Italic(true), s)
}

func (p *printer) errorf(format string, args ...any) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Error).Bold(true), fmt.Sprintf(format, args...))
}

// markdown renders model-written markdown for the terminal. Render failures
// fall back to the raw text.
func (p *printer) markdown(s string) string {
	if !p.styled {
		return s
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(markdownWidth))
	if err != nil {
		return s
	}
	out, err := r.Render(s)
	if err != nil {
		return s
	}
	return out
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

// riskLabel colors a risk level by urgency.
func (p *printer) riskLabel(level string) string {
	switch level {
	case "high", "critical":
		return p.errorf("%s", level)
	case "medium":
		return p.warning(level)
	default:
		return p.success(level)
	}
}
