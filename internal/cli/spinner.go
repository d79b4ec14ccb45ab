package cli

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// waitDoneMsg stops the spinner once the wrapped call returns.
type waitDoneMsg struct{}

// waitModel is the bubbletea model shown while a model-backed request runs.
type waitModel struct {
	spinner spinner.Model
	label   string
	style   lipgloss.Style
	done    bool
}

func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case waitDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.style.Render(m.label)
}

// withSpinner runs fn while animating label. Plain output skips the
// animation entirely.
func withSpinner[T any](p *printer, label string, fn func() (T, error)) (T, error) {
	if !p.styled {
		return fn()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(p.theme.Title)

	prog := tea.NewProgram(waitModel{
		spinner: sp,
		label:   label,
		style:   lipgloss.NewStyle().Foreground(p.theme.Hint).Italic(true),
	}, tea.WithOutput(p.w), tea.WithInput(nil))

	var (
		v   T
		err error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err = fn()
		prog.Send(waitDoneMsg{})
	}()

	if _, runErr := prog.Run(); runErr != nil {
		slog.Debug("spinner stopped", "error", runErr)
	}
	<-done
	return v, err
}
