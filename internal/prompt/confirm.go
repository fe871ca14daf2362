// Package prompt asks the user to confirm destructive operations.
package prompt

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	yesStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	noStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
)

// IsInteractive reports whether f is a terminal a prompt can read from.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ConfirmModel is a yes/no question. The default answer is no.
type ConfirmModel struct {
	question string
	answer   bool
	done     bool
}

// NewConfirmModel creates a ConfirmModel asking question.
func NewConfirmModel(question string) ConfirmModel {
	return ConfirmModel{question: question}
}

// Answer reports whether the user confirmed.
func (m ConfirmModel) Answer() bool {
	return m.answer
}

// Done reports whether the user answered.
func (m ConfirmModel) Done() bool {
	return m.done
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "y", "Y":
		m.answer = true
		m.done = true
		return m, tea.Quit
	case "n", "N", "enter", "esc", "q", "ctrl+c":
		m.answer = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.done {
		answer := noStyle.Render("no")
		if m.answer {
			answer = yesStyle.Render("yes")
		}
		return fmt.Sprintf("%s %s\n", questionStyle.Render(m.question), answer)
	}
	return fmt.Sprintf("%s %s ", questionStyle.Render(m.question), hintStyle.Render("[y/N]"))
}

// Confirm runs a ConfirmModel on in and out and returns the answer.
func Confirm(ctx context.Context, question string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(question),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	m, ok := final.(ConfirmModel)
	if !ok {
		return false, nil
	}
	return m.Answer(), nil
}
