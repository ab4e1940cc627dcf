package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// ErrInterrupted is returned by Await when the user quits before the
// request settles.
var ErrInterrupted = fmt.Errorf("interrupted: %w", context.Canceled)

// spinnerModel is the bubbletea model for a spinner.
type spinnerModel struct {
	spinner  spinner.Model
	message  string
	done     <-chan struct{}
	finished bool
	quitting bool
}

// SpinnerOption configures a spinner.
type SpinnerOption func(*spinnerModel)

// WithSpinner sets the spinner animation.
func WithSpinner(s spinner.Spinner) SpinnerOption {
	return func(m *spinnerModel) { m.spinner.Spinner = s }
}

// WithSpinnerColor sets the spinner color.
func WithSpinnerColor(color lipgloss.TerminalColor) SpinnerOption {
	return func(m *spinnerModel) {
		m.spinner.Style = lipgloss.NewStyle().Foreground(color)
	}
}

func newSpinnerModel(message string, done <-chan struct{}, opts ...SpinnerOption) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ResolveTheme().Primary)

	m := spinnerModel{
		spinner: s,
		message: message,
		done:    done,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

type spinnerDoneMsg struct{}

func (m spinnerModel) waitDone() tea.Msg {
	<-m.done
	return spinnerDoneMsg{}
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitDone)
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting || m.finished {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.message)
}

// Await shows a spinner on stderr while c is loading and returns the state
// it settles in. Quitting resets c and returns ErrInterrupted.
func Await[T any](c *request.Container[T], message string, opts ...SpinnerOption) (request.State[T], error) {
	return AwaitTo(os.Stderr, c, message, opts...)
}

// AwaitTo is Await drawing on out.
func AwaitTo[T any](out io.Writer, c *request.Container[T], message string, opts ...SpinnerOption) (request.State[T], error) {
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := c.Subscribe(func(s request.State[T]) {
		if s.Status() != request.StatusLoading {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	if c.Get().Status() != request.StatusLoading || c.Closed() {
		return c.Get(), nil
	}

	p := tea.NewProgram(newSpinnerModel(message, done, opts...), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return c.Get(), err
	}
	if m, ok := final.(spinnerModel); ok && m.quitting {
		c.Reset()
		return c.Get(), ErrInterrupted
	}
	return c.Get(), nil
}
