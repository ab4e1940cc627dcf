package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Primary    lipgloss.AdaptiveColor
	Secondary  lipgloss.AdaptiveColor
	Success    lipgloss.AdaptiveColor
	Warning    lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Border     lipgloss.AdaptiveColor
}

// DefaultTheme returns the default reqstate theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:    lipgloss.AdaptiveColor{Light: "#5b3cc4", Dark: "#b4a7f5"},
		Secondary:  lipgloss.AdaptiveColor{Light: "#5f6368", Dark: "#9aa0a6"},
		Success:    lipgloss.AdaptiveColor{Light: "#1e8e3e", Dark: "#81c995"},
		Warning:    lipgloss.AdaptiveColor{Light: "#b06000", Dark: "#fdd663"},
		Error:      lipgloss.AdaptiveColor{Light: "#d93025", Dark: "#f28b82"},
		Muted:      lipgloss.AdaptiveColor{Light: "#80868b", Dark: "#6e7681"},
		Foreground: lipgloss.AdaptiveColor{Light: "#202124", Dark: "#e8eaed"},
		Border:     lipgloss.AdaptiveColor{Light: "#dadce0", Dark: "#3c4043"},
	}
}

// Styles holds the styled components for the TUI.
type Styles struct {
	theme Theme

	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style

	// One badge per request status.
	Idle      lipgloss.Style
	Loading   lipgloss.Style
	Succeeded lipgloss.Style
	Failed    lipgloss.Style
}

// NewStyles creates Styles from the resolved theme.
func NewStyles() *Styles {
	return NewStylesWithTheme(ResolveTheme())
}

// NewStylesWithTheme creates a new Styles with a custom theme.
func NewStylesWithTheme(theme Theme) *Styles {
	s := &Styles{theme: theme}

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary)
	s.Body = lipgloss.NewStyle().Foreground(theme.Foreground)
	s.Muted = lipgloss.NewStyle().Foreground(theme.Muted)
	s.Success = lipgloss.NewStyle().Foreground(theme.Success)
	s.Warning = lipgloss.NewStyle().Foreground(theme.Warning)
	s.Error = lipgloss.NewStyle().Foreground(theme.Error)

	s.Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	s.Idle = badge.Foreground(theme.Muted)
	s.Loading = badge.Foreground(theme.Warning)
	s.Succeeded = badge.Foreground(theme.Success)
	s.Failed = badge.Foreground(theme.Error)

	return s
}

// Theme returns the current theme.
func (s *Styles) Theme() Theme {
	return s.theme
}

// RenderStatus renders a status badge, e.g. "● loading".
func (s *Styles) RenderStatus(status request.Status) string {
	style := s.Idle
	switch status {
	case request.StatusLoading:
		style = s.Loading
	case request.StatusSucceeded:
		style = s.Succeeded
	case request.StatusFailed:
		style = s.Failed
	}
	return style.Render("● " + status.String())
}

// RenderKeyValue renders a key-value pair.
func (s *Styles) RenderKeyValue(key string, value any) string {
	return s.Muted.Render(key+": ") + s.Body.Render(fmt.Sprint(value))
}

// RenderResult renders a final ✓ or ✗ line.
func (s *Styles) RenderResult(ok bool, message string) string {
	if ok {
		return s.Success.Render("✓ " + message)
	}
	return s.Error.Render("✗ " + message)
}
