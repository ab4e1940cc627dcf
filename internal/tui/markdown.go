package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders Markdown for terminal display, wrapped at width.
func RenderMarkdown(md string, width int) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	if width <= 0 {
		width = 80
	}

	style := glamour.WithAutoStyle()
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		style = glamour.WithStandardStyle("notty")
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
