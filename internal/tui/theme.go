// Package tui provides terminal user interface components.
package tui

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR env var set → NoColorTheme
//  2. REQSTATE_THEME env var → that theme file
//  3. $XDG_CONFIG_HOME/reqstate/theme.yaml (default ~/.config/reqstate)
//  4. DefaultTheme
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}

	if path := os.Getenv("REQSTATE_THEME"); path != "" {
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}

	if theme, err := LoadThemeFromFile(UserThemePath()); err == nil {
		return theme
	}

	return DefaultTheme()
}

// NoColorTheme returns a theme with empty colors.
// Lipgloss treats empty strings as "no color".
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Secondary:  empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Foreground: empty,
		Border:     empty,
	}
}

// UserThemePath returns where the user theme file is looked up.
func UserThemePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "reqstate", "theme.yaml")
}

// LoadThemeFromFile reads a YAML file of color keys and returns a Theme.
// Keys may be semantic (primary, error, ...) or terminal palette names
// (accent, color1, ...); semantic keys win.
//
//	primary: "#89b4fa"
//	color1: "#f38ba8"
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return Theme{}, err
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Theme{}, err
	}

	colors := make(map[string]string, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if isValidHexColor(v) {
			colors[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return mapColorsToTheme(colors), nil
}

// isValidHexColor checks if a string is a valid hex color (#RGB or #RRGGBB).
func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range hex {
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'f'
		isUpper := c >= 'A' && c <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}

// mapColorsToTheme overrides the dark variants of the default theme.
//
//	primary    ← accent, color4
//	secondary  ← color7
//	success    ← color2
//	warning    ← color3
//	error      ← color1
//	muted      ← color8, color0
//	foreground ← foreground
//	border     ← color8, color0
func mapColorsToTheme(colors map[string]string) Theme {
	defaults := DefaultTheme()

	pick := func(base lipgloss.AdaptiveColor, keys ...string) lipgloss.AdaptiveColor {
		for _, k := range keys {
			if v, ok := colors[k]; ok {
				return lipgloss.AdaptiveColor{Light: base.Light, Dark: v}
			}
		}
		return base
	}

	return Theme{
		Primary:    pick(defaults.Primary, "primary", "accent", "color4"),
		Secondary:  pick(defaults.Secondary, "secondary", "color7"),
		Success:    pick(defaults.Success, "success", "color2"),
		Warning:    pick(defaults.Warning, "warning", "color3"),
		Error:      pick(defaults.Error, "error", "color1"),
		Muted:      pick(defaults.Muted, "muted", "color8", "color0"),
		Foreground: pick(defaults.Foreground, "foreground"),
		Border:     pick(defaults.Border, "border", "color8", "color0"),
	}
}
