package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTheme(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "theme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func unsetenvForTest(t *testing.T, key string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	os.Unsetenv(key)
	if existed {
		t.Cleanup(func() { os.Setenv(key, prev) })
	}
}

func TestIsValidHexColor(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"#fff", true},
		{"#FFF", true},
		{"#89b4fa", true},
		{"#89B4FA", true},
		{"89b4fa", false},
		{"#89b4f", false},
		{"#89b4fa0", false},
		{"#ggg", false},
		{"", false},
		{"#", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidHexColor(tt.input))
		})
	}
}

func TestMapColorsToTheme(t *testing.T) {
	defaults := DefaultTheme()

	t.Run("palette keys", func(t *testing.T) {
		theme := mapColorsToTheme(map[string]string{
			"accent": "#111111",
			"color1": "#222222",
			"color2": "#333333",
			"color8": "#444444",
		})
		assert.Equal(t, "#111111", theme.Primary.Dark)
		assert.Equal(t, defaults.Primary.Light, theme.Primary.Light)
		assert.Equal(t, "#222222", theme.Error.Dark)
		assert.Equal(t, "#333333", theme.Success.Dark)
		assert.Equal(t, "#444444", theme.Muted.Dark)
		assert.Equal(t, "#444444", theme.Border.Dark)
		assert.Equal(t, defaults.Warning, theme.Warning)
	})

	t.Run("semantic keys win over palette keys", func(t *testing.T) {
		theme := mapColorsToTheme(map[string]string{
			"accent":  "#111111",
			"primary": "#abcdef",
			"color4":  "#999999",
		})
		assert.Equal(t, "#abcdef", theme.Primary.Dark)
	})

	t.Run("color4 falls back for primary", func(t *testing.T) {
		theme := mapColorsToTheme(map[string]string{"color4": "#999999"})
		assert.Equal(t, "#999999", theme.Primary.Dark)
	})

	t.Run("empty map is the default theme", func(t *testing.T) {
		assert.Equal(t, defaults, mapColorsToTheme(map[string]string{}))
	})
}

func TestLoadThemeFromFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeTheme(t, t.TempDir(), `# Test theme
accent: "#89b4fa"
foreground: "#cdd6f4"
color1: "#f38ba8"
Warning: "#f9e2af"
`)
		theme, err := LoadThemeFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, "#89b4fa", theme.Primary.Dark)
		assert.Equal(t, "#cdd6f4", theme.Foreground.Dark)
		assert.Equal(t, "#f38ba8", theme.Error.Dark)
		assert.Equal(t, "#f9e2af", theme.Warning.Dark, "keys are case-insensitive")
	})

	t.Run("invalid colors are skipped", func(t *testing.T) {
		path := writeTheme(t, t.TempDir(), "accent: blue\ncolor1: \"#f38ba8\"\n")
		theme, err := LoadThemeFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, DefaultTheme().Primary, theme.Primary)
		assert.Equal(t, "#f38ba8", theme.Error.Dark)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeTheme(t, t.TempDir(), "accent: [unterminated\n")
		_, err := LoadThemeFromFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadThemeFromFile("/nonexistent/path/theme.yaml")
		assert.Error(t, err)
	})
}

func TestNoColorTheme(t *testing.T) {
	theme := NoColorTheme()

	assert.Empty(t, theme.Primary.Light)
	assert.Empty(t, theme.Primary.Dark)
	assert.Empty(t, theme.Error.Dark)
	assert.Empty(t, theme.Success.Dark)
	assert.Empty(t, theme.Foreground.Dark)
}

func TestResolveTheme(t *testing.T) {
	t.Run("NO_COLOR returns empty theme", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")

		theme := ResolveTheme()
		assert.Empty(t, theme.Primary.Dark)
	})

	t.Run("REQSTATE_THEME loads custom file", func(t *testing.T) {
		unsetenvForTest(t, "NO_COLOR")
		t.Setenv("REQSTATE_THEME", writeTheme(t, t.TempDir(), "accent: \"#ff0000\"\n"))

		assert.Equal(t, "#ff0000", ResolveTheme().Primary.Dark)
	})

	t.Run("user theme from config dir", func(t *testing.T) {
		unsetenvForTest(t, "NO_COLOR")
		unsetenvForTest(t, "REQSTATE_THEME")
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", home)
		require.NoError(t, os.MkdirAll(filepath.Join(home, "reqstate"), 0755))
		writeTheme(t, filepath.Join(home, "reqstate"), "accent: \"#00ff00\"\n")

		assert.Equal(t, filepath.Join(home, "reqstate", "theme.yaml"), UserThemePath())
		assert.Equal(t, "#00ff00", ResolveTheme().Primary.Dark)
	})

	t.Run("invalid REQSTATE_THEME falls back to default", func(t *testing.T) {
		unsetenvForTest(t, "NO_COLOR")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("REQSTATE_THEME", "/nonexistent/theme.yaml")

		assert.Equal(t, DefaultTheme(), ResolveTheme())
	})
}
