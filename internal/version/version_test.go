package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// setBuild overrides the ldflags variables for one test.
func setBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
	Version, Commit, Date = version, commit, date
}

func TestIsDev(t *testing.T) {
	setBuild(t, "dev", "none", "unknown")
	assert.True(t, IsDev())

	Version = "0.3.0"
	assert.False(t, IsDev())
}

func TestFull(t *testing.T) {
	tests := []struct {
		name                  string
		version, commit, date string
		want                  string
	}{
		{"release without commit", "1.2.3", "none", "unknown", "reqstate version 1.2.3"},
		{"release with commit", "1.2.3", "abc1234", "2026-01-02", "reqstate version 1.2.3 (abc1234, 2026-01-02)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuild(t, tt.version, tt.commit, tt.date)
			assert.Equal(t, tt.want, Full())
		})
	}

	t.Run("dev build", func(t *testing.T) {
		setBuild(t, "dev", "none", "unknown")
		assert.Regexp(t, `^reqstate version dev \((built from source|[0-9a-f]{7})\)$`, Full())
	})
}
