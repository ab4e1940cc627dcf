package appctx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frontend-bootcamp/reqstate/internal/config"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/observability"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/request"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.DataFile = config.MemoryDataFile
	cfg.Latency = "0s"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app, err := NewApp(cfg, WithWriters(&stdout, &stderr))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app, &stdout, &stderr
}

func TestNewApp(t *testing.T) {
	cfg := memoryConfig()
	app, _, _ := newTestApp(t, cfg)

	if app.Config != cfg {
		t.Error("Config not set correctly")
	}
	if app.Store == nil {
		t.Error("Store not initialized")
	}
	if app.Store.Path() != "" {
		t.Errorf("in-memory store has path %q", app.Store.Path())
	}
	if app.Output == nil {
		t.Error("Output writer not initialized")
	}
	if app.Collector == nil || app.Hooks == nil || app.Metrics == nil || app.Registry == nil {
		t.Error("observability not initialized")
	}
	if app.Tracing == nil {
		t.Error("tracing hooks not initialized")
	}
}

func TestNewAppOpensDataFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.DataFile = filepath.Join(t.TempDir(), "nested", "data.json")
	app, _, _ := newTestApp(t, cfg)

	if app.Store.Path() != cfg.DataFile {
		t.Errorf("Store.Path() = %q, want %q", app.Store.Path(), cfg.DataFile)
	}
	if _, err := os.Stat(filepath.Dir(cfg.DataFile)); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
}

func TestNewAppWithStore(t *testing.T) {
	store := mockapi.NewStore()
	app, err := NewApp(memoryConfig(), WithStore(store), WithWriters(&bytes.Buffer{}, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Store != store {
		t.Error("WithStore was ignored")
	}
}

func TestWithAppAndFromContext(t *testing.T) {
	app, _, _ := newTestApp(t, memoryConfig())

	ctx := WithApp(context.Background(), app)
	if FromContext(ctx) != app {
		t.Error("FromContext did not retrieve the same app")
	}
}

func TestFromContextEmpty(t *testing.T) {
	if app := FromContext(context.Background()); app != nil {
		t.Error("expected nil from empty context")
	}
}

func TestApplyFlagsFormat(t *testing.T) {
	tests := []struct {
		name  string
		flags GlobalFlags
		want  output.Format
	}{
		{"default piped", GlobalFlags{}, output.FormatJSON},
		{"json", GlobalFlags{JSON: true}, output.FormatJSON},
		{"quiet", GlobalFlags{Quiet: true}, output.FormatQuiet},
		{"ids", GlobalFlags{IDsOnly: true}, output.FormatIDs},
		{"count", GlobalFlags{Count: true}, output.FormatCount},
		{"md", GlobalFlags{MD: true}, output.FormatMarkdown},
		{"styled", GlobalFlags{Styled: true}, output.FormatStyled},
		{"ids beats json", GlobalFlags{IDsOnly: true, JSON: true}, output.FormatIDs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, _ := newTestApp(t, memoryConfig())
			app.Flags = tt.flags
			app.ApplyFlags()

			if got := app.Output.EffectiveFormat(); got != tt.want {
				t.Errorf("EffectiveFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyFlagsConfigFormat(t *testing.T) {
	cfg := memoryConfig()
	cfg.Format = "markdown"
	app, _, _ := newTestApp(t, cfg)
	app.ApplyFlags()

	if got := app.Output.EffectiveFormat(); got != output.FormatMarkdown {
		t.Errorf("EffectiveFormat() = %v, want markdown", got)
	}
}

func TestApplyFlagsVerbose(t *testing.T) {
	t.Setenv("REQSTATE_DEBUG", "")
	app, _, _ := newTestApp(t, memoryConfig())
	app.Flags.Verbose = 2
	app.ApplyFlags()

	if got := app.Hooks.Level(); got != 2 {
		t.Errorf("Hooks.Level() = %d, want 2", got)
	}
}

func TestApplyFlagsDebugEnv(t *testing.T) {
	t.Setenv("REQSTATE_DEBUG", "true")
	app, _, _ := newTestApp(t, memoryConfig())
	app.ApplyFlags()

	if got := app.Hooks.Level(); got != 2 {
		t.Errorf("Hooks.Level() = %d, want 2", got)
	}
}

func TestApplyFlagsStatsFromConfig(t *testing.T) {
	cfg := memoryConfig()
	on := true
	cfg.Stats = &on
	app, _, _ := newTestApp(t, cfg)
	app.ApplyFlags()

	if !app.Flags.Stats {
		t.Error("stats from config not applied")
	}
}

func TestGlobalFlagsOverrides(t *testing.T) {
	o := GlobalFlags{Latency: "5ms", ClearOnFailure: true}.Overrides()
	if o.FailureRate != nil {
		t.Error("unset failure rate should not override")
	}
	if o.Latency != "5ms" || !o.ClearOnFailure {
		t.Errorf("unexpected overrides: %+v", o)
	}

	o = GlobalFlags{FailureRate: 0, FailureRateSet: true}.Overrides()
	if o.FailureRate == nil || *o.FailureRate != 0 {
		t.Error("explicit zero failure rate should override")
	}
}

func TestRequestOptionsWireHooks(t *testing.T) {
	app, _, stderr := newTestApp(t, memoryConfig())
	app.Flags.Verbose = 1
	app.ApplyFlags()

	c := request.New[int](context.Background(), app.RequestOptions("users")...)
	defer c.Close()

	state := c.RunSync(func(context.Context) (int, error) { return 7, nil })
	if state.Status() != request.StatusSucceeded {
		t.Fatalf("status = %v, want succeeded", state.Status())
	}
	if c.Label() != "users" {
		t.Errorf("Label() = %q", c.Label())
	}

	summary := app.Collector.Summary()
	if summary.Started != 1 || summary.Succeeded != 1 {
		t.Errorf("collector = %+v", summary)
	}
	if !strings.Contains(stderr.String(), "Succeeded users#1") {
		t.Errorf("trace output missing settle line: %q", stderr.String())
	}
}

func TestRequestOptionsPolicy(t *testing.T) {
	cfg := memoryConfig()
	cfg.FailurePolicy = "clear"
	app, _, _ := newTestApp(t, cfg)

	c := request.New[int](context.Background(), app.RequestOptions("todos")...)
	defer c.Close()
	if c.Policy() != request.ClearData {
		t.Errorf("Policy() = %v, want clear", c.Policy())
	}
}

func TestNewQueryClient(t *testing.T) {
	app, _, _ := newTestApp(t, memoryConfig())
	client := app.NewQueryClient(context.Background(), "test")
	defer client.Teardown()

	if client.Name() != "test" {
		t.Errorf("Name() = %q", client.Name())
	}
	if client.Config().FreshTTL != app.Config.FreshTTLDuration() {
		t.Errorf("FreshTTL = %v", client.Config().FreshTTL)
	}
}

func TestAppOKWithStats(t *testing.T) {
	tests := []struct {
		name        string
		stats       bool
		expectStats bool
	}{
		{"stats on", true, true},
		{"stats off", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, stdout, _ := newTestApp(t, memoryConfig())
			app.Flags.JSON = true
			app.ApplyFlags()
			app.Flags.Stats = tt.stats

			if err := app.OK(map[string]string{"test": "data"}); err != nil {
				t.Fatalf("OK() failed: %v", err)
			}

			var resp map[string]any
			if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse JSON output: %v", err)
			}
			meta, hasMeta := resp["meta"].(map[string]any)
			hasStats := hasMeta && meta["stats"] != nil
			if hasStats != tt.expectStats {
				t.Errorf("stats presence = %v, want %v", hasStats, tt.expectStats)
			}
		})
	}
}

func TestAppErrStatsFooter(t *testing.T) {
	tests := []struct {
		name   string
		flags  GlobalFlags
		footer bool
	}{
		{"json with stats", GlobalFlags{JSON: true, Stats: true}, true},
		{"styled with stats", GlobalFlags{Styled: true, Stats: true}, true},
		{"quiet suppresses", GlobalFlags{Quiet: true, Stats: true}, false},
		{"jq suppresses", GlobalFlags{JQ: ".", Stats: true}, false},
		{"stats off", GlobalFlags{JSON: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, stderr := newTestApp(t, memoryConfig())
			app.Flags = tt.flags
			app.ApplyFlags()
			app.Collector.RecordStart(request.Info{Label: "users", Token: 1})

			if err := app.Err(errors.New("boom")); err != nil {
				t.Fatalf("Err() failed: %v", err)
			}
			got := strings.Contains(stderr.String(), "Stats: 1 request")
			if got != tt.footer {
				t.Errorf("footer printed = %v, want %v (stderr %q)", got, tt.footer, stderr.String())
			}
		})
	}
}

func TestIsInteractiveMachineModes(t *testing.T) {
	for _, flags := range []GlobalFlags{
		{JSON: true}, {Quiet: true}, {IDsOnly: true}, {Count: true}, {JQ: ".[]"},
	} {
		app, _, _ := newTestApp(t, memoryConfig())
		app.Flags = flags
		if app.IsInteractive() {
			t.Errorf("IsInteractive() = true for %+v", flags)
		}
	}
}

func TestCloseWritesMetrics(t *testing.T) {
	app, _, _ := newTestApp(t, memoryConfig())
	path := filepath.Join(t.TempDir(), "metrics.prom")
	app.Flags.MetricsOut = path

	c := request.New[int](context.Background(), app.RequestOptions("products")...)
	c.RunSync(func(context.Context) (int, error) { return 1, nil })
	c.Close()

	if err := app.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), `reqstate_requests_started_total{label="products"} 1`) {
		t.Errorf("metrics missing started counter:\n%s", data)
	}
}

func TestCloseWithoutMetricsOut(t *testing.T) {
	app, _, _ := newTestApp(t, memoryConfig())
	if err := app.Close(context.Background()); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

var _ request.Hooks = (*observability.CLIHooks)(nil)
