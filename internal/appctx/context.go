// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/frontend-bootcamp/reqstate/internal/config"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/observability"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/query"
	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Store  *mockapi.Store
	Output *output.Writer
	Logger *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Metrics   *observability.PromHooks
	Registry  *prometheus.Registry
	Tracing   *observability.TraceHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	logLevel *slog.LevelVar
	stderr   io.Writer
	shutdown func(context.Context) error
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	JQ      string

	// Store flags
	DataFile       string
	Latency        string
	FailureRate    float64
	FailureRateSet bool
	Timeout        string
	ClearOnFailure bool

	// Behavior flags
	Verbose    int // 0=off, 1=requests, 2=requests+drops (stacks with -v -v or -vv)
	Stats      bool
	MetricsOut string
}

// Overrides converts store and format flags into config overrides.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	o := config.FlagOverrides{
		DataFile:       f.DataFile,
		Latency:        f.Latency,
		Timeout:        f.Timeout,
		ClearOnFailure: f.ClearOnFailure,
	}
	if f.FailureRateSet {
		rate := f.FailureRate
		o.FailureRate = &rate
	}
	return o
}

// Option configures an App.
type Option func(*App)

// WithStore uses s instead of building a store from the config.
func WithStore(s *mockapi.Store) Option {
	return func(a *App) { a.Store = s }
}

// WithWriters redirects stdout and stderr.
func WithWriters(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.Output = output.New(output.Options{Format: output.FormatAuto, Writer: stdout})
		a.stderr = stderr
	}
}

// WithTracerProvider sets the provider for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) { a.Tracing = observability.NewTraceHooks(tp) }
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		Config:   cfg,
		Output:   output.New(output.DefaultOptions()),
		logLevel: new(slog.LevelVar),
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logLevel.Set(slog.LevelWarn)
	a.Logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: a.logLevel}))

	// Collector always runs to gather stats; hooks control output verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	a.Collector = observability.NewSessionCollector()
	a.Hooks = observability.NewCLIHooks(0, a.Collector, observability.NewTraceWriterTo(a.stderr))

	a.Registry = prometheus.NewRegistry()
	metrics, err := observability.NewPromHooks(a.Registry)
	if err != nil {
		return nil, err
	}
	a.Metrics = metrics

	if a.Tracing == nil {
		tp, shutdown, err := observability.NewTracerProvider(context.Background(), "reqstate")
		if err != nil {
			a.Logger.Warn("tracing disabled", "error", err)
		} else {
			a.Tracing = observability.NewTraceHooks(tp)
			a.shutdown = shutdown
		}
	}

	if a.Store == nil {
		store, err := a.openStore()
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	a.Output = output.New(output.Options{Format: a.configFormat(), Writer: a.Output.Out()})
	return a, nil
}

func (a *App) openStore() (*mockapi.Store, error) {
	cfg := a.Config
	opts := []mockapi.Option{
		mockapi.WithFailureRate(cfg.FailureRate),
		mockapi.WithLogger(a.Logger.With("component", "store")),
	}
	if d, ok := cfg.LatencyDuration(); ok {
		opts = append(opts, mockapi.WithUniformLatency(d))
	}
	if cfg.InMemory() {
		return mockapi.NewStore(opts...), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DataFile), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return mockapi.Open(cfg.DataFile, opts...)
}

func (a *App) configFormat() output.Format {
	format, err := output.ParseFormat(a.Config.Format)
	if err != nil {
		a.Logger.Warn("ignoring unknown format in config", "format", a.Config.Format)
	}
	return format
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := a.configFormat()
	switch {
	case a.Flags.IDsOnly:
		format = output.FormatIDs
	case a.Flags.Count:
		format = output.FormatCount
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		// Force ANSI styled output (even when piped)
		format = output.FormatStyled
	case a.Flags.MD:
		// Literal Markdown syntax (portable, pipeable to glow/bat)
		format = output.FormatMarkdown
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.Output.Out(),
		JQ:     a.Flags.JQ,
	})

	// Verbosity from flags, config and REQSTATE_DEBUG; the highest wins.
	verboseLevel := a.Flags.Verbose
	if a.Config.Verbose != nil && *a.Config.Verbose > verboseLevel {
		verboseLevel = *a.Config.Verbose
	}
	if debugEnv := os.Getenv("REQSTATE_DEBUG"); debugEnv != "" {
		if level, err := strconv.Atoi(debugEnv); err == nil {
			verboseLevel = max(verboseLevel, level)
		} else if debugEnv == "true" {
			verboseLevel = 2
		}
	}
	a.Hooks.SetLevel(verboseLevel)

	if verboseLevel > 0 {
		a.logLevel.Set(slog.LevelDebug)
	}

	if !a.Flags.Stats && a.Config.Stats != nil {
		a.Flags.Stats = *a.Config.Stats
	}
}

// RequestHooks fans request events out to the CLI trace, Prometheus
// metrics and tracing spans.
func (a *App) RequestHooks() request.Hooks {
	hooks := request.MultiHooks{a.Hooks, a.Metrics}
	if a.Tracing != nil {
		hooks = append(hooks, a.Tracing)
	}
	return hooks
}

// RequestOptions returns the container options every command uses.
func (a *App) RequestOptions(label string) []request.Option {
	return []request.Option{
		request.WithHooks(a.RequestHooks()),
		request.WithPolicy(a.Config.Policy()),
		request.WithTimeout(a.Config.TimeoutDuration()),
		request.WithLabel(label),
	}
}

// NewQueryClient creates a query client owned by ctx whose queries use the
// app's hooks, failure policy, timeout and freshness TTL.
func (a *App) NewQueryClient(ctx context.Context, name string) *query.Client {
	return query.NewClient(name, ctx,
		query.WithDefaultConfig(query.Config{FreshTTL: a.Config.FreshTTLDuration()}),
		query.WithQueryOptions(query.WithRequestOptions(
			request.WithHooks(a.RequestHooks()),
			request.WithPolicy(a.Config.Policy()),
			request.WithTimeout(a.Config.TimeoutDuration()),
		)),
	)
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Machine-consumable modes get no stats footer.
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		if parts := a.Collector.Summary().FormatParts(); len(parts) > 0 {
			fmt.Fprintf(a.stderr, "\nStats: %s\n", strings.Join(parts, " | "))
		}
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// IsInteractive returns true if the terminal supports interactive TUI.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// ShowProgress reports whether commands should draw a spinner while a
// request is in flight: only for styled output on an interactive terminal.
func (a *App) ShowProgress() bool {
	return a.IsInteractive() && a.Output.EffectiveFormat() == output.FormatStyled
}

// Close flushes spans and writes the metrics file requested with
// --metrics-out.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}
	if path := a.Flags.MetricsOut; path != "" {
		if err := a.writeMetrics(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) writeMetrics(path string) error {
	if path == "-" {
		return observability.WriteText(a.stderr, a.Registry)
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is a user-supplied flag
	if err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := observability.WriteText(f, a.Registry); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
