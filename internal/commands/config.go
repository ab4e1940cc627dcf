package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/config"
	"github.com/frontend-bootcamp/reqstate/internal/output"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show the effective reqstate configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env (REQSTATE_*) > local > global > defaults

Config locations:
  - Global: ~/.config/reqstate/config.yaml (or config.json)
  - Local:  .reqstate/config.yaml (or config.json)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd)
		},
	})
	return cmd
}

// ConfigValue is one configuration key with its origin.
type ConfigValue struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	cfg := app.Config

	keys := []struct {
		key     string
		value   string
		include bool
	}{
		{"data_file", cfg.DataFile, true},
		{"latency", cfg.Latency, cfg.Latency != ""},
		{"failure_rate", strconv.FormatFloat(cfg.FailureRate, 'g', -1, 64), true},
		{"timeout", cfg.Timeout, cfg.Timeout != ""},
		{"failure_policy", cfg.FailurePolicy, true},
		{"fresh_ttl", cfg.FreshTTL, true},
		{"format", cfg.Format, cfg.Format != ""},
		{"stats", fmt.Sprintf("%t", cfg.Stats != nil && *cfg.Stats), cfg.Stats != nil},
		{"verbose", fmt.Sprintf("%d", derefInt(cfg.Verbose)), cfg.Verbose != nil},
	}

	data := make(map[string]ConfigValue)
	for _, k := range keys {
		if !k.include {
			continue
		}
		source := cfg.Sources[k.key]
		if source == "" {
			source = string(config.SourceDefault)
		}
		data[k.key] = ConfigValue{Value: k.value, Source: source}
	}

	return app.OK(data,
		output.WithSummary("Effective configuration"),
		output.WithMeta("global_dir", config.GlobalConfigDir()),
		output.WithBreadcrumbs(
			output.Breadcrumb{Action: "override", Cmd: "REQSTATE_FAILURE_RATE=0.5 reqstate todos toggle 1", Description: "Override a value for one run"},
		),
	)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
