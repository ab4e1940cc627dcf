// Package cli wires the root command and global flags.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/commands"
	"github.com/frontend-bootcamp/reqstate/internal/config"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "reqstate",
		Short: "Explore async request state against a mock API",
		Long: `reqstate runs requests against a local mock API and shows how each one
moves through idle, loading, succeeded, and failed. Overlapping requests
resolve to the latest one; late results are dropped.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			flags.FailureRateSet = cmd.Flags().Changed("failure-rate")
			cfg, err := config.Load(flags.Overrides())
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			app, err := appctx.NewApp(cfg, appctx.WithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}
	cmd.SetVersionTemplate(version.Full() + "\n")

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	pf.BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	pf.BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	pf.BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	pf.BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	pf.BoolVar(&flags.Count, "count", false, "Output only count")
	pf.StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")

	// Store flags
	pf.StringVar(&flags.DataFile, "data-file", "", `Data file path (":memory:" for a throwaway store)`)
	pf.StringVar(&flags.Latency, "latency", "", "Simulated latency for every store call (e.g. 200ms)")
	pf.Float64Var(&flags.FailureRate, "failure-rate", 0, "Probability (0-1) that a todo toggle fails")
	pf.StringVar(&flags.Timeout, "timeout", "", "Fail requests that take longer than this (e.g. 2s)")
	pf.BoolVar(&flags.ClearOnFailure, "clear-on-failure", false, "Drop previous data when a request fails")

	// Behavior flags
	pf.CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for requests, -vv for drops)")
	pf.BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	pf.StringVar(&flags.MetricsOut, "metrics-out", "", `Write Prometheus metrics to this file on exit ("-" for stderr)`)

	return cmd
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.AddCommand(commands.All()...)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// ExecuteContextC returns the executed command, whose context holds the app.
	executedCmd, err := cmd.ExecuteContextC(ctx)
	var app *appctx.App
	if executedCmd != nil && executedCmd.Context() != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := app.Close(closeCtx); cerr != nil {
			app.Logger.Warn("shutdown", "error", cerr)
		}
		cancel()
	}
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	if errors.Is(ctx.Err(), context.Canceled) {
		err = output.ErrCancelled(err)
	}
	apiErr := output.FromDomain(err)

	// Try to use app.Err() if app is available (for --stats support)
	if app != nil {
		_ = app.Err(apiErr)
		return apiErr.ExitCode()
	}

	// Fallback: output error directly (app not available, e.g., bad config)
	_ = output.New(output.Options{
		Format: fallbackFormat(cmd),
		Writer: stdout,
	}).Err(apiErr)
	return apiErr.ExitCode()
}

// fallbackFormat picks the error format from the raw flags when the app
// could not be built.
func fallbackFormat(cmd *cobra.Command) output.Format {
	pf := cmd.PersistentFlags()
	quiet, _ := pf.GetBool("quiet")
	idsOnly, _ := pf.GetBool("ids-only")
	count, _ := pf.GetBool("count")
	styled, _ := pf.GetBool("styled")
	md, _ := pf.GetBool("md")
	jsonFlag, _ := pf.GetBool("json")

	switch {
	case quiet:
		return output.FormatQuiet
	case idsOnly:
		return output.FormatIDs
	case count:
		return output.FormatCount
	case jsonFlag:
		return output.FormatJSON
	case styled:
		return output.FormatStyled
	case md:
		return output.FormatMarkdown
	}
	return output.FormatAuto
}

var (
	shorthandFlagRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
	argCountRe      = regexp.MustCompile(`accepts (\d+) arg\(s\), received (\d+)`)
)

// transformCobraError turns cobra's parse errors into usage errors with
// consistent wording.
func transformCobraError(err error) error {
	var e *output.Error
	if errors.As(err, &e) {
		return err
	}
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}

	// "unknown flag: --FLAG" → "Unknown option: --FLAG"
	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}

	// "unknown shorthand flag: 'X' in -X" → "Unknown option: -X"
	if matches := shorthandFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
		return output.ErrUsage("Unknown option: " + matches[1])
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(capitalizeFirst(msg), "Run reqstate commands for a list")
	}

	// Transform "invalid argument" errors to usage errors
	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	// "accepts 1 arg(s), received 0" → "ID required"
	if matches := argCountRe.FindStringSubmatch(msg); len(matches) > 2 {
		if matches[2] == "0" {
			return output.ErrUsage("ID required")
		}
		return output.ErrUsage("Too many arguments")
	}

	if strings.Contains(msg, "arg(s)") {
		return output.ErrUsage(msg)
	}

	return err
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
