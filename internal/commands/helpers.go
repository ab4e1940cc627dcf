// Package commands implements the reqstate subcommands.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/request"
	"github.com/frontend-bootcamp/reqstate/internal/tui"
)

// runRequest runs op in a container owned by the command's context and
// returns its data, or the failure as a structured error. Styled output on
// a terminal shows a spinner until the request settles.
func runRequest[T any](cmd *cobra.Command, label string, op request.Op[T]) (T, error) {
	app := appctx.FromContext(cmd.Context())
	c := request.New[T](cmd.Context(), app.RequestOptions(label)...)
	defer c.Close()

	if !app.ShowProgress() {
		return settled(c.RunSync(op))
	}

	c.Run(op)
	state, err := tui.Await(c, "Loading "+label+"…")
	if err != nil {
		var zero T
		return zero, output.ErrCancelled(err)
	}
	return settled(state)
}

type outcome[T any] struct {
	data T
	err  error
}

// settled maps a final state onto data or an error. A request that never
// settled was cancelled.
func settled[T any](s request.State[T]) (T, error) {
	cancelled := func() outcome[T] {
		return outcome[T]{err: output.ErrCancelled(context.Canceled)}
	}
	o := request.Match(s, request.Cases[T, outcome[T]]{
		Idle:    cancelled,
		Loading: func(T, bool) outcome[T] { return cancelled() },
		Succeeded: func(data T) outcome[T] {
			return outcome[T]{data: data}
		},
		Failed: func(err error, _ T, _ bool) outcome[T] {
			return outcome[T]{err: output.FromDomain(err)}
		},
	})
	return o.data, o.err
}

// parseID parses a positive integer ID argument.
func parseID(arg, resource string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || id < 1 {
		return 0, output.ErrUsageHint(
			fmt.Sprintf("Invalid %s ID: %s", resource, arg),
			"IDs are positive integers",
		)
	}
	return id, nil
}

// idString formats an ID for error messages.
func idString(id int) string {
	return strconv.Itoa(id)
}
