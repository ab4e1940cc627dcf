package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/query"
)

// Dashboard summarizes every collection. Sections that failed to load are
// zero and listed in Errors.
type Dashboard struct {
	Users          int               `json:"users"`
	Todos          int               `json:"todos"`
	TodosCompleted int               `json:"todos_completed"`
	Products       int               `json:"products"`
	Version        uint64            `json:"version"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// NewDashboardCmd creates the dashboard command.
func NewDashboardCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Load every collection concurrently",
		Long: `Load users, todos, products, and store stats concurrently.

A failed section does not stop the others; the command fails only when
nothing could be loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appctx.FromContext(cmd.Context())

			if concurrency < 0 {
				return output.ErrUsage("--concurrency must be 0 or greater")
			}

			client := app.NewQueryClient(cmd.Context(), "dashboard")
			defer client.Teardown()

			users := query.Define(client, "users", app.Store.ListUsers)
			todos := query.Define(client, "todos", app.Store.ListTodos)
			products := query.Define(client, "products", app.Store.ListProducts)
			stats := query.Define(client, "stats", app.Store.Stats)

			results := query.FetchAll(cmd.Context(), concurrency, users, todos, products, stats)

			var d Dashboard
			for _, r := range results {
				if r.Err == nil {
					continue
				}
				if d.Errors == nil {
					d.Errors = make(map[string]string)
				}
				d.Errors[r.Key] = output.FromDomain(r.Err).Message
			}
			if len(d.Errors) == len(results) {
				return output.FromDomain(query.FirstErr(results))
			}

			if list, ok := users.Snapshot().Data(); ok {
				d.Users = len(list)
			}
			if list, ok := todos.Snapshot().Data(); ok {
				d.Todos = len(list)
				d.TodosCompleted = countCompleted(list)
			}
			if list, ok := products.Snapshot().Data(); ok {
				d.Products = len(list)
			}
			if s, ok := stats.Snapshot().Data(); ok {
				d.Version = s.Version
			}

			summary := "Dashboard"
			if n := len(d.Errors); n > 0 {
				summary = fmt.Sprintf("Dashboard (%d of %d sections failed)", n, len(results))
			}
			app.Logger.Debug("dashboard loaded", "metrics", client.Metrics().Summary())

			return app.OK(d,
				output.WithSummary(summary),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "users", Cmd: "reqstate users", Description: "List users"},
					output.Breadcrumb{Action: "todos", Cmd: "reqstate todos", Description: "List todos"},
					output.Breadcrumb{Action: "products", Cmd: "reqstate products", Description: "List products"},
				),
			)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent requests (0 = unlimited)")
	return cmd
}

func countCompleted(todos []mockapi.Todo) int {
	n := 0
	for _, t := range todos {
		if t.Completed {
			n++
		}
	}
	return n
}
