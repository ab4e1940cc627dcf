package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/query"
	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// NewTodosCmd creates the todos command.
func NewTodosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todos",
		Short: "List and toggle todos",
		Long:  "List todos and toggle their completion with an optimistic update.",
		Args:  cobra.NoArgs,
		RunE:  runTodosList,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List todos",
			Args:  cobra.NoArgs,
			RunE:  runTodosList,
		},
		newTodosToggleCmd(),
	)
	return cmd
}

func runTodosList(cmd *cobra.Command, _ []string) error {
	app := appctx.FromContext(cmd.Context())

	todos, err := runRequest(cmd, "todos", app.Store.ListTodos)
	if err != nil {
		return err
	}

	return app.OK(todos,
		output.WithSummary(fmt.Sprintf("%d todos, %d completed", len(todos), countCompleted(todos))),
		output.WithBreadcrumbs(
			output.Breadcrumb{Action: "toggle", Cmd: "reqstate todos toggle <id>", Description: "Toggle completion"},
		),
	)
}

// ToggleResult reports an optimistic toggle.
type ToggleResult struct {
	Todo    mockapi.Todo `json:"todo"`
	Pending int          `json:"pending"`
}

func newTodosToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a todo's completion",
		Long: `Toggle a todo's completion.

The change is shown at once and sent to the store; if the store rejects it
(see --failure-rate) the change is rolled back and the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			id, err := parseID(args[0], "todo")
			if err != nil {
				return err
			}

			client := app.NewQueryClient(cmd.Context(), "todos")
			defer client.Teardown()

			todos := query.DefineOptimistic(client, "todos", app.Store.ListTodos)
			if err := todos.Refresh(cmd.Context()); err != nil {
				return output.FromDomain(err)
			}

			current, _ := request.DataOf(todos.State())
			before, ok := findTodo(current, id)
			if !ok {
				return output.ErrNotFound("todo", idString(id))
			}

			m := toggleTodo{store: app.Store, id: id, want: !before.Completed}
			if err := todos.Apply(cmd.Context(), m); err != nil {
				app.Logger.Debug("toggle rolled back", "id", id, "error", err)
				e := output.FromDomain(err)
				if e.Hint == "" {
					e.Hint = "The change was rolled back"
				}
				return e
			}

			data, _ := request.DataOf(todos.State())
			after, _ := findTodo(data, id)
			return app.OK(ToggleResult{Todo: after, Pending: todos.Pending()},
				output.WithSummary(fmt.Sprintf("Todo #%d %s", id, completionWord(after.Completed))),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "undo", Cmd: fmt.Sprintf("reqstate todos toggle %d", id), Description: "Toggle back"},
				),
			)
		},
	}
}

// toggleTodo flips one todo locally and in the store.
type toggleTodo struct {
	store *mockapi.Store
	id    int
	want  bool
}

func (m toggleTodo) ApplyLocally(current []mockapi.Todo) []mockapi.Todo {
	next := slices.Clone(current)
	for i := range next {
		if next[i].ID == m.id {
			next[i].Completed = m.want
		}
	}
	return next
}

func (m toggleTodo) ApplyRemotely(ctx context.Context) error {
	_, err := m.store.ToggleTodo(ctx, m.id)
	return err
}

func (m toggleTodo) IsReflectedIn(remote []mockapi.Todo) bool {
	t, ok := findTodo(remote, m.id)
	return !ok || t.Completed == m.want
}

func findTodo(todos []mockapi.Todo, id int) (mockapi.Todo, bool) {
	i := slices.IndexFunc(todos, func(t mockapi.Todo) bool { return t.ID == id })
	if i < 0 {
		return mockapi.Todo{}, false
	}
	return todos[i], true
}

func completionWord(done bool) string {
	if done {
		return "completed"
	}
	return "reopened"
}
