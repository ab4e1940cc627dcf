package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/request"
	"github.com/frontend-bootcamp/reqstate/internal/tui"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:       "watch <users|todos|products|posts>",
		Short:     "Watch a collection in an interactive view",
		ValidArgs: []string{"users", "todos", "products", "posts"},
		Long: `Open a live view of a collection.

The view refetches on r, on every --interval, and whenever the data file is
changed by another reqstate process. Posts can be paged with the arrow keys;
paging quickly only ever shows the last page asked for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if !app.IsInteractive() {
				return output.ErrUsageHint("watch needs an interactive terminal", "Use list commands for scripted output")
			}
			if interval < 0 {
				return output.ErrUsage("--interval must be 0 or greater")
			}

			store := app.Store
			switch args[0] {
			case "users":
				return runWatch(cmd, interval, "Users", unpaged(store.ListUsers), renderLines(func(u mockapi.User) string {
					return fmt.Sprintf("#%-3d %-20s %s", u.ID, u.Name, u.Email)
				}), nil)
			case "todos":
				return runWatch(cmd, interval, "Todos", unpaged(store.ListTodos), renderLines(func(t mockapi.Todo) string {
					box := "[ ]"
					if t.Completed {
						box = "[x]"
					}
					return fmt.Sprintf("#%-3d %s %s", t.ID, box, t.Title)
				}), nil)
			case "products":
				return runWatch(cmd, interval, "Products", unpaged(store.ListProducts), renderLines(func(p mockapi.Product) string {
					return fmt.Sprintf("#%-3d %-24s %10.2f  %s", p.ID, p.Name, p.Price, p.Category)
				}), nil)
			case "posts":
				load := func(page int) request.Op[mockapi.PostsPage] {
					return func(ctx context.Context) (mockapi.PostsPage, error) {
						return store.ListPosts(ctx, page)
					}
				}
				render := func(p mockapi.PostsPage, width int) string {
					return renderLines(func(post mockapi.Post) string {
						return fmt.Sprintf("#%-3d %s", post.ID, post.Title)
					})(p.Posts, width)
				}
				return runWatch(cmd, interval, "Posts", load, render, func(p mockapi.PostsPage) int { return p.TotalPages })
			default:
				return output.ErrUsageHint("Unknown collection: "+args[0], "Use one of: users, todos, products, posts")
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Refetch interval (0 = only on change or r)")
	return cmd
}

// runWatch runs a RequestView until the user quits.
func runWatch[T any](cmd *cobra.Command, interval time.Duration, title string, load func(int) request.Op[T], render func(T, int) string, pages func(T) int) error {
	app := appctx.FromContext(cmd.Context())

	c := request.New[T](cmd.Context(), app.RequestOptions(strings.ToLower(title))...)
	defer c.Close()

	view, err := tui.NewRequestView(tui.ViewConfig[T]{
		Title:     title,
		Container: c,
		Load:      load,
		Render:    render,
		Pages:     pages,
		Poll:      interval,
		Watch:     app.Store.Path(),
	})
	if err != nil {
		return fmt.Errorf("start view: %w", err)
	}
	defer func() { _ = view.Close() }()

	p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return output.FromDomain(err)
	}
	return nil
}

// unpaged adapts a list call to the view's page loader.
func unpaged[T any](list func(context.Context) (T, error)) func(int) request.Op[T] {
	return func(int) request.Op[T] { return list }
}

// renderLines draws one line per item, cut to the view width.
func renderLines[E any](line func(E) string) func([]E, int) string {
	return func(items []E, width int) string {
		if len(items) == 0 {
			return "(empty)"
		}
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = ansi.Truncate(line(item), width, "…")
		}
		return strings.Join(lines, "\n")
	}
}
