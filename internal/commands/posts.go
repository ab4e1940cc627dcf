package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/query"
	"github.com/frontend-bootcamp/reqstate/internal/tui"
)

// NewPostsCmd creates the posts command.
func NewPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Read paginated posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPostsList(cmd, 1)
		},
	}

	cmd.AddCommand(
		newPostsListCmd(),
		newPostsShowCmd(),
	)
	return cmd
}

func newPostsListCmd() *cobra.Command {
	var (
		page int
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of posts",
		Long:  "List one page of posts. With --all every page is loaded in turn and the posts are listed together.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				return runPostsListAll(cmd)
			}
			return runPostsList(cmd, page)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().BoolVar(&all, "all", false, "Load every page")
	cmd.MarkFlagsMutuallyExclusive("page", "all")
	return cmd
}

// postPages returns the accumulating posts query.
func postPages(app *appctx.App, client *query.Client) *query.Infinite[mockapi.PostsPage] {
	return query.DefineInfinite(client, "posts", 1, app.Store.ListPosts, func(p mockapi.PostsPage) (int, bool) {
		return p.NextPage, p.HasNext()
	})
}

func runPostsListAll(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())

	client := app.NewQueryClient(cmd.Context(), "posts")
	defer client.Teardown()

	pages := postPages(app, client)
	for pages.HasNext() {
		if pages.Container().Closed() {
			return output.ErrCancelled(context.Canceled)
		}
		if _, err := settled(pages.FetchNextSync()); err != nil {
			return err
		}
	}

	loaded := pages.Pages()
	var posts []mockapi.Post
	for _, p := range loaded {
		posts = append(posts, p.Posts...)
	}

	return app.OK(posts,
		output.WithSummary(fmt.Sprintf("%d posts across %d pages", len(posts), len(loaded))),
		output.WithMeta("pages", len(loaded)),
		output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "show",
			Cmd:         "reqstate posts show <id>",
			Description: "Show a post",
		}),
	)
}

func runPostsList(cmd *cobra.Command, page int) error {
	app := appctx.FromContext(cmd.Context())

	if page < 1 {
		return output.ErrUsage("--page must be 1 or greater")
	}

	result, err := runRequest(cmd, fmt.Sprintf("posts page %d", page), func(ctx context.Context) (mockapi.PostsPage, error) {
		return app.Store.ListPosts(ctx, page)
	})
	if err != nil {
		return err
	}

	var crumbs []output.Breadcrumb
	if result.HasNext() {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "next",
			Cmd:         fmt.Sprintf("reqstate posts list --page %d", result.NextPage),
			Description: "Next page",
		})
	}
	if page > 1 {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "previous",
			Cmd:         fmt.Sprintf("reqstate posts list --page %d", page-1),
			Description: "Previous page",
		})
	}

	return app.OK(result.Posts,
		output.WithSummary(fmt.Sprintf("Page %d of %d", result.Page, result.TotalPages)),
		output.WithMeta("page", result.Page),
		output.WithMeta("total_pages", result.TotalPages),
		output.WithBreadcrumbs(crumbs...),
	)
}

func newPostsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a post",
		Long:  "Show a post. Styled output renders the body as Markdown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			id, err := parseID(args[0], "post")
			if err != nil {
				return err
			}

			post, err := runRequest(cmd, "post", func(ctx context.Context) (mockapi.Post, error) {
				return app.Store.GetPost(ctx, id)
			})
			if err != nil {
				return err
			}

			if app.Output.EffectiveFormat() == output.FormatStyled {
				return writePost(app.Output.Out(), post)
			}
			return app.OK(post, output.WithSummary(post.Title))
		},
	}
}

func writePost(w io.Writer, post mockapi.Post) error {
	body, err := tui.RenderMarkdown(fmt.Sprintf("# %s\n\n%s", post.Title, post.Body), 80)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, body)
	return err
}
