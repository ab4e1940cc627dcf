package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/query"
	"github.com/frontend-bootcamp/reqstate/internal/request"
	"github.com/frontend-bootcamp/reqstate/internal/tui"
)

// NewProductsCmd creates the products command.
func NewProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse and edit products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProductsList(cmd, "")
		},
	}

	cmd.AddCommand(
		newProductsListCmd(),
		newProductsShowCmd(),
		newProductsUpdateCmd(),
	)
	return cmd
}

func newProductsListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProductsList(cmd, category)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only products in this category ("+strings.Join(mockapi.Categories, ", ")+")")
	return cmd
}

func runProductsList(cmd *cobra.Command, category string) error {
	app := appctx.FromContext(cmd.Context())

	if category != "" && !slices.Contains(mockapi.Categories, category) {
		return output.ErrUsageHint("Unknown category: "+category, "Use one of: "+strings.Join(mockapi.Categories, ", "))
	}

	products, err := runRequest(cmd, "products", app.Store.ListProducts)
	if err != nil {
		return err
	}
	if category != "" {
		products = slices.DeleteFunc(products, func(p mockapi.Product) bool { return p.Category != category })
	}

	summary := fmt.Sprintf("%d products", len(products))
	if category != "" {
		summary += " in " + category
	}
	return app.OK(products,
		output.WithSummary(summary),
		output.WithBreadcrumbs(
			output.Breadcrumb{Action: "show", Cmd: "reqstate products show <id>", Description: "Show a product"},
			output.Breadcrumb{Action: "update", Cmd: "reqstate products update <id> --price <price>", Description: "Edit a product"},
		),
	)
}

// productQueries returns the per-product query family.
func productQueries(app *appctx.App, client *query.Client) *query.Keyed[int, mockapi.Product] {
	return query.DefineKeyed(client, "products", app.Store.GetProduct)
}

// fetchProduct loads one product through q and returns it.
func fetchProduct(ctx context.Context, q *query.Query[mockapi.Product]) (mockapi.Product, error) {
	if err := q.Refresh(ctx); err != nil {
		return mockapi.Product{}, output.FromDomain(err)
	}
	p, _ := request.DataOf(q.State())
	return p, nil
}

func newProductsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			id, err := parseID(args[0], "product")
			if err != nil {
				return err
			}

			client := app.NewQueryClient(cmd.Context(), "products")
			defer client.Teardown()

			product, err := fetchProduct(cmd.Context(), productQueries(app, client).Get(id))
			if err != nil {
				return err
			}

			return app.OK(product,
				output.WithSummary(product.Name),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "update", Cmd: fmt.Sprintf("reqstate products update %d", id), Description: "Edit this product"},
				),
			)
		},
	}
}

func newProductsUpdateCmd() *cobra.Command {
	var (
		name     string
		price    float64
		category string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a product",
		Long: `Update a product's name, price, or category.

Only the flags given are changed. Without flags an interactive form is shown
when running in a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			id, err := parseID(args[0], "product")
			if err != nil {
				return err
			}

			var patch mockapi.ProductPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("price") {
				patch.Price = &price
			}
			if cmd.Flags().Changed("category") {
				patch.Category = &category
			}

			client := app.NewQueryClient(cmd.Context(), "products")
			defer client.Teardown()
			product := productQueries(app, client).Get(id)

			if patch == (mockapi.ProductPatch{}) {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Nothing to update", "Pass --name, --price, or --category")
				}
				current, err := fetchProduct(cmd.Context(), product)
				if err != nil {
					return err
				}
				patch, err = tui.ProductForm(current)
				if err != nil {
					return output.ErrCancelled(err)
				}
			}

			if _, err := runRequest(cmd, "update product", func(ctx context.Context) (mockapi.Product, error) {
				return app.Store.UpdateProduct(ctx, id, patch)
			}); err != nil {
				return err
			}

			// Drop anything cached under products/ and read the product back.
			stale := client.Invalidate("products")
			app.Logger.Debug("invalidated queries", "keys", stale)
			updated, err := fetchProduct(cmd.Context(), product)
			if err != nil {
				return err
			}

			return app.OK(updated,
				output.WithSummary(fmt.Sprintf("Updated product #%d", id)),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "show", Cmd: fmt.Sprintf("reqstate products show %d", id), Description: "View the product"},
				),
			)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().Float64Var(&price, "price", 0, "New price")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	return cmd
}
