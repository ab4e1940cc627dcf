package commands

import (
	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Collections",
			Commands: []CommandInfo{
				{Name: "users", Category: "collections", Description: "Manage users", Actions: []string{"list", "show", "create", "delete"}},
				{Name: "todos", Category: "collections", Description: "List and toggle todos", Actions: []string{"list", "toggle"}},
				{Name: "products", Category: "collections", Description: "Browse and edit products", Actions: []string{"list", "show", "update"}},
				{Name: "posts", Category: "collections", Description: "Read paginated posts", Actions: []string{"list", "show"}},
			},
		},
		{
			Name: "Request Lifecycle",
			Commands: []CommandInfo{
				{Name: "dashboard", Category: "lifecycle", Description: "Load every collection concurrently"},
				{Name: "race", Category: "lifecycle", Description: "Show that the latest request wins"},
				{Name: "watch", Category: "lifecycle", Description: "Watch a collection in an interactive view"},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "config", Category: "additional", Description: "Show configuration", Actions: []string{"show"}},
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
// Used by tests to verify catalog matches registered commands.
func CatalogCommandNames() []string {
	var names []string
	for _, cat := range commandCategories() {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all commands",
		Long:    "List all available reqstate commands organized by category.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appctx.FromContext(cmd.Context())

			return app.OK(commandCategories(),
				output.WithSummary("All available reqstate commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "help", Cmd: "reqstate --help", Description: "View help"},
				),
			)
		},
	}
}

// All returns every subcommand, in the order they are registered.
func All() []*cobra.Command {
	return []*cobra.Command{
		NewUsersCmd(),
		NewTodosCmd(),
		NewProductsCmd(),
		NewPostsCmd(),
		NewDashboardCmd(),
		NewRaceCmd(),
		NewWatchCmd(),
		NewConfigCmd(),
		NewCommandsCmd(),
	}
}
