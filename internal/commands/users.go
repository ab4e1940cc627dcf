package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/tui"
)

// NewUsersCmd creates the users command.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
		Long:  "List, show, create, and delete users in the mock store.",
		Args:  cobra.NoArgs,
		RunE:  runUsersList,
	}

	cmd.AddCommand(
		newUsersListCmd(),
		newUsersShowCmd(),
		newUsersCreateCmd(),
		newUsersDeleteCmd(),
	)
	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE:  runUsersList,
	}
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	app := appctx.FromContext(cmd.Context())

	users, err := runRequest(cmd, "users", app.Store.ListUsers)
	if err != nil {
		return err
	}

	return app.OK(users,
		output.WithSummary(fmt.Sprintf("%d users", len(users))),
		output.WithBreadcrumbs(
			output.Breadcrumb{Action: "show", Cmd: "reqstate users show <id>", Description: "Show a user"},
			output.Breadcrumb{Action: "create", Cmd: "reqstate users create --name <name> --email <email>", Description: "Add a user"},
		),
	)
}

func newUsersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}

			user, err := runRequest(cmd, "user", func(ctx context.Context) (mockapi.User, error) {
				return app.Store.GetUser(ctx, id)
			})
			if err != nil {
				return err
			}

			return app.OK(user,
				output.WithSummary(user.Name),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "delete", Cmd: fmt.Sprintf("reqstate users delete %d", id), Description: "Delete this user"},
				),
			)
		},
	}
}

func newUsersCreateCmd() *cobra.Command {
	var input mockapi.NewUser

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Long: `Create a user.

Without --name and --email an interactive form is shown when running in a
terminal. The store validates the payload; invalid fields exit with code 3.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appctx.FromContext(cmd.Context())

			if input.Name == "" && input.Email == "" {
				if !app.IsInteractive() {
					return output.ErrUsageHint("--name and --email are required", "Or run in a terminal for an interactive form")
				}
				filled, err := tui.UserForm(input)
				if err != nil {
					return output.ErrCancelled(err)
				}
				input = filled
			}

			user, err := runRequest(cmd, "create user", func(ctx context.Context) (mockapi.User, error) {
				return app.Store.CreateUser(ctx, input)
			})
			if err != nil {
				return err
			}

			return app.OK(user,
				output.WithSummary(fmt.Sprintf("Created user #%d", user.ID)),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "show", Cmd: fmt.Sprintf("reqstate users show %d", user.ID), Description: "View the user"},
				),
			)
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "User name")
	cmd.Flags().StringVar(&input.Email, "email", "", "User email")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}

			if !yes {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Deleting a user needs confirmation", "Pass --yes")
				}
				ok, err := tui.ConfirmDangerous(fmt.Sprintf("Delete user #%d?", id))
				if err != nil {
					return output.ErrCancelled(err)
				}
				if !ok {
					return output.ErrCancelled(context.Canceled)
				}
			}

			if _, err := runRequest(cmd, "delete user", func(ctx context.Context) (struct{}, error) {
				return struct{}{}, app.Store.DeleteUser(ctx, id)
			}); err != nil {
				return err
			}

			return app.OK(map[string]any{"id": id, "deleted": true},
				output.WithSummary(fmt.Sprintf("Deleted user #%d", id)),
			)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
