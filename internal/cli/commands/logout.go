package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), app)
		},
	}
}

func runLogout(ctx context.Context, app *App) error {
	if !app.Tokens.IsAuthenticated() {
		fmt.Fprintln(app.Out, "Not logged in.")
		return nil
	}

	if err := app.Session.Logout(ctx); err != nil {
		return fmt.Errorf("failed to remove stored credentials: %w", err)
	}

	fmt.Fprintln(app.Out, "✓ Logged out")
	return nil
}
