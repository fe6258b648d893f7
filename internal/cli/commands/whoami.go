package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ragdesk-dev/ragdesk/internal/cli/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), app)
		},
	}
}

func runWhoami(ctx context.Context, app *App) error {
	if app.Session.RestoreSession(ctx) != session.Authenticated {
		fmt.Fprintln(app.Out, "Not logged in.")
		fmt.Fprintln(app.Out, "\nSign in with: ragdesk login")
		return nil
	}

	user := app.Session.User()

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", user.DisplayName())
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	fmt.Fprintf(w, "Username:\t%s\n", user.Username)
	fmt.Fprintf(w, "Verified:\t%s\n", yesNo(user.IsVerified))
	fmt.Fprintf(w, "Two-factor:\t%s\n", yesNo(user.TOTPEnabled))
	if !user.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Member since:\t%s\n", user.CreatedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Server:\t%s\n", app.Client.BaseURL())

	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
