package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragdesk-dev/ragdesk/internal/cli/client"
	"github.com/ragdesk-dev/ragdesk/internal/cli/prompt"
)

const (
	methodPassword = "Email and password"
	methodGoogle   = "Google"
)

// NewLoginCmd creates the login command
func NewLoginCmd(app *App) *cobra.Command {
	var email, password string
	var google bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to RAGdesk",
		Long: `Sign in with email and password, or with a Google account (--google).

Credentials are stored in the OS keychain unless token_backend says otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), app, email, password, google)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set RAGDESK_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set RAGDESK_PASSWORD, will prompt if not provided)")
	cmd.Flags().BoolVar(&google, "google", false, "Sign in with Google in the browser")

	return cmd
}

func runLogin(ctx context.Context, app *App, email, password string, google bool) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("RAGDESK_EMAIL")
	}
	if password == "" {
		password = os.Getenv("RAGDESK_PASSWORD")
	}

	// Offer Google when nothing was specified and it is configured
	if !google && email == "" && app.Config.Google.Enabled() && app.Prompter.Interactive() {
		index, err := app.Prompter.Choose("Sign in with", []string{methodPassword, methodGoogle})
		if err != nil {
			return err
		}
		google = index == 1
	}

	var user *client.User
	var err error
	if google {
		fmt.Fprintln(app.Out, "Waiting for Google sign-in in your browser...")
		user, err = app.Session.LoginWithGoogle(ctx)
	} else {
		email, password, err = credentialsFromPrompt(app.Prompter, email, password)
		if err != nil {
			return err
		}

		fmt.Fprintf(app.Out, "Logging in to %s...\n", app.Client.BaseURL())
		user, err = app.Session.Login(ctx, email, password)
	}
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(app.Out, "✓ Login successful!")
	printUserSummary(app, user)

	return nil
}

// credentialsFromPrompt fills in whatever the flags and environment left empty
func credentialsFromPrompt(p Prompter, email, password string) (string, string, error) {
	if email == "" {
		value, err := p.Text("Email", prompt.ValidateEmail)
		if errors.Is(err, prompt.ErrNonInteractive) {
			return "", "", fmt.Errorf("email is required (use --email flag or RAGDESK_EMAIL env var)")
		}
		if err != nil {
			return "", "", err
		}
		email = value
	}

	if password == "" {
		value, err := p.Password("Password")
		if errors.Is(err, prompt.ErrNonInteractive) {
			return "", "", fmt.Errorf("password is required in non-interactive mode (use --password flag or RAGDESK_PASSWORD env var)")
		}
		if err != nil {
			return "", "", err
		}
		password = value
	}

	return email, password, nil
}

func printUserSummary(app *App, user *client.User) {
	fmt.Fprintf(app.Out, "  User: %s (%s)\n", user.DisplayName(), user.Email)
	if !user.IsVerified {
		fmt.Fprintln(app.Out, "  Email not verified yet")
	}
}
