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

// NewRegisterCmd creates the register command
func NewRegisterCmd(app *App) *cobra.Command {
	var email, username, fullName, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.RegisterRequest{
				Email:    email,
				Username: username,
				Password: password,
			}
			if fullName != "" {
				req.FullName = &fullName
			}
			return runRegister(cmd.Context(), app, req)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&fullName, "full-name", "", "Full name (optional)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set RAGDESK_PASSWORD, will prompt if not provided)")

	return cmd
}

func runRegister(ctx context.Context, app *App, req client.RegisterRequest) error {
	var err error

	if req.Email == "" {
		if req.Email, err = app.Prompter.Text("Email", prompt.ValidateEmail); err != nil {
			return requiredInput(err, "email", "--email")
		}
	}
	if req.Username == "" {
		if req.Username, err = app.Prompter.Text("Username", prompt.ValidateNotEmpty); err != nil {
			return requiredInput(err, "username", "--username")
		}
	}
	if req.Password == "" {
		req.Password = os.Getenv("RAGDESK_PASSWORD")
	}
	if req.Password == "" {
		if req.Password, err = newPassword(app.Prompter); err != nil {
			return err
		}
	}

	user, err := app.Session.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintln(app.Out, "✓ Account created!")
	printUserSummary(app, user)

	return nil
}

// newPassword prompts for a password twice
func newPassword(p Prompter) (string, error) {
	password, err := p.Password("Password")
	if err != nil {
		return "", requiredInput(err, "password", "--password")
	}

	confirm, err := p.Password("Confirm password")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}

	return password, nil
}

func requiredInput(err error, name, flag string) error {
	if errors.Is(err, prompt.ErrNonInteractive) {
		return fmt.Errorf("%s is required (use %s flag)", name, flag)
	}
	return err
}
