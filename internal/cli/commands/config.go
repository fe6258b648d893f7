package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/ragdesk-dev/ragdesk/internal/cli/userconfig"
)

// NewConfigCmd creates the config command group
func NewConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change CLI configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(app)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-api-url <url>",
		Short: "Set the API base URL in the user config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetAPIURL(app, args[0])
		},
	})

	return cmd
}

func runConfigShow(app *App) error {
	cfg := app.Config

	configPath, err := userconfig.GetConfigPath()
	if err != nil {
		return err
	}

	google := "disabled"
	if cfg.Google.Enabled() {
		google = "client " + cfg.Google.ClientID
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Config file:\t%s\n", configPath)
	fmt.Fprintf(w, "API URL:\t%s\n", cfg.APIURL)
	fmt.Fprintf(w, "Token backend:\t%s\n", cfg.TokenBackend)
	fmt.Fprintf(w, "Health dependency:\t%s\n", cfg.HealthDependency)
	fmt.Fprintf(w, "Google sign-in:\t%s\n", google)
	fmt.Fprintf(w, "Log level:\t%s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "Log format:\t%s\n", cfg.Logging.Format)

	return w.Flush()
}

func runSetAPIURL(app *App, apiURL string) error {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")

	if err := validator.New().Var(apiURL, "required,url"); err != nil {
		return fmt.Errorf("invalid URL %q", apiURL)
	}
	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", apiURL)
	}

	if err := userconfig.SetAPIURL(apiURL); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(app.Out, "✓ API URL set to %s\n", apiURL)
	if env := os.Getenv("NEXT_PUBLIC_API_URL"); env != "" && env != apiURL {
		fmt.Fprintf(app.Out, "  Note: NEXT_PUBLIC_API_URL=%s overrides this setting\n", env)
	}
	return nil
}
