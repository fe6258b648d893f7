package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragdesk-dev/ragdesk/internal/cli/commands"
	"github.com/ragdesk-dev/ragdesk/internal/cli/config"
	"github.com/ragdesk-dev/ragdesk/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree. opts are passed to App.Init.
func NewRootCmd(app *commands.App, opts ...commands.AppOption) *cobra.Command {
	var apiURL, tokenBackend string

	rootCmd := &cobra.Command{
		Use:   "ragdesk",
		Short: "RAGdesk - chat with your documents",
		Long: `RAGdesk CLI - Sign in to a RAGdesk server and check that it is ready.

Credentials are kept in the OS keychain, scoped to the API URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version works without configuration
			if cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			if tokenBackend != "" {
				cfg.TokenBackend = tokenBackend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Init(cfg.Logging.Level, cfg.Logging.Format)

			return app.Init(cfg, logger.GetLogger(), opts...)
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides NEXT_PUBLIC_API_URL)")
	rootCmd.PersistentFlags().StringVar(&tokenBackend, "token-backend", "", "Credential storage: keyring, file or memory")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragdesk version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(app))
	rootCmd.AddCommand(commands.NewRegisterCmd(app))
	rootCmd.AddCommand(commands.NewLogoutCmd(app))
	rootCmd.AddCommand(commands.NewWhoamiCmd(app))
	rootCmd.AddCommand(commands.NewStatusCmd(app))
	rootCmd.AddCommand(commands.NewConfigCmd(app))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &commands.App{}
	defer app.Close()

	if err := NewRootCmd(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
