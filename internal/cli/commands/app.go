package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ragdesk-dev/ragdesk/internal/cli/auth"
	"github.com/ragdesk-dev/ragdesk/internal/cli/client"
	"github.com/ragdesk-dev/ragdesk/internal/cli/config"
	"github.com/ragdesk-dev/ragdesk/internal/cli/identity"
	"github.com/ragdesk-dev/ragdesk/internal/cli/prompt"
	"github.com/ragdesk-dev/ragdesk/internal/cli/session"
)

// Prompter reads interactive input
type Prompter interface {
	Interactive() bool
	Text(label string, check func(string) error) (string, error)
	Password(label string) (string, error)
	Choose(label string, items []string) (int, error)
}

// App holds the components shared by all commands. The root command fills
// it in before any subcommand runs.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Tokens   auth.TokenStore
	Client   *client.Client
	Session  *session.Coordinator
	Prompter Prompter
	Out      io.Writer
}

// AppOption configures an App
type AppOption func(*appOptions)

type appOptions struct {
	tokens   auth.TokenStore
	provider identity.Provider
	prompter Prompter
	out      io.Writer
}

// WithTokenStore replaces the configured token backend
func WithTokenStore(tokens auth.TokenStore) AppOption {
	return func(o *appOptions) {
		o.tokens = tokens
	}
}

// WithIdentityProvider replaces the Google provider built from config
func WithIdentityProvider(p identity.Provider) AppOption {
	return func(o *appOptions) {
		o.provider = p
	}
}

// WithPrompter replaces the terminal prompter
func WithPrompter(p Prompter) AppOption {
	return func(o *appOptions) {
		o.prompter = p
	}
}

// WithOutput sets where command output is written
func WithOutput(w io.Writer) AppOption {
	return func(o *appOptions) {
		o.out = w
	}
}

// Init wires the components for cfg
func (a *App) Init(cfg *config.Config, logger zerolog.Logger, opts ...AppOption) error {
	o := appOptions{
		prompter: prompt.Terminal{},
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tokens := o.tokens
	if tokens == nil {
		backend, err := auth.NewBackend(cfg.TokenBackend, cfg.Dir, cfg.APIURL)
		if err != nil {
			return fmt.Errorf("failed to initialize token storage: %w", err)
		}
		tokens = auth.NewStore(backend)
	}

	provider := o.provider
	if provider == nil && cfg.Google.Enabled() {
		provider = identity.NewGoogleProvider(identity.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
		}, logger.With().Str("component", "identity").Logger())
	}

	apiClient := client.New(cfg.APIURL, tokens, logger.With().Str("component", "client").Logger())

	a.Config = cfg
	a.Logger = logger
	a.Tokens = tokens
	a.Client = apiClient
	a.Session = session.New(apiClient, tokens, provider, logger.With().Str("component", "session").Logger())
	a.Prompter = o.prompter
	a.Out = o.out

	return nil
}

// Close waits for background work started by the session
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
}
