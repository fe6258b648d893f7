package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ragdesk-dev/ragdesk/internal/cli/userconfig"
)

// DefaultAPIURL is used when neither the environment nor the config file set one
const DefaultAPIURL = "http://localhost:8000"

// Config holds all configuration for the CLI
type Config struct {
	// API base URL, without trailing slash
	APIURL string `validate:"required,url"`

	// Token storage: keyring, file or memory
	TokenBackend string `validate:"oneof=keyring file memory"`

	// Directory holding config.yaml and file-backed credentials
	Dir string `validate:"required"`

	// Name of the dependency whose health gates AllHealthy
	HealthDependency string `validate:"required"`

	Google GoogleConfig

	Logging LoggingConfig
}

// GoogleConfig holds the OAuth client used for Google sign-in.
// Google sign-in is disabled when ClientID is empty.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether a Google client is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != ""
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal panic"`
	Format string `validate:"oneof=json console"` // json, console
}

// Load loads configuration from .env files, the user config file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	dir, err := userconfig.Dir()
	if err != nil {
		return nil, err
	}

	configPath, err := userconfig.GetConfigPath()
	if err != nil {
		return nil, err
	}

	uc, err := userconfig.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:           firstNonEmpty(os.Getenv("NEXT_PUBLIC_API_URL"), uc.APIURL, DefaultAPIURL),
		TokenBackend:     firstNonEmpty(os.Getenv("RAGDESK_TOKEN_BACKEND"), uc.TokenBackend, "keyring"),
		Dir:              dir,
		HealthDependency: firstNonEmpty(os.Getenv("RAGDESK_HEALTH_DEPENDENCY"), uc.HealthDependency, "milvus"),
		Google: GoogleConfig{
			ClientID:     firstNonEmpty(os.Getenv("GOOGLE_CLIENT_ID"), uc.Google.ClientID),
			ClientSecret: firstNonEmpty(os.Getenv("GOOGLE_CLIENT_SECRET"), uc.Google.ClientSecret),
		},
		// Logging defaults keep stderr quiet for interactive use
		Logging: LoggingConfig{
			Level:  strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), uc.Logging.Level, "warn")),
			Format: strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), uc.Logging.Format, "console")),
		},
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and reports the first offending field
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s=%q fails %q", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
