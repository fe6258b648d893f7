package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdesk-dev/ragdesk/internal/cli/auth"
	"github.com/ragdesk-dev/ragdesk/internal/cli/commands"
	"github.com/ragdesk-dev/ragdesk/internal/cli/userconfig"
	"github.com/ragdesk-dev/ragdesk/internal/fakeapi"
)

// runCLI executes one command line against a fresh App sharing tokens
func runCLI(t *testing.T, tokens auth.TokenStore, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := &commands.App{}
	defer app.Close()

	cmd := NewRootCmd(app, commands.WithTokenStore(tokens), commands.WithOutput(&out))
	cmd.SetOut(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(userconfig.DirEnv, t.TempDir())
	for _, key := range []string{
		"NEXT_PUBLIC_API_URL", "RAGDESK_TOKEN_BACKEND", "RAGDESK_HEALTH_DEPENDENCY",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "RAGDESK_EMAIL", "RAGDESK_PASSWORD",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func TestRoot_SessionLifecycle(t *testing.T) {
	isolateEnv(t)

	api, err := fakeapi.New(zerolog.Nop())
	require.NoError(t, err)
	baseURL := api.Start()
	t.Cleanup(api.Close)

	_, err = api.AddUser("ada@example.com", "ada", "correct-horse")
	require.NoError(t, err)

	tokens := auth.NewStore(auth.NewMemoryBackend())

	out, err := runCLI(t, tokens, "whoami", "--api-url", baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	out, err = runCLI(t, tokens, "login", "--api-url", baseURL, "--email", "ada@example.com", "--password", "correct-horse")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")

	out, err = runCLI(t, tokens, "whoami", "--api-url", baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")

	out, err = runCLI(t, tokens, "logout", "--api-url", baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.False(t, tokens.IsAuthenticated())
}

func TestRoot_InvalidTokenBackendFlag(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, auth.NewStore(auth.NewMemoryBackend()), "whoami", "--token-backend", "vault")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRoot_Version(t *testing.T) {
	// version must not need a valid configuration
	t.Setenv("NEXT_PUBLIC_API_URL", "not a url")

	out, err := runCLI(t, auth.NewStore(auth.NewMemoryBackend()), "version")
	require.NoError(t, err)
	assert.Equal(t, "ragdesk version dev\n", out)
}
