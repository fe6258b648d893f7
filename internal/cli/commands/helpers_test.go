package commands

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ragdesk-dev/ragdesk/internal/cli/auth"
	"github.com/ragdesk-dev/ragdesk/internal/cli/config"
	"github.com/ragdesk-dev/ragdesk/internal/cli/prompt"
	"github.com/ragdesk-dev/ragdesk/internal/fakeapi"
)

// scriptedPrompter answers prompts from fixed lists
type scriptedPrompter struct {
	interactive bool
	texts       []string
	passwords   []string
	choice      int

	labels []string
}

func (p *scriptedPrompter) Interactive() bool {
	return p.interactive
}

func (p *scriptedPrompter) Text(label string, check func(string) error) (string, error) {
	p.labels = append(p.labels, label)
	if !p.interactive {
		return "", prompt.ErrNonInteractive
	}
	if len(p.texts) == 0 {
		return "", errors.New("unexpected prompt: " + label)
	}
	value := p.texts[0]
	p.texts = p.texts[1:]
	if check != nil {
		if err := check(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func (p *scriptedPrompter) Password(label string) (string, error) {
	p.labels = append(p.labels, label)
	if !p.interactive {
		return "", prompt.ErrNonInteractive
	}
	if len(p.passwords) == 0 {
		return "", errors.New("unexpected prompt: " + label)
	}
	value := p.passwords[0]
	p.passwords = p.passwords[1:]
	return value, nil
}

func (p *scriptedPrompter) Choose(label string, items []string) (int, error) {
	p.labels = append(p.labels, label)
	if !p.interactive {
		return 0, prompt.ErrNonInteractive
	}
	return p.choice, nil
}

// stubProvider hands out a fixed Google ID token
type stubProvider struct {
	token    string
	err      error
	signOuts atomic.Int32
}

func (p *stubProvider) IDToken(ctx context.Context) (string, error) {
	return p.token, p.err
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	p.signOuts.Add(1)
	return nil
}

type testEnv struct {
	app    *App
	api    *fakeapi.Server
	out    *bytes.Buffer
	tokens *auth.Store
}

// newTestEnv wires an App to a fresh fake backend with a memory token store
func newTestEnv(t *testing.T, opts ...AppOption) *testEnv {
	t.Helper()

	t.Setenv("RAGDESK_EMAIL", "")
	t.Setenv("RAGDESK_PASSWORD", "")

	api, err := fakeapi.New(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create fake API: %v", err)
	}
	baseURL := api.Start()
	t.Cleanup(api.Close)

	cfg := &config.Config{
		APIURL:           baseURL,
		TokenBackend:     "memory",
		Dir:              t.TempDir(),
		HealthDependency: "milvus",
		Logging:          config.LoggingConfig{Level: "warn", Format: "console"},
	}

	env := &testEnv{
		app:    &App{},
		api:    api,
		out:    &bytes.Buffer{},
		tokens: auth.NewStore(auth.NewMemoryBackend()),
	}

	defaults := []AppOption{
		WithTokenStore(env.tokens),
		WithOutput(env.out),
		WithPrompter(&scriptedPrompter{}),
	}
	if err := env.app.Init(cfg, zerolog.Nop(), append(defaults, opts...)...); err != nil {
		t.Fatalf("failed to init app: %v", err)
	}
	t.Cleanup(env.app.Close)

	return env
}

// addUser registers a password account on the fake backend
func (e *testEnv) addUser(t *testing.T, email, username, password string) {
	t.Helper()
	if _, err := e.api.AddUser(email, username, password); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
}

// signIn stores valid tokens for a new user without going through login
func (e *testEnv) signIn(t *testing.T, email, username string) {
	t.Helper()
	user, err := e.api.AddUser(email, username, "correct-horse")
	if err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	access, refresh, err := e.api.IssueTokens(user.ID)
	if err != nil {
		t.Fatalf("failed to issue tokens: %v", err)
	}
	if err := e.tokens.SetTokens(auth.Credentials{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}); err != nil {
		t.Fatalf("failed to store tokens: %v", err)
	}
}
