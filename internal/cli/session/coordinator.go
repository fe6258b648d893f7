package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ragdesk-dev/ragdesk/internal/cli/auth"
	"github.com/ragdesk-dev/ragdesk/internal/cli/client"
	"github.com/ragdesk-dev/ragdesk/internal/cli/identity"
)

const teardownTimeout = 10 * time.Second

// State is the derived session state
type State int

const (
	Unauthenticated State = iota
	Restoring
	Authenticated
)

func (s State) String() string {
	switch s {
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// API is the subset of the API client the coordinator drives
type API interface {
	Login(ctx context.Context, req client.LoginRequest) (*auth.Credentials, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.User, error)
	GoogleLogin(ctx context.Context, idToken string) (*auth.Credentials, error)
	CurrentUser(ctx context.Context) (*client.User, error)
}

// Listener is notified after every session transition. The user is a copy
// and nil unless the state is Authenticated.
type Listener func(state State, user *client.User)

// Coordinator orchestrates the session lifecycle
type Coordinator struct {
	api    API
	tokens auth.TokenStore
	idp    identity.Provider
	logger zerolog.Logger

	restoreOnce sync.Once
	teardowns   sync.WaitGroup

	mu        sync.RWMutex
	state     State
	user      *client.User
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// New creates a coordinator. idp may be nil when Google sign-in is not configured.
func New(api API, tokens auth.TokenStore, idp identity.Provider, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		api:       api,
		tokens:    tokens,
		idp:       idp,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// State returns the current session state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns a copy of the signed-in user, or nil
func (c *Coordinator) User() *client.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.Clone()
}

// Subscribe registers a listener and returns a function removing it
func (c *Coordinator) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) setState(state State, user *client.User) {
	c.mu.Lock()
	c.state = state
	c.user = user.Clone()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state, user.Clone())
	}
}

// RestoreSession resumes a stored session at startup. It runs once per
// coordinator; later calls return the current state. A failed restore is not
// an error: the session silently ends up unauthenticated.
func (c *Coordinator) RestoreSession(ctx context.Context) State {
	c.restoreOnce.Do(func() {
		if !c.tokens.IsAuthenticated() {
			c.setState(Unauthenticated, nil)
			return
		}

		c.setState(Restoring, nil)
		if _, err := c.fetchProfile(ctx); err != nil {
			c.logger.Debug().Err(err).Msg("Stored session could not be restored")
		}
	})

	return c.State()
}

// Login exchanges email and password for credentials, stores them and loads
// the profile. A rejected exchange leaves previously stored tokens untouched.
func (c *Coordinator) Login(ctx context.Context, email, password string) (*client.User, error) {
	creds, err := c.api.Login(ctx, client.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	if err := c.tokens.SetTokens(*creds); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	return c.fetchProfile(ctx)
}

// Register creates the account, then logs in with the same email and password
func (c *Coordinator) Register(ctx context.Context, req client.RegisterRequest) (*client.User, error) {
	if _, err := c.api.Register(ctx, req); err != nil {
		return nil, err
	}

	c.logger.Info().Str("email", req.Email).Msg("Account created")

	return c.Login(ctx, req.Email, req.Password)
}

// LoginWithGoogle signs in with Google and exchanges the ID token for
// credentials. Once Google has issued a token, any later failure signs the
// Google session out before the error is returned.
func (c *Coordinator) LoginWithGoogle(ctx context.Context) (*client.User, error) {
	if c.idp == nil {
		return nil, ErrFederatedUnavailable
	}

	idToken, err := c.idp.IDToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("google sign-in: %w", err)
	}

	creds, err := c.api.GoogleLogin(ctx, idToken)
	if err != nil {
		return nil, c.federatedFailure(ctx, err)
	}

	if err := c.tokens.SetTokens(*creds); err != nil {
		return nil, c.federatedFailure(ctx, fmt.Errorf("failed to save credentials: %w", err))
	}

	user, err := c.fetchProfile(ctx)
	if err != nil {
		return nil, c.federatedFailure(ctx, err)
	}

	return user, nil
}

func (c *Coordinator) federatedFailure(ctx context.Context, cause error) error {
	signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := c.idp.SignOut(signOutCtx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to sign out of Google after failed sign-in")
	}

	return &FederatedAuthError{Err: cause}
}

// Logout ends the session. Tokens and user are always cleared; the Google
// session is signed out in the background and failures are only logged.
// The returned error reports a token store that could not be cleared.
func (c *Coordinator) Logout(ctx context.Context) error {
	err := c.endSession()

	if c.idp == nil {
		return err
	}

	// Once Close has begun waiting, sign-outs run inline
	c.mu.Lock()
	closed := c.closed
	if !closed {
		c.teardowns.Add(1)
	}
	c.mu.Unlock()

	if closed {
		c.signOut(ctx)
		return err
	}

	go func() {
		defer c.teardowns.Done()
		c.signOut(ctx)
	}()

	return err
}

func (c *Coordinator) signOut(ctx context.Context) {
	signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := c.idp.SignOut(signOutCtx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to sign out of Google")
	}
}

// RefreshUser reloads the profile. On failure the session ends, without
// touching the Google session.
func (c *Coordinator) RefreshUser(ctx context.Context) error {
	_, err := c.fetchProfile(ctx)
	return err
}

// Close waits for background sign-outs started by Logout. A Logout that
// runs after Close signs out before returning.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.teardowns.Wait()
}

// fetchProfile loads the user for the stored tokens. Any failure ends the session.
func (c *Coordinator) fetchProfile(ctx context.Context) (*client.User, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		if clearErr := c.endSession(); clearErr != nil {
			c.logger.Error().Err(clearErr).Msg("Failed to clear credentials")
		}
		return nil, err
	}

	c.setState(Authenticated, user)
	return user.Clone(), nil
}

func (c *Coordinator) endSession() error {
	err := c.tokens.ClearTokens()
	c.setState(Unauthenticated, nil)
	return err
}
