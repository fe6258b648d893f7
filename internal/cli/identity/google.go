package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleRevokeURL = "https://oauth2.googleapis.com/revoke"
	callbackPath    = "/callback"
)

// GoogleConfig holds the OAuth client settings. The URL fields override
// Google's endpoints and are only set in tests.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
}

// GoogleProvider signs the user in with Google using the authorization code
// flow with PKCE and a loopback redirect, the command-line equivalent of a
// sign-in popup.
type GoogleProvider struct {
	oauth      oauth2.Config
	revokeURL  string
	httpClient *http.Client
	openURL    func(string) error
	logger     zerolog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

var _ Provider = (*GoogleProvider)(nil)

// Option configures a GoogleProvider
type Option func(*GoogleProvider)

// WithOpenURL replaces the function that presents the consent URL to the user
func WithOpenURL(fn func(string) error) Option {
	return func(p *GoogleProvider) {
		p.openURL = fn
	}
}

// WithHTTPClient sets the HTTP client used for token exchange and revocation
func WithHTTPClient(c *http.Client) Option {
	return func(p *GoogleProvider) {
		p.httpClient = c
	}
}

// NewGoogleProvider creates a Google identity provider
func NewGoogleProvider(cfg GoogleConfig, logger zerolog.Logger, opts ...Option) *GoogleProvider {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = googleRevokeURL
	}

	p := &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		revokeURL:  revokeURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		openURL:    OpenBrowser,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type callbackResult struct {
	code string
	err  error
}

// IDToken runs the interactive sign-in and returns Google's ID token
func (p *GoogleProvider) IDToken(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener: %w", err)
	}

	conf := p.oauth
	conf.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)

	state, err := randomState()
	if err != nil {
		ln.Close()
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			p.logger.Warn().Err(err).Msg("OAuth callback server error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	if err := p.openURL(authURL); err != nil {
		return "", fmt.Errorf("failed to open sign-in page: %w", err)
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if res.err != nil {
		return "", res.err
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := conf.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	// Held from here on so a failure below can revoke the grant
	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		p.revokeAfterFailure(ctx)
		return "", ErrNoIDToken
	}

	claims, err := ParseIDToken(raw)
	if err != nil {
		p.revokeAfterFailure(ctx)
		return "", err
	}

	p.logger.Info().Str("email", claims.Email).Msg("Signed in with Google")

	return raw, nil
}

// revokeAfterFailure drops a grant that produced no usable ID token
func (p *GoogleProvider) revokeAfterFailure(ctx context.Context) {
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.SignOut(revokeCtx); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to revoke Google token after failed sign-in")
	}
}

// SignOut revokes the token obtained by the last IDToken call. It is a no-op
// when there is no provider session.
func (p *GoogleProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	tok := p.token
	p.token = nil
	p.mu.Unlock()

	if tok == nil {
		return nil
	}

	secret := tok.RefreshToken
	if secret == "" {
		secret = tok.AccessToken
	}

	form := url.Values{}
	form.Set("token", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke failed: status=%d", resp.StatusCode)
	}
	return nil
}

// SignedIn reports whether a provider session is held
func (p *GoogleProvider) SignedIn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: %s", ErrConsentDenied, q.Get("error"))
		case q.Get("code") == "":
			res.err = fmt.Errorf("%w: no authorization code", ErrConsentDenied)
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Signed in. You can close this window and return to the terminal.")
		}

		// Only the first callback counts
		select {
		case results <- res:
		default:
		}
	})
	return mux
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// OpenBrowser prints the URL and tries to open it in the default browser
func OpenBrowser(target string) error {
	fmt.Fprintf(os.Stderr, "Open this URL in your browser to sign in with Google:\n\n  %s\n\n", target)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}

	// The printed URL is the fallback when no browser can be launched
	if err := cmd.Start(); err == nil {
		go cmd.Wait()
	}
	return nil
}
