package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ragdesk-dev/ragdesk/internal/cli/auth"
)

// Login exchanges email and password for a credentials pair
func (c *Client) Login(ctx context.Context, req LoginRequest) (*auth.Credentials, error) {
	var creds auth.Credentials
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GoogleLogin exchanges a Google ID token for a credentials pair
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*auth.Credentials, error) {
	var creds auth.Credentials
	if err := c.do(ctx, http.MethodPost, "/auth/google", GoogleLoginRequest{IDToken: idToken}, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// CurrentUser returns the profile of the user owning the stored access token
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DetailedHealth fetches /health/detailed. On a non-2xx response the error is
// an *Error of the matching kind and the returned payload is the parsed body,
// or nil when the body could not be parsed.
func (c *Client) DetailedHealth(ctx context.Context) (*HealthResponse, error) {
	status, body, err := c.send(ctx, http.MethodGet, "/health/detailed", nil)
	if err != nil {
		return nil, err
	}

	var health *HealthResponse
	var parsed HealthResponse
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed.Status != "" {
		health = &parsed
	}

	if status < 200 || status >= 300 {
		return health, statusError(status, body)
	}
	if health == nil {
		return nil, &Error{Kind: KindServer, StatusCode: status, Message: genericErrorMessage}
	}
	return health, nil
}
