// Package identity adapts external identity providers to the narrow capability
// the session layer needs: obtain an ID token interactively, and sign out.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrNoIDToken is returned when the provider's token response lacks an id_token.
	ErrNoIDToken = errors.New("identity provider returned no id_token")
	// ErrStateMismatch is returned when the OAuth callback carries an unexpected state.
	ErrStateMismatch = errors.New("oauth callback state mismatch")
	// ErrConsentDenied is returned when the user cancels or denies consent.
	ErrConsentDenied = errors.New("sign-in was cancelled or denied")
)

// Provider is an interactive federated identity provider
type Provider interface {
	// IDToken runs the interactive sign-in and returns the provider's ID token.
	IDToken(ctx context.Context) (string, error)
	// SignOut ends the provider session established by IDToken.
	SignOut(ctx context.Context) error
}
