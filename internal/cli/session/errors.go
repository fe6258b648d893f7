package session

import (
	"errors"
	"fmt"
)

// ErrFederatedUnavailable is returned by LoginWithGoogle when no identity
// provider is configured
var ErrFederatedUnavailable = errors.New("google sign-in is not configured (set GOOGLE_CLIENT_ID)")

// FederatedAuthError reports a failure after a Google session was established.
// The provider session has already been signed out when this is returned.
type FederatedAuthError struct {
	Err error
}

func (e *FederatedAuthError) Error() string {
	return fmt.Sprintf("google sign-in failed: %v", e.Err)
}

func (e *FederatedAuthError) Unwrap() error {
	return e.Err
}
