package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by a Backend when nothing is stored.
	ErrNotFound = errors.New("credentials not found")
	// ErrNotAuthenticated is returned by Load when no credentials pair is stored.
	ErrNotAuthenticated = errors.New("not authenticated. Please run 'ragdesk login' first")
	// ErrIncompletePair rejects a pair that is missing one of its tokens.
	ErrIncompletePair = errors.New("credentials pair requires both an access and a refresh token")
)

// Credentials is the access/refresh token pair issued by the backend
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenStore defines the token persistence operations used by the session layer.
// Implementations must store and clear the pair atomically.
type TokenStore interface {
	SetTokens(creds Credentials) error
	Load() (Credentials, error)
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	IsAuthenticated() bool
	ClearTokens() error
}

// Store implements TokenStore on top of a Backend. The pair is serialized into a
// single blob so a write or delete replaces both tokens at once.
type Store struct {
	mu      sync.RWMutex
	backend Backend
}

var _ TokenStore = (*Store)(nil)

// NewStore creates a token store persisting into backend
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// SetTokens persists the credentials pair
func (s *Store) SetTokens(creds Credentials) error {
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return ErrIncompletePair
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(data); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Load returns the stored pair, or ErrNotAuthenticated if there is none
func (s *Store) Load() (Credentials, error) {
	s.mu.RLock()
	data, err := s.backend.Get()
	s.mu.RUnlock()

	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credentials{}, ErrNotAuthenticated
		}
		return Credentials{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse stored credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return Credentials{}, ErrNotAuthenticated
	}

	return creds, nil
}

// AccessToken returns the stored access token
func (s *Store) AccessToken() (string, bool) {
	creds, err := s.Load()
	if err != nil {
		return "", false
	}
	return creds.AccessToken, true
}

// RefreshToken returns the stored refresh token
func (s *Store) RefreshToken() (string, bool) {
	creds, err := s.Load()
	if err != nil || creds.RefreshToken == "" {
		return "", false
	}
	return creds.RefreshToken, true
}

// IsAuthenticated reports whether an access token is present. It does not
// check expiry or signature.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

// ClearTokens removes the stored pair. Clearing an empty store is not an error.
func (s *Store) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
