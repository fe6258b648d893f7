package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	service = "ragdesk-cli"
)

// Backend persists a single opaque credentials blob.
// Get and Delete return ErrNotFound when nothing is stored.
type Backend interface {
	Get() ([]byte, error)
	Set(data []byte) error
	Delete() error
}

// KeyFor returns a storage key unique to the API host, so logging in against
// one deployment never overwrites the session of another.
func KeyFor(apiURL string) string {
	host := apiURL
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.NewReplacer(":", "_", "/", "_").Replace(host)
	return fmt.Sprintf("credentials-%s", host)
}

// KeyringBackend stores the blob in the OS keychain/credential manager
type KeyringBackend struct {
	key string
}

// NewKeyringBackend creates a keyring backend for the given API URL
func NewKeyringBackend(apiURL string) *KeyringBackend {
	return &KeyringBackend{key: KeyFor(apiURL)}
}

func (k *KeyringBackend) Get() ([]byte, error) {
	secret, err := keyring.Get(service, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(secret), nil
}

func (k *KeyringBackend) Set(data []byte) error {
	return keyring.Set(service, k.key, string(data))
}

func (k *KeyringBackend) Delete() error {
	if err := keyring.Delete(service, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// FileBackend stores the blob in a 0600 file. Writes go through a temp file
// and a rename so a crash never leaves a half-written pair behind.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend under dir for the given API URL
func NewFileBackend(dir, apiURL string) *FileBackend {
	return &FileBackend{path: filepath.Join(dir, KeyFor(apiURL)+".json")}
}

// Path returns the file the credentials are written to
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Get() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *FileBackend) Set(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set credentials permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close credentials file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move credentials into place: %w", err)
	}
	return nil
}

func (f *FileBackend) Delete() error {
	if err := os.Remove(f.path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MemoryBackend keeps the blob in process memory
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Get() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryBackend) Set(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return ErrNotFound
	}
	m.data = nil
	return nil
}

// NewBackend selects a backend by name: "keyring", "file" or "memory"
func NewBackend(kind, configDir, apiURL string) (Backend, error) {
	switch kind {
	case "", "keyring":
		return NewKeyringBackend(apiURL), nil
	case "file":
		return NewFileBackend(configDir, apiURL), nil
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown token backend %q, must be one of: keyring, file, memory", kind)
	}
}
