// Package vault stores secrets in the operating system keychain (macOS
// Keychain, Windows Credential Manager, libsecret on Linux).
package vault

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "OpsPad"

// Provider abstracts the secret store so an encrypted file vault can slot in
// later without touching callers.
type Provider interface {
	// Set stores a secret under key, replacing any previous value.
	Set(key string, secret []byte) error
	// Get returns the secret for key, or (nil, nil) when absent.
	Get(key string) ([]byte, error)
	// Delete removes the secret; a missing key is a success.
	Delete(key string) error
}

// Keyring is the OS-keychain Provider. Secrets are kept base64-encoded
// because keychain items are strings.
type Keyring struct {
	service string
}

func NewKeyring() *Keyring {
	return &Keyring{service: service}
}

func (k *Keyring) Set(key string, secret []byte) error {
	encoded := base64.StdEncoding.EncodeToString(secret)
	if err := keyring.Set(k.service, key, encoded); err != nil {
		return fmt.Errorf("vault backend: %w", err)
	}
	return nil
}

func (k *Keyring) Get(key string) ([]byte, error) {
	encoded, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault backend: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault entry %q is corrupt: %w", key, err)
	}
	return raw, nil
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("vault backend: %w", err)
	}
	return nil
}
