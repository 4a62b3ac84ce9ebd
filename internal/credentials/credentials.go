// Package credentials stores the Fabric API key in the OS credential store
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for OS credential store
	credentialService = "fabric-mcp"
	// Key for the Fabric REST API key
	apiKeyName = "fabric_api_key"
)

// ErrNoAPIKey is returned when no API key has been stored.
var ErrNoAPIKey = errors.New("no Fabric API key found - run `fabric-mcp auth set-key`")

// CredentialManager handles secure storage and retrieval of the API key
type CredentialManager struct {
	service string
}

// NewCredentialManager creates a new credential manager instance
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		service: credentialService,
	}
}

// StoreAPIKey securely stores the Fabric API key in the OS credential store.
func (cm *CredentialManager) StoreAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := keyring.Set(cm.service, apiKeyName, key); err != nil {
		return fmt.Errorf("failed to store API key in credential store: %w", err)
	}

	return nil
}

// GetAPIKey retrieves the stored API key. It returns ErrNoAPIKey when nothing
// is stored.
func (cm *CredentialManager) GetAPIKey() (string, error) {
	key, err := keyring.Get(cm.service, apiKeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("failed to retrieve API key from credential store: %w", err)
	}

	if strings.TrimSpace(key) == "" {
		return "", ErrNoAPIKey
	}

	return key, nil
}

// DeleteAPIKey removes the stored API key. Deleting a missing key is not an
// error.
func (cm *CredentialManager) DeleteAPIKey() error {
	err := keyring.Delete(cm.service, apiKeyName)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete API key from credential store: %w", err)
	}
	return nil
}

// HasAPIKey checks if an API key is stored without returning it.
func (cm *CredentialManager) HasAPIKey() bool {
	_, err := cm.GetAPIKey()
	return err == nil
}
