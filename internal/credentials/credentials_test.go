package credentials

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// newMockManager swaps the OS keyring for go-keyring's in-memory provider so
// tests never touch the developer's real credentials.
func newMockManager(t *testing.T) *CredentialManager {
	t.Helper()
	keyring.MockInit()
	return NewCredentialManager()
}

func TestStoreAndGetAPIKey(t *testing.T) {
	cm := newMockManager(t)

	require.NoError(t, cm.StoreAPIKey("  fabric-secret  "))

	key, err := cm.GetAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "fabric-secret", key)
	assert.True(t, cm.HasAPIKey())
}

func TestStoreAPIKey_Empty(t *testing.T) {
	cm := newMockManager(t)

	err := cm.StoreAPIKey("   ")

	assert.EqualError(t, err, "API key cannot be empty")
	assert.False(t, cm.HasAPIKey())
}

func TestGetAPIKey_NotFound(t *testing.T) {
	cm := newMockManager(t)

	_, err := cm.GetAPIKey()

	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestDeleteAPIKey(t *testing.T) {
	cm := newMockManager(t)
	require.NoError(t, cm.StoreAPIKey("fabric-secret"))

	require.NoError(t, cm.DeleteAPIKey())
	assert.False(t, cm.HasAPIKey())

	// Deleting again is a no-op
	assert.NoError(t, cm.DeleteAPIKey())
}

func TestKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("secret service not running"))
	t.Cleanup(keyring.MockInit)
	cm := NewCredentialManager()

	err := cm.StoreAPIKey("fabric-secret")
	assert.ErrorContains(t, err, "failed to store API key")

	_, err = cm.GetAPIKey()
	assert.ErrorContains(t, err, "failed to retrieve API key")
	assert.NotErrorIs(t, err, ErrNoAPIKey)
}
