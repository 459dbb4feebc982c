package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()
	return &CredentialStore{path: filepath.Join(t.TempDir(), "credentials.json")}
}

func TestCredentials_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("bridge-1", BridgeCredentials{Username: "user1", Clientkey: "key1"}))

	got, found, err := store.Load("bridge-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, BridgeCredentials{Username: "user1", Clientkey: "key1"}, got)
}

func TestCredentials_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Load("bridge-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save("bridge-1", BridgeCredentials{Username: "u", Clientkey: "k"}))
	_, found, err = store.Load("bridge-other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCredentials_CorruptFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.path, []byte("{not json"), 0600))

	_, found, err := store.Load("bridge-1")
	assert.Error(t, err)
	assert.False(t, found)

	// Saving replaces the unreadable file.
	require.NoError(t, store.Save("bridge-1", BridgeCredentials{Username: "u"}))
	_, found, err = store.Load("bridge-1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCredentials_DeleteKeepsOtherBridges(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("bridge-1", BridgeCredentials{Username: "user1", Clientkey: "key1"}))
	require.NoError(t, store.Save("bridge-2", BridgeCredentials{Username: "user2", Clientkey: "key2"}))
	require.NoError(t, store.Delete("bridge-1"))

	_, found, err := store.Load("bridge-1")
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := store.Load("bridge-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user2", got.Username)
}

func TestCredentials_DeleteWithoutFile(t *testing.T) {
	assert.NoError(t, newTestStore(t).Delete("bridge-1"))
}

func TestCredentials_SaveCreatesDirectory(t *testing.T) {
	appDir = filepath.Join(t.TempDir(), "nested", "dir")
	t.Cleanup(func() { appDir = "" })

	store, err := DefaultCredentialStore()
	require.NoError(t, err)
	require.NoError(t, store.Save("b1", BridgeCredentials{Username: "u", Clientkey: "k"}))

	info, err := os.Stat(filepath.Join(appDir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
