package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	data := []byte(`{"privateKey":"1","publicKeys":["2","3"]}`)
	id, err := backend.Store(ctx, data, interfaces.KeyInputType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	got, err := backend.Fetch(ctx, id, interfaces.KeyInputType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// content types are separate namespaces
	_, err = backend.Fetch(ctx, id, interfaces.VerifyingKeyType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	info, err := os.Stat(filepath.Join(dir, "key-inputs", id.String()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStorageBackendFactory(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger())
	dir := t.TempDir()

	loc, err := interfaces.NewStorageBackendLocation("file://" + dir)
	require.NoError(t, err)
	backend, err := factory.StorageBackendFor(loc)
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)

	loc, err = interfaces.NewStorageBackendLocation("vault://s.token@vault.internal:8200/secret/recovery?tls=false&timeout=5s")
	require.NoError(t, err)
	backend, err = factory.StorageBackendFor(loc)
	require.NoError(t, err)
	vault := backend.(*VaultBackend)
	assert.Equal(t, "secret", vault.mountPath)
	assert.Equal(t, "recovery", vault.dataPath)
	assert.Equal(t, "s.token", vault.client.Token())
	assert.Equal(t, "secret/data/recovery/key-inputs/"+interfaces.ContentID{}.String(), vault.path(interfaces.ContentID{}, interfaces.KeyInputType))

	loc, err = interfaces.NewStorageBackendLocation("ipfs://localhost:5001/keys?timeout=nope")
	require.NoError(t, err)
	_, err = factory.StorageBackendFor(loc)
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = interfaces.NewStorageBackendLocation("github://owner/repo")
	require.Error(t, err)

	multi, err := factory.FromURIs([]string{"file://" + dir})
	require.NoError(t, err)
	data := []byte("vk set")
	id, err := multi.Store(context.Background(), data, interfaces.VerifyingKeyType)
	require.NoError(t, err)
	assert.Equal(t, "http://vault.internal:8200", vault.client.Address())

	fetched, err := multi.Fetch(context.Background(), id, interfaces.VerifyingKeyType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)
}
