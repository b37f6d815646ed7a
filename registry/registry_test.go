package registry

import (
	"crypto/rand"
	"testing"

	"github.com/manuelog-udc/tfm-munics/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeys(t *testing.T, n int) []*verifier.VerifyingKey {
	t.Helper()
	keys := make([]*verifier.VerifyingKey, 0, n)
	for i := 0; i < n; i++ {
		td, err := verifier.NewTrapdoor(rand.Reader, 2)
		require.NoError(t, err)
		keys = append(keys, td.VerifyingKey())
	}
	return keys
}

func TestKeyRegistry_AddAndLookup(t *testing.T) {
	keys := newTestKeys(t, 3)

	reg, err := New(keys[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	idx, err := reg.Add(keys[2])
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 3, reg.ValidCount())

	vk, valid, err := reg.Key(2)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.True(t, vk.Alpha1.Equal(&keys[2].Alpha1))

	_, _, err = reg.Key(3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, err, verifier.ErrIndexOutOfRange)

	_, err = reg.Add(nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	broken := keys[0].Clone()
	broken.IC = nil
	_, err = reg.Add(broken)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 3, reg.Len(), "failed add must not change the registry")
}

func TestKeyRegistry_Invalidate(t *testing.T) {
	reg, err := New(newTestKeys(t, 2))
	require.NoError(t, err)

	changed, err := reg.Invalidate(0)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = reg.Invalidate(0)
	require.NoError(t, err, "re-invalidating is a no-op")
	assert.False(t, changed)

	_, err = reg.Invalidate(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = reg.Invalidate(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	e, err := reg.Entry(0)
	require.NoError(t, err)
	assert.False(t, e.Valid)
	assert.Equal(t, 0, e.Index)
	assert.Equal(t, 1, reg.ValidCount())
}

func TestKeyRegistry_Substitute(t *testing.T) {
	reg, err := New(newTestKeys(t, 2))
	require.NoError(t, err)
	_, err = reg.Invalidate(1)
	require.NoError(t, err)

	replacement := newTestKeys(t, 3)
	first, err := reg.Substitute(replacement)
	require.NoError(t, err)
	assert.Equal(t, 2, first, "indices are never reused")
	assert.Equal(t, 5, reg.Len())

	entries := reg.Entries()
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, i >= 2, e.Valid, "entry %d", i)
	}

	_, err = reg.Substitute(nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 5, reg.Len())
}

func TestKeyRegistry_CopiesOnReturn(t *testing.T) {
	keys := newTestKeys(t, 1)
	reg, err := New(keys)
	require.NoError(t, err)

	e, err := reg.Entry(0)
	require.NoError(t, err)
	e.Key.IC = nil

	vk, _, err := reg.Key(0)
	require.NoError(t, err)
	assert.Len(t, vk.IC, 3)
}
