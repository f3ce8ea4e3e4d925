package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

func TestNewIdentityStore(t *testing.T) {
	dir := t.TempDir()
	_, err := NewIdentityStore(dir + "/")
	assert.NoError(t, err)

	_, err = NewIdentityStore(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = NewIdentityStore(file)
	assert.Error(t, err)
}

func TestIdentityStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewIdentityStore(dir)
	require.NoError(t, err)

	identity := Identity{
		ClientID: zookeeper.ClientID{ID: -2, Passwd: [zookeeper.PasswordLen]byte{0xde, 0xad, 15: 0x01}},
		Hosts:    "zk1:2181,zk2:2181",
		SavedAt:  time.Date(2024, 3, 1, 12, 0, 0, 5, time.UTC),
	}
	require.NoError(t, store.Save("cli", identity))
	assert.FileExists(t, filepath.Join(dir, "identity_cli"))

	loaded, err := store.Load("cli")
	require.NoError(t, err)
	assert.Equal(t, identity, loaded)

	// Saving again replaces the identity.
	identity.ClientID.ID = 7
	require.NoError(t, store.Save("cli", identity))
	loaded, err = store.Load("cli")
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.ClientID.ID)
}

func TestIdentityStore_Missing(t *testing.T) {
	store, err := NewIdentityStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nothing")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, store.Remove("nothing"))
}

func TestIdentityStore_Remove(t *testing.T) {
	store, err := NewIdentityStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("a", Identity{Hosts: "localhost"}))
	require.NoError(t, store.Remove("a"))
	_, err = store.Load("a")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIdentityStore_InvalidName(t *testing.T) {
	store, err := NewIdentityStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../x", `a\b`} {
		assert.Error(t, store.Save(name, Identity{}), name)
		_, err := store.Load(name)
		assert.Error(t, err, name)
	}
}
