package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadIdentityMissingFile(t *testing.T) {
	_, ok, err := LoadIdentity(t.TempDir())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveAndLoadIdentity(t *testing.T) {
	home := t.TempDir()

	require.NoError(t, SaveIdentity(home, Identity{UID: "u1", Nickname: "alice"}))

	id, ok, err := LoadIdentity(home)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", id.UID)
	require.Equal(t, "alice", id.Nickname)
	require.NotZero(t, id.UpdatedAtMs)
}

func TestSaveIdentityRejectsEmptyUID(t *testing.T) {
	require.Error(t, SaveIdentity(t.TempDir(), Identity{Nickname: "alice"}))
}

func TestSaveIdentityCreatesHomeDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "anonchat")

	require.NoError(t, SaveIdentity(home, Identity{UID: "u1"}))

	_, ok, err := LoadIdentity(home)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSaveIdentityRestrictsPermissions(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, SaveIdentity(home, Identity{UID: "u1"}))

	info, err := os.Stat(filepath.Join(home, "identity.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDeleteIdentity(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, SaveIdentity(home, Identity{UID: "u1"}))

	require.NoError(t, DeleteIdentity(home))
	_, ok, err := LoadIdentity(home)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting again is not an error.
	require.NoError(t, DeleteIdentity(home))
}

func TestLoadIdentityRejectsEmptyUID(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "identity.json"), []byte(`{"nickname":"x"}`), 0o600))

	_, _, err := LoadIdentity(home)
	require.Error(t, err)
}
