package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileGetSet(t *testing.T) {
	store, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "listaActividades", []byte(`[]`)))

	second, err := NewFile(dir)
	require.NoError(t, err)
	got, ok, err := second.Get(ctx, "listaActividades")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[]`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")
	require.Equal(t, "listaActividades.json", entries[0].Name())
}

func TestFileEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "../escape", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "..%2Fescape.json"))
	require.NoError(t, err)
}

func TestFileRequiresDirectory(t *testing.T) {
	_, err := NewFile("")
	require.Error(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, store)

	store, err = Open(ctx, Config{Backend: BackendFile, Dir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &File{}, store)

	_, err = Open(ctx, Config{Backend: "etcd"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpenGivesUpAfterAttempts(t *testing.T) {
	_, err := Open(context.Background(), Config{
		Backend:         BackendRedis,
		RedisURL:        "not a url",
		ConnectAttempts: 2,
	})
	require.ErrorContains(t, err, "parse url")
}

// exerciseStore checks the contract shared by every backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))
	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(got))

	require.NoError(t, store.Set(ctx, "k", []byte("v2")))
	got, _, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	require.NoError(t, store.Close())
}
