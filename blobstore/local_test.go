package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ifs "github.com/cmunell/featurespace/internal/fs"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "models/missing.fsd")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "models/a.fsd", []byte("alpha")))
	require.NoError(t, store.Put(ctx, "models/b.fsd", []byte("beta")))
	require.NoError(t, store.Put(ctx, "other.fsd", []byte("other")))

	data, err := store.Get(ctx, "models/a.fsd")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)

	// returned data is a copy
	data[0] = 'X'
	again, err := store.Get(ctx, "models/a.fsd")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), again)

	require.NoError(t, store.Put(ctx, "models/a.fsd", []byte("alpha2")))
	data, err = store.Get(ctx, "models/a.fsd")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha2"), data)

	names, err := store.List(ctx, "models/")
	require.NoError(t, err)
	assert.Equal(t, []string{"models/a.fsd", "models/b.fsd"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"models/a.fsd", "models/b.fsd", "other.fsd"}, all)

	require.NoError(t, store.Delete(ctx, "models/a.fsd"))
	require.NoError(t, store.Delete(ctx, "models/a.fsd"))
	_, err = store.Get(ctx, "models/a.fsd")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Put(ctx, "../escape", nil), os.ErrInvalid)
	_, err = store.Get(ctx, "")
	require.ErrorIs(t, err, os.ErrInvalid)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	testStore(t, store)

	_, err := os.Stat(filepath.Join(dir, "models", "b.fsd"))
	require.NoError(t, err)
	assert.Equal(t, dir, store.Root())
}

func TestLocalStore_EmptyRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "not-yet"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_FailedWriteKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := NewLocalStore(dir)
	require.NoError(t, store.Put(ctx, "m.fsd", []byte("v1")))

	injected := errors.New("disk full")
	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule("m.fsd.tmp", ifs.Fault{FailAfterBytes: 1, Err: injected})
	faulty := store.WithFileSystem(ffs)

	require.ErrorIs(t, faulty.Put(ctx, "m.fsd", []byte("v2 longer")), injected)

	data, err := store.Get(ctx, "m.fsd")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.fsd"}, names)
}

func TestLocalStore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewLocalStore(t.TempDir())
	require.ErrorIs(t, store.Put(ctx, "x", []byte("x")), context.Canceled)
	_, err := store.Get(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}
