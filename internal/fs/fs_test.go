package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fsys FileSystem, path, body string) error {
	t.Helper()
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	if _, err := f.Write([]byte(body)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func TestOS(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, Default.MkdirAll(sub, 0o755))

	p := filepath.Join(sub, "x.tmp")
	require.NoError(t, writeFile(t, Default, p, "hello"))
	require.NoError(t, Default.Rename(p, filepath.Join(sub, "x")))

	entries, err := Default.ReadDir(sub)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Name())

	require.NoError(t, Default.Remove(filepath.Join(sub, "x")))
	_, err = Default.OpenFile(filepath.Join(sub, "x"), os.O_RDONLY, 0)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFaultyFS(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	ffs := NewFaultyFS(nil)

	// no rule: passthrough
	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "plain"), "0123456789"))

	ffs.AddRule("limited", Fault{FailAfterBytes: 4, Err: boom})
	require.ErrorIs(t, writeFile(t, ffs, filepath.Join(dir, "limited"), "12345"), boom)
	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "limited"), "1234"))

	ffs.AddRule("write", Fault{FailOnWrite: true})
	require.ErrorIs(t, writeFile(t, ffs, filepath.Join(dir, "write"), "x"), ErrInjected)

	ffs.AddRule("sync", Fault{FailOnSync: true})
	require.ErrorIs(t, writeFile(t, ffs, filepath.Join(dir, "sync"), "x"), ErrInjected)

	ffs.AddRule("close", Fault{FailOnClose: true, Err: boom})
	require.ErrorIs(t, writeFile(t, ffs, filepath.Join(dir, "close"), "x"), boom)

	ffs.AddRule("rename", Fault{FailOnRename: true})
	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "rename"), "x"))
	require.ErrorIs(t, ffs.Rename(filepath.Join(dir, "rename"), filepath.Join(dir, "renamed")), ErrInjected)

	// later rules win
	ffs.AddRule("limited", Fault{})
	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "limited"), "123456789"))

	ffs.Reset()
	require.NoError(t, ffs.Rename(filepath.Join(dir, "rename"), filepath.Join(dir, "renamed")))
	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "sync"), "x"))
}
