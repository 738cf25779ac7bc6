package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileScoped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o600))

	data, err := ReadFileScoped(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestReadFileScopedMissing(t *testing.T) {
	_, err := ReadFileScoped(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestReadFileScopedRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret"), []byte("x"), 0o600))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// A symlink pointing outside the scoped root must not resolve.
	link := filepath.Join(sub, "escape")
	require.NoError(t, os.Symlink(filepath.Join(dir, "secret"), link))
	_, err := ReadFileScoped(link)
	assert.Error(t, err)
}

func TestReadFileScopedInvalidPath(t *testing.T) {
	_, err := ReadFileScoped("/")
	assert.Error(t, err)
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.False(t, DirExists(file))
}
