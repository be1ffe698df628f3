package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("title\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("title,type\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0755))

	t.Run("lists regular files sorted", func(t *testing.T) {
		files, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "a.csv", files[0].Name)
		assert.Equal(t, int64(11), files[0].Size)
		assert.Equal(t, "b.csv", files[1].Name)
	})

	t.Run("opens files", func(t *testing.T) {
		rc, err := s.Open(ctx, "b.csv")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "title\n", string(data))
	})

	t.Run("missing file matches fs.ErrNotExist", func(t *testing.T) {
		_, err := s.Open(ctx, "missing.csv")
		assert.ErrorIs(t, err, fs.ErrNotExist)

		err = s.Remove(ctx, "missing.csv")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("rejects names outside the base directory", func(t *testing.T) {
		_, err := s.Open(ctx, "../secret.csv")
		assert.Error(t, err)
	})

	t.Run("removes files", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "a.csv"))
		_, err := os.Stat(filepath.Join(dir, "a.csv"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestLocalStorage_NoBasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	s, err := NewLocalStorage("")
	require.NoError(t, err)

	rc, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	rc.Close()

	require.NoError(t, s.Remove(context.Background(), path))
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), Config{LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Type: StorageTypeGCS})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestGCSStorage_ObjectNames(t *testing.T) {
	s := &GCSStorage{prefix: normalizePrefix("/inbox/")}
	assert.Equal(t, "inbox/", s.prefix)
	assert.Equal(t, "inbox/import.csv", s.objectName("import.csv"))

	s = &GCSStorage{prefix: normalizePrefix("")}
	assert.Equal(t, "import.csv", s.objectName("/import.csv"))
}
