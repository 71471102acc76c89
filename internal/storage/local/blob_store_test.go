package local_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/worklist-harvester/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObjectReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	uri, err := store.PutObject(ctx, "runs/output.xlsx", "", bytes.NewReader([]byte("first checkpoint")))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "runs/output.xlsx"), uri)

	_, err = store.PutObject(ctx, "runs/output.xlsx", "", bytes.NewReader([]byte("final")))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "runs/output.xlsx")) // #nosec G304 -- temp dir
	require.NoError(t, err)
	assert.Equal(t, "final", string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestPutObjectFailedWriteKeepsPrevious(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.PutObject(ctx, "out.xlsx", "", bytes.NewReader([]byte("good")))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "out.xlsx", "", failingReader{})
	require.Error(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "out.xlsx")) // #nosec G304 -- temp dir
	require.NoError(t, err)
	assert.Equal(t, "good", string(got))
}

func TestPutObjectRejectsBadPaths(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
	assert.Error(t, err)
	_, err = store.PutObject(context.Background(), "../escape.xlsx", "", bytes.NewReader(nil))
	assert.ErrorContains(t, err, "path traversal")
	_, err = store.PutObject(context.Background(), ".", "", bytes.NewReader(nil))
	assert.ErrorContains(t, err, "path traversal")
}

// Not parallel: changes the working directory.
func TestPutObjectRelativeBaseDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	store, err := local.New(local.Config{BaseDir: "."})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "harvest_output.xlsx", "", bytes.NewReader([]byte("rows")))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "harvest_output.xlsx"), uri)

	got, err := os.ReadFile(filepath.Join(dir, "harvest_output.xlsx")) // #nosec G304 -- temp dir
	require.NoError(t, err)
	assert.Equal(t, "rows", string(got))

	_, err = store.PutObject(context.Background(), "../escape.xlsx", "", bytes.NewReader(nil))
	assert.ErrorContains(t, err, "path traversal")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk full")
}
