package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.png", "a.JPG", "b.jpeg", "c.Bmp", "d.gif"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"note.txt", "a.webp", "noext", "a.tiff"} {
		assert.False(t, IsImageFile(name), name)
	}
}

func TestStemAndExtension(t *testing.T) {
	assert.Equal(t, "image (1)", Stem("/data/Apple_scab/image (1).JPG"))
	assert.Equal(t, "archive.tar", Stem("archive.tar.gz"))
	assert.Equal(t, "jpg", GetFileExtension("x/y.JPG"))
	assert.Equal(t, "", GetFileExtension("x/y"))
}

func TestGenerateOutputFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "leaf_flip.JPG"), GenerateOutputFilename("leaf", "out", "flip", ""))
	assert.Equal(t, filepath.Join("out", "leaf_mask.png"), GenerateOutputFilename("leaf", "out", "mask", "png"))
}

func TestCopyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(src, []byte("leaf"), 0644))

	dst := filepath.Join(dir, "x", "y", "a.jpg")
	require.NoError(t, CopyFile(ctx, src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "leaf", string(data))
	assert.True(t, FileExists(src))
}

func TestRemoveAllAndExists(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "pool")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "class"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "class", "a.jpg"), []byte("x"), 0644))

	ok, err := Exists(ctx, dir)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, RemoveAll(ctx, dir))
	assert.False(t, DirExists(dir))

	// missing paths are fine
	assert.NoError(t, RemoveAll(ctx, dir))
}

func TestRecreateDir(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "train")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.jpg"), []byte("x"), 0644))

	require.NoError(t, RecreateDir(ctx, dir))
	assert.True(t, DirExists(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 50), 0644))

	size, err := DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(150), size)
	assert.Equal(t, "150 B", FormatFileSize(size))
	assert.Equal(t, "0 B", FormatFileSize(-1))
}
