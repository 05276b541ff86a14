package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileExtension(t *testing.T) {
	assert.Equal(t, "jpg", GetFileExtension("photo.JPG"))
	assert.Equal(t, "png", GetFileExtension("/tmp/a.b/photo.png"))
	assert.Equal(t, "", GetFileExtension("README"))
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.jpeg", "a.PNG", "a.gif", "a.webp"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"a.txt", "a.pdf", "jpg"} {
		assert.False(t, IsImageFile(name), name)
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "me_avatar.png"),
		GenerateOutputFilename("/photos/me.jpeg", "out", "_avatar", "png"))
	assert.Equal(t, filepath.Join("out", "me.jpg"),
		GenerateOutputFilename("me.webp", "out", "", ""))
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0755))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, files)

	_, err = ListImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExistsHelpers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, EnsureDir(sub))
	assert.True(t, DirExists(sub))
	require.NoError(t, EnsureDir(sub))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "32 B", FormatFileSize(32))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "10.0 MB", FormatFileSize(10<<20))
	assert.Equal(t, "1.5 GB", FormatFileSize(3<<29))
}
