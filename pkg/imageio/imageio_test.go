package imageio

import (
	"encoding/base64"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 100, 255})
		}
	}
	return img
}

func TestNewWithConfigDefaults(t *testing.T) {
	c := NewWithConfig(Config{})
	assert.Equal(t, "JPG", c.Format())
	assert.Equal(t, 90, c.config.Quality)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := New()
	img := createTestImage(40, 30)

	for _, name := range []string{"a.JPG", "b.jpeg", "c.png", "d.webp"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, c.Save(img, path))

			loaded, err := c.Load(path)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds().Size(), loaded.Bounds().Size())
		})
	}
}

func TestSaveUnsupportedFormat(t *testing.T) {
	err := New().Save(createTestImage(4, 4), filepath.Join(t.TempDir(), "a.tiff"))
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := New().Load(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)

	bogus := filepath.Join(dir, "bogus.jpg")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0644))
	_, err = New().Load(bogus)
	assert.ErrorContains(t, err, "failed to decode")
}

func TestSaveVariant(t *testing.T) {
	dir := t.TempDir()
	path, err := New().SaveVariant(createTestImage(8, 8), dir, "image (3)", "flip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "image (3)_flip.JPG"), path)
	assert.FileExists(t, path)
}

func TestEncodeBase64Downscales(t *testing.T) {
	c := New()
	img := createTestImage(60, 20)

	encoded, err := c.EncodeBase64(img, "png", 30)
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	decoded, _, err := image.Decode(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, 30, decoded.Bounds().Dx())
	assert.Equal(t, 10, decoded.Bounds().Dy())

	encoded, err = c.EncodeBase64(img, "jpg", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
}

func TestGetImageInfo(t *testing.T) {
	info := GetImageInfo(createTestImage(200, 100))
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 100, info.Height)
	assert.Equal(t, 2.0, info.AspectRatio)
	assert.Equal(t, 20000, info.Area)
}
