package source

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatar-cropper/pkg/datauri"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoad(t *testing.T) {
	data := encodePNG(t, 80, 40)

	src, img, err := New().Load(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 80, src.NaturalWidth)
	assert.Equal(t, 40, src.NaturalHeight)
	assert.Equal(t, "image/png", src.MIME)
	assert.Equal(t, int64(len(data)), src.Size)
	assert.Equal(t, image.Rect(0, 0, 80, 40), img.Bounds())

	mime, payload, err := datauri.Decode(src.DataURI)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, data, payload)
}

func TestLoadTooLarge(t *testing.T) {
	data := encodePNG(t, 64, 64)

	l := NewWithConfig(Config{MaxFileSize: int64(len(data) - 1)})
	_, _, err := l.Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	l = NewWithConfig(Config{MaxFileSize: int64(len(data))})
	_, _, err = l.Load(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestLoadNotImage(t *testing.T) {
	_, _, err := New().Load(strings.NewReader("just some text, definitely not pixels"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	l := NewWithConfig(Config{MaxFileSize: DefaultMaxFileSize, SupportedFormats: []string{"jpg"}, MinImageSize: 1})
	_, _, err := l.Load(bytes.NewReader(encodePNG(t, 8, 8)))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLoadTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinImageSize = 100
	_, _, err := NewWithConfig(cfg).Load(bytes.NewReader(encodePNG(t, 50, 200)))
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestLoadFileAndDataURI(t *testing.T) {
	data := encodePNG(t, 20, 30)
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l := New()
	src, _, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, src.NaturalWidth)

	again, _, err := l.LoadDataURI(src.DataURI)
	require.NoError(t, err)
	assert.Equal(t, src.NaturalWidth, again.NaturalWidth)
	assert.Equal(t, src.NaturalHeight, again.NaturalHeight)

	_, _, err = l.LoadFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, _, err = l.LoadDataURI("not a data uri")
	assert.ErrorIs(t, err, datauri.ErrMalformed)
}

// pngHeader returns a PNG whose header claims width x height but carries a
// single pixel of data, so only a header-first check can reject it cheaply.
func pngHeader(t *testing.T, width, height uint32) []byte {
	t.Helper()
	data := encodePNG(t, 1, 1)
	// signature (8) + IHDR length (4) + type (4), then width and height
	binary.BigEndian.PutUint32(data[16:], width)
	binary.BigEndian.PutUint32(data[20:], height)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestLoadTooManyPixels(t *testing.T) {
	data := pngHeader(t, 8000, 8000)
	require.Less(t, len(data), 1024)

	_, _, err := New().LoadBytes(data)
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.Contains(t, err.Error(), "8000x8000")

	data = encodePNG(t, 80, 40)
	cfg := DefaultConfig()
	cfg.MaxPixels = 80*40 - 1
	_, _, err = NewWithConfig(cfg).LoadBytes(data)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	cfg.MaxPixels = 80 * 40
	_, _, err = NewWithConfig(cfg).LoadBytes(data)
	assert.NoError(t, err)
}

func TestLoadDataURIRequiresImageMediaType(t *testing.T) {
	data := encodePNG(t, 8, 8)

	_, _, err := New().LoadDataURI(datauri.Encode("text/plain", data))
	assert.ErrorIs(t, err, ErrNotImage)

	_, _, err = New().LoadDataURI("photo.png")
	assert.ErrorIs(t, err, datauri.ErrMalformed)

	src, _, err := New().LoadDataURI(datauri.Encode("image/png", data))
	require.NoError(t, err)
	assert.Equal(t, 8, src.NaturalWidth)
}

func TestGetImageInfo(t *testing.T) {
	info := GetImageInfo(image.NewRGBA(image.Rect(0, 0, 400, 300)))
	assert.Equal(t, 400, info.Width)
	assert.Equal(t, 300, info.Height)
	assert.Equal(t, 120000, info.Area)
	assert.InDelta(t, 1.3333, info.AspectRatio, 0.001)
}
