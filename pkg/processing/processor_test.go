package processing

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatar-cropper/pkg/datauri"
	"github.com/menta2k/avatar-cropper/pkg/mapper"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	green = color.NRGBA{0, 255, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
	white = color.NRGBA{255, 255, 255, 255}
	black = color.NRGBA{0, 0, 0, 255}
)

// createQuadrantImage creates a test image with four solid quadrants
func createQuadrantImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case x < width/2 && y < height/2:
				img.SetNRGBA(x, y, red)
			case y < height/2:
				img.SetNRGBA(x, y, green)
			case x < width/2:
				img.SetNRGBA(x, y, blue)
			default:
				img.SetNRGBA(x, y, white)
			}
		}
	}
	return img
}

// createHalvesImage creates a test image, red on the left half and blue on the right
func createHalvesImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, blue)
			}
		}
	}
	return img
}

func assertColorNear(t *testing.T, want color.NRGBA, got color.Color, tolerance int) {
	t.Helper()
	c := color.NRGBAModel.Convert(got).(color.NRGBA)
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d <= tolerance && d >= -tolerance
	}
	assert.True(t, near(want.R, c.R) && near(want.G, c.G) && near(want.B, c.B) && near(want.A, c.A),
		"expected %v, got %v", want, c)
}

func TestNewProcessorWithOptions(t *testing.T) {
	_, err := NewProcessorWithOptions(Options{OutputSize: 0, Format: "jpg", Quality: 90})
	assert.Error(t, err)

	_, err = NewProcessorWithOptions(Options{OutputSize: 300, Format: "jpg", Quality: 101})
	assert.Error(t, err)

	_, err = NewProcessorWithOptions(Options{OutputSize: 300, Format: "gif", Quality: 90})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	p, err := NewProcessorWithOptions(Options{OutputSize: 128, Format: "png", Quality: 90})
	require.NoError(t, err)
	assert.Equal(t, 128, p.Options().OutputSize)
}

func TestRasterizeIdentity(t *testing.T) {
	p := NewProcessor()
	src := createQuadrantImage(300, 300)

	layout, err := mapper.Contain(300, 300, 1, 400)
	require.NoError(t, err)
	rect := layout.MapRegion(types.CropRegion{X: 0, Y: 0, Width: 400, Height: 400, Scale: 1})
	require.Equal(t, types.SourceRect{X: 0, Y: 0, Size: 300}, rect)

	out, err := p.Rasterize(src, rect)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 300, 300), out.Bounds())

	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			assertColorNear(t, src.NRGBAAt(x, y), out.At(x, y), 2)
		}
	}
}

func TestRasterizeMappedRegion(t *testing.T) {
	p := NewProcessor()
	src := createHalvesImage(800, 400)

	layout, err := mapper.Contain(800, 400, 1, 400)
	require.NoError(t, err)

	// {100,100,100} maps to source {200,0,200}: entirely in the red half
	out, err := p.Rasterize(src, layout.MapRegion(types.CropRegion{X: 100, Y: 100, Width: 100, Height: 100, Scale: 1}))
	require.NoError(t, err)
	assertColorNear(t, red, out.At(150, 150), 2)
	assertColorNear(t, red, out.At(10, 290), 2)

	// {200,100,100} maps to source {400,0,200}: entirely in the blue half
	out, err = p.Rasterize(src, layout.MapRegion(types.CropRegion{X: 200, Y: 100, Width: 100, Height: 100, Scale: 1}))
	require.NoError(t, err)
	assertColorNear(t, blue, out.At(150, 150), 2)
}

func TestRasterizeLetterboxUsesBackground(t *testing.T) {
	p := NewProcessor()
	src := image.NewNRGBA(image.Rect(0, 0, 800, 400))
	for i := range src.Pix {
		src.Pix[i] = 255
	}

	layout, err := mapper.Contain(800, 400, 1, 400)
	require.NoError(t, err)

	// entirely over the top padding band
	out, err := p.Rasterize(src, layout.MapRegion(types.CropRegion{X: 0, Y: 0, Width: 100, Height: 100, Scale: 1}))
	require.NoError(t, err)
	assertColorNear(t, black, out.At(150, 150), 0)

	// half over the padding band
	out, err = p.Rasterize(src, layout.MapRegion(types.CropRegion{X: 0, Y: 50, Width: 100, Height: 100, Scale: 1}))
	require.NoError(t, err)
	assertColorNear(t, black, out.At(150, 50), 0)
	assertColorNear(t, white, out.At(150, 250), 2)
}

func TestRasterizeCustomBackground(t *testing.T) {
	opts := DefaultOptions()
	opts.Background = white
	p, err := NewProcessorWithOptions(opts)
	require.NoError(t, err)

	out, err := p.Rasterize(createHalvesImage(100, 100), types.SourceRect{X: -1000, Y: -1000, Size: 50})
	require.NoError(t, err)
	assertColorNear(t, white, out.At(0, 0), 0)
}

func TestRasterizeEmpty(t *testing.T) {
	p := NewProcessor()
	_, err := p.Rasterize(createHalvesImage(10, 10), types.SourceRect{Size: 0})
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestEncodeDataURI(t *testing.T) {
	p := NewProcessor()
	out, err := p.Rasterize(createQuadrantImage(300, 300), types.SourceRect{Size: 300})
	require.NoError(t, err)

	uri, err := p.EncodeDataURI(out)
	require.NoError(t, err)

	mime, data, err := datauri.Decode(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestCrop(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = "png"
	p, err := NewProcessorWithOptions(opts)
	require.NoError(t, err)

	layout, err := mapper.Contain(800, 400, 1, 400)
	require.NoError(t, err)

	uri, rect, err := p.Crop(createHalvesImage(800, 400), layout, types.CropRegion{X: 100, Y: 100, Width: 100, Height: 100, Scale: 1})
	require.NoError(t, err)
	assert.Equal(t, types.SourceRect{X: 200, Y: 0, Size: 200}, rect)

	_, data, err := datauri.Decode(uri)
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assertColorNear(t, red, img.At(150, 150), 0)
}

func TestEncodeUnsupported(t *testing.T) {
	p := NewProcessor()
	var buf bytes.Buffer
	err := p.Encode(&buf, createHalvesImage(4, 4), "bmp", 90, false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.png")

	require.NoError(t, p.SaveImage(createQuadrantImage(64, 64), path, "png", 90, false))

	img, err := p.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assertColorNear(t, green, img.At(48, 8), 0)

	_, err = p.LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestRenderViewport(t *testing.T) {
	p := NewProcessor()
	layout, err := mapper.Contain(800, 400, 1, 400)
	require.NoError(t, err)

	region := types.CropRegion{X: 100, Y: 100, Width: 200, Height: 200, Scale: 1}
	out := p.RenderViewport(createHalvesImage(800, 400), layout, region)

	assert.Equal(t, image.Rect(0, 0, 400, 400), out.Bounds())
	// letterbox band is the dimmed viewport background
	assert.NotEqual(t, red, out.NRGBAAt(200, 20))
	// inside the box the image is undimmed
	assertColorNear(t, red, out.At(150, 200), 2)
	// outside the box but on the image it is dimmed
	c := out.NRGBAAt(50, 200)
	assert.Less(t, c.R, uint8(200))
	// handle at the top-left corner
	assert.Equal(t, handleColor, out.NRGBAAt(100, 100))
}

func TestRenderViewportZoom(t *testing.T) {
	p := NewProcessor()
	src := createHalvesImage(800, 400)
	region := types.CropRegion{X: 100, Y: 100, Width: 200, Height: 200, Scale: 1}

	layout, err := mapper.Contain(800, 400, 1, 400)
	require.NoError(t, err)
	fit := p.RenderViewport(src, layout, region)

	region.Scale = 2
	layout, err = mapper.Contain(800, 400, 2, 400)
	require.NoError(t, err)
	zoomed := p.RenderViewport(src, layout, region)

	assert.NotEqual(t, fit.Pix, zoomed.Pix)
	// the letterbox band at scale 1 is covered by the image at scale 2
	assert.Less(t, fit.NRGBAAt(150, 20).R, uint8(50))
	assert.Greater(t, zoomed.NRGBAAt(150, 20).R, uint8(100))
	// zoom is centered: the red/blue seam stays on the viewport center line
	assertColorNear(t, red, zoomed.At(190, 200), 2)
	assertColorNear(t, blue, zoomed.At(210, 200), 2)
}

func BenchmarkRasterize(b *testing.B) {
	p := NewProcessor()
	src := createQuadrantImage(1920, 1080)
	rect := types.SourceRect{X: 400, Y: 100, Size: 800}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Rasterize(src, rect)
	}
}
