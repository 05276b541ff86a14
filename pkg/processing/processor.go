package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/avatar-cropper/pkg/datauri"
	"github.com/menta2k/avatar-cropper/pkg/mapper"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// Output defaults of the avatar forms
const (
	DefaultOutputSize = 300
	DefaultFormat     = "jpg"
	DefaultQuality    = 90
)

var (
	ErrEmptyCrop         = errors.New("processing: empty crop rectangle")
	ErrUnsupportedFormat = errors.New("processing: unsupported output format")
)

// Options controls rasterization and encoding
type Options struct {
	OutputSize int
	Format     string
	Quality    int
	Lossless   bool
	// Background fills output pixels that map outside the source image
	Background color.NRGBA
}

// DefaultOptions returns 300x300 JPEG at quality 90 over black
func DefaultOptions() Options {
	return Options{
		OutputSize: DefaultOutputSize,
		Format:     DefaultFormat,
		Quality:    DefaultQuality,
		Background: color.NRGBA{0, 0, 0, 255},
	}
}

// Processor handles image processing operations
type Processor struct {
	options Options
	logger  *zap.Logger
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{options: DefaultOptions(), logger: zap.NewNop()}
}

// NewProcessorWithOptions creates a processor with custom output options
func NewProcessorWithOptions(opts Options) (*Processor, error) {
	if opts.OutputSize <= 0 {
		return nil, fmt.Errorf("output size must be positive, got %d", opts.OutputSize)
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", opts.Quality)
	}
	if _, err := MIMEType(opts.Format); err != nil {
		return nil, err
	}
	return &Processor{options: opts, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger
func (p *Processor) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.logger = logger
}

// Options returns the processor options
func (p *Processor) Options() Options {
	return p.options
}

// Rasterize draws the rect square of src into an OutputSize x OutputSize
// surface using Catmull-Rom resampling. Sub-pixel crop origins are kept by
// drawing through an affine transform; output pixels that fall outside the
// source keep the background color.
func (p *Processor) Rasterize(src image.Image, rect types.SourceRect) (*image.NRGBA, error) {
	if !(rect.Size > 0) || math.IsInf(rect.Size, 0) {
		return nil, fmt.Errorf("%w: size %v", ErrEmptyCrop, rect.Size)
	}

	out := p.options.OutputSize
	dst := image.NewNRGBA(image.Rect(0, 0, out, out))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(p.options.Background), image.Point{}, draw.Src)

	b := src.Bounds()
	if mapper.Overflows(rect, b.Dx(), b.Dy()) {
		p.logger.Warn("crop samples outside the source image",
			zap.Float64("x", rect.X),
			zap.Float64("y", rect.Y),
			zap.Float64("size", rect.Size),
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()))
		if mapper.Intersect(rect, b.Dx(), b.Dy()).Empty() {
			return dst, nil
		}
	}

	// source -> destination: d = (s - origin) * k
	k := float64(out) / rect.Size
	ox := float64(b.Min.X) + rect.X
	oy := float64(b.Min.Y) + rect.Y
	s2d := f64.Aff3{
		k, 0, -ox * k,
		0, k, -oy * k,
	}

	draw.CatmullRom.Transform(dst, s2d, src, b, draw.Over, nil)

	return dst, nil
}

// Encode writes img in the given format
func (p *Processor) Encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// EncodeDataURI encodes img with the processor options and returns a data URI
func (p *Processor) EncodeDataURI(img image.Image) (string, error) {
	mime, err := MIMEType(p.options.Format)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := p.Encode(&buf, img, p.options.Format, p.options.Quality, p.options.Lossless); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", p.options.Format, err)
	}
	return datauri.Encode(mime, buf.Bytes()), nil
}

// Crop maps region through layout, rasterizes it from src and returns the
// encoded data URI together with the source rectangle used.
func (p *Processor) Crop(src image.Image, layout mapper.Layout, region types.CropRegion) (string, types.SourceRect, error) {
	rect := layout.MapRegion(region)
	img, err := p.Rasterize(src, rect)
	if err != nil {
		return "", rect, err
	}
	uri, err := p.EncodeDataURI(img)
	if err != nil {
		return "", rect, err
	}
	return uri, rect, nil
}

// MIMEType returns the media type for an output format name
func MIMEType(format string) (string, error) {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg", nil
	case "png":
		return "image/png", nil
	case "webp":
		return "image/webp", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders), honoring EXIF orientation
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestCompression))
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
