// Package source loads the user-selected image that feeds the crop widget:
// size and type checks, decoding with EXIF orientation applied, and natural
// dimensions capture.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/avatar-cropper/pkg/datauri"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

const (
	// DefaultMaxFileSize is the upload limit of the avatar forms (10 MiB)
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	// DefaultMaxPixels bounds the decoded size of an upload (50 Mpx)
	DefaultMaxPixels int64 = 50_000_000
)

var (
	ErrFileTooLarge  = errors.New("source: file too large")
	ErrNotImage      = errors.New("source: file is not an image")
	ErrUnsupported   = errors.New("source: unsupported image format")
	ErrTooSmall      = errors.New("source: image too small")
	ErrTooManyPixels = errors.New("source: image dimensions too large")
)

// Config holds configuration for source loading
type Config struct {
	MaxFileSize      int64
	SupportedFormats []string
	MinImageSize     int
	// MaxPixels bounds width*height, checked before the pixels are decoded
	MaxPixels        int64
}

// DefaultConfig returns the avatar form limits
func DefaultConfig() Config {
	return Config{
		MaxFileSize:      DefaultMaxFileSize,
		SupportedFormats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
		MinImageSize:     1,
		MaxPixels:        DefaultMaxPixels,
	}
}

// Loader loads and validates source images
type Loader struct {
	config Config
}

// New creates a Loader with default configuration
func New() *Loader {
	return &Loader{config: DefaultConfig()}
}

// NewWithConfig creates a Loader with custom configuration
func NewWithConfig(config Config) *Loader {
	return &Loader{config: config}
}

// Config returns the loader configuration
func (l *Loader) Config() Config {
	return l.config
}

// Load reads an image from r. The returned SourceImage carries the natural
// size and the full-resolution data URI; the decoded image is returned for
// rendering and rasterization.
func (l *Loader) Load(r io.Reader) (types.SourceImage, image.Image, error) {
	limit := l.config.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return types.SourceImage{}, nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > limit {
		return types.SourceImage{}, nil, fmt.Errorf("%w: must be less than %d bytes", ErrFileTooLarge, limit)
	}

	return l.LoadBytes(data)
}

// LoadBytes validates and decodes an in-memory image
func (l *Loader) LoadBytes(data []byte) (types.SourceImage, image.Image, error) {
	if l.config.MaxFileSize > 0 && int64(len(data)) > l.config.MaxFileSize {
		return types.SourceImage{}, nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return types.SourceImage{}, nil, fmt.Errorf("%w: %s detected", ErrNotImage, mime.String())
	}

	img, format, err := decode(data, l.config.MaxPixels)
	if err != nil {
		return types.SourceImage{}, nil, err
	}
	if !l.isFormatSupported(format) {
		return types.SourceImage{}, nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	if err := l.ValidateImage(img); err != nil {
		return types.SourceImage{}, nil, err
	}

	b := img.Bounds()
	src := types.SourceImage{
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
		MIME:          mime.String(),
		Size:          int64(len(data)),
		DataURI:       datauri.Encode(mime.String(), data),
	}
	return src, img, nil
}

// LoadFile loads an image from a file path
func (l *Loader) LoadFile(path string) (types.SourceImage, image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.SourceImage{}, nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	return l.Load(f)
}

// LoadDataURI loads an image from a data URI. URIs that do not declare an
// image media type are rejected before the payload is decoded.
func (l *Loader) LoadDataURI(uri string) (types.SourceImage, image.Image, error) {
	mediaType, err := datauri.MediaType(uri)
	if err != nil {
		return types.SourceImage{}, nil, err
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return types.SourceImage{}, nil, fmt.Errorf("%w: declared %s", ErrNotImage, mediaType)
	}

	_, data, err := datauri.Decode(uri)
	if err != nil {
		return types.SourceImage{}, nil, err
	}
	return l.LoadBytes(data)
}

// ValidateImage checks if an image meets minimum requirements
func (l *Loader) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < l.config.MinImageSize || bounds.Dy() < l.config.MinImageSize {
		return fmt.Errorf("%w: %dx%d (minimum: %d)", ErrTooSmall,
			bounds.Dx(), bounds.Dy(), l.config.MinImageSize)
	}
	return nil
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// GetImageInfo returns basic information about an image
func GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

func (l *Loader) isFormatSupported(format string) bool {
	if len(l.config.SupportedFormats) == 0 {
		return true
	}
	for _, supported := range l.config.SupportedFormats {
		if strings.EqualFold(format, supported) || (format == "jpeg" && strings.EqualFold(supported, "jpg")) {
			return true
		}
	}
	return false
}

// decode decodes data with EXIF orientation applied, falling back to WebP.
// Images larger than maxPixels are rejected from their header alone.
func decode(data []byte, maxPixels int64) (image.Image, string, error) {
	cfg, format, cfgErr := image.DecodeConfig(bytes.NewReader(data))
	if cfgErr != nil {
		wcfg, werr := webp.DecodeConfig(bytes.NewReader(data))
		if werr != nil {
			return nil, "", fmt.Errorf("failed to decode image: %w", cfgErr)
		}
		cfg, format = wcfg, "webp"
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d (maximum: %d pixels)", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}

	if cfgErr == nil {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err == nil {
			return img, format, nil
		}
		cfgErr = err
	}

	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", cfgErr)
	}
	return img, "webp", nil
}
