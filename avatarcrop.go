// Package avatarcrop provides the interactive square crop widget used by the
// registration and profile forms to turn an uploaded photo into an avatar.
//
// A Widget shows the selected image contain-fitted into a square viewport with
// a movable, resizable crop box on top. Applying the widget maps the box back
// into source pixels, resamples that square to a fixed-size output and hands
// the result to the host as a data URI.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		avatarcrop "github.com/menta2k/avatar-cropper"
//		"github.com/menta2k/avatar-cropper/pkg/pointer"
//	)
//
//	func main() {
//		opts := avatarcrop.DefaultOptions()
//		w, err := avatarcrop.Open(photoURI, opts,
//			func(uri string) { fmt.Println("avatar:", len(uri), "bytes") },
//			func() { fmt.Println("cancelled") })
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// drag the box 40px right, then release anywhere on the page
//		w.PointerDown(pointer.Mouse(pointer.MouseDown, 200, 200))
//		opts.Document.Dispatch(pointer.Mouse(pointer.MouseMove, 240, 200))
//		opts.Document.Dispatch(pointer.Mouse(pointer.MouseUp, 240, 200))
//
//		if _, err := w.Apply(); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package is built from these components:
//
//  1. Cropper (pkg/cropper): the crop box state machine
//  2. Mapper (pkg/mapper): viewport to source coordinate mapping
//  3. Processing (pkg/processing): rasterization, encoding and preview rendering
//  4. Source (pkg/source): upload checks and decoding
package avatarcrop

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/avatar-cropper/pkg/cropper"
	"github.com/menta2k/avatar-cropper/pkg/mapper"
	"github.com/menta2k/avatar-cropper/pkg/pointer"
	"github.com/menta2k/avatar-cropper/pkg/processing"
	"github.com/menta2k/avatar-cropper/pkg/source"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// Version of the avatar cropper library
const Version = "1.0.0"

// ErrClosed is returned by every operation on an applied or cancelled widget
var ErrClosed = errors.New("avatarcrop: widget is closed")

// ApplyFunc receives the encoded avatar
type ApplyFunc func(dataURI string)

// CancelFunc is called when the user dismisses the widget
type CancelFunc func()

// Options configures a Widget
type Options struct {
	Cropper cropper.Config
	Output  processing.Options
	Source  source.Config
	// Origin is the page position of the viewport's top-left corner
	Origin types.Point
	// Document receives page-wide pointer events. A private one is created
	// when nil.
	Document *pointer.Document
	Logger   *zap.Logger
}

// DefaultOptions returns the avatar form settings: 400px viewport, 50px
// minimum box, 0.5 to 3 zoom, 300px JPEG output at quality 90.
func DefaultOptions() Options {
	return Options{
		Cropper:  cropper.DefaultConfig(),
		Output:   processing.DefaultOptions(),
		Source:   source.DefaultConfig(),
		Document: pointer.NewDocument(),
	}
}

// Widget is a single crop session over one source image. It is used from a
// single UI loop and is not safe for concurrent use.
type Widget struct {
	id     uuid.UUID
	source types.SourceImage
	img    image.Image

	controller *cropper.Controller
	tracker    *pointer.Tracker
	processor  *processing.Processor
	document   *pointer.Document

	unsubscribe func()
	onApply     ApplyFunc
	onCancel    CancelFunc
	closed      bool
	logger      *zap.Logger
}

// NewWidget creates a widget over an already decoded image
func NewWidget(src types.SourceImage, img image.Image, opts Options, onApply ApplyFunc, onCancel CancelFunc) (*Widget, error) {
	if img == nil {
		return nil, errors.New("avatarcrop: image is nil")
	}
	b := img.Bounds()
	if src.NaturalWidth <= 0 || src.NaturalHeight <= 0 {
		src.NaturalWidth, src.NaturalHeight = b.Dx(), b.Dy()
	}
	if src.NaturalWidth <= 0 || src.NaturalHeight <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", mapper.ErrInvalidDimensions, src.NaturalWidth, src.NaturalHeight)
	}

	controller, err := cropper.NewWithConfig(opts.Cropper)
	if err != nil {
		return nil, fmt.Errorf("invalid cropper config: %w", err)
	}
	processor, err := processing.NewProcessorWithOptions(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("invalid output options: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	document := opts.Document
	if document == nil {
		document = pointer.NewDocument()
	}

	w := &Widget{
		id:         uuid.New(),
		source:     src,
		img:        img,
		controller: controller,
		tracker:    pointer.NewTracker(opts.Origin),
		processor:  processor,
		document:   document,
		onApply:    onApply,
		onCancel:   onCancel,
	}
	w.logger = logger.With(zap.String("widget", w.id.String()))
	controller.SetLogger(w.logger)
	controller.SetListener(w)
	processor.SetLogger(w.logger)

	w.logger.Debug("crop widget opened",
		zap.Int("width", src.NaturalWidth),
		zap.Int("height", src.NaturalHeight),
		zap.String("mime", src.MIME))
	return w, nil
}

// Open decodes a data URI and creates a widget over it
func Open(dataURI string, opts Options, onApply ApplyFunc, onCancel CancelFunc) (*Widget, error) {
	src, img, err := source.NewWithConfig(opts.Source).LoadDataURI(dataURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load source image: %w", err)
	}
	return NewWidget(src, img, opts, onApply, onCancel)
}

// ID returns the widget identifier used in its log fields
func (w *Widget) ID() uuid.UUID {
	return w.id
}

// Source returns the source image metadata
func (w *Widget) Source() types.SourceImage {
	return w.source
}

// Document returns the registry the widget subscribes to during gestures
func (w *Widget) Document() *pointer.Document {
	return w.document
}

// Region returns the current crop region in viewport coordinates
func (w *Widget) Region() types.CropRegion {
	return w.controller.Region()
}

// Phase returns the active gesture kind
func (w *Widget) Phase() types.GestureKind {
	return w.controller.Phase()
}

// Closed reports whether the widget was applied or cancelled
func (w *Widget) Closed() bool {
	return w.closed
}

// PointerDown handles a mouse down or touch start on the viewport. It reports
// whether the event landed on the crop box or one of its handles.
func (w *Widget) PointerDown(e pointer.Event) (bool, error) {
	if w.closed {
		return false, ErrClosed
	}
	if !e.IsStart() {
		return false, nil
	}
	return w.controller.PointerDown(w.tracker.Local(e))
}

// SetScale sets the zoom slider value and returns the clamped value
func (w *Widget) SetScale(scale float64) (float64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.controller.SetScale(scale)
}

// SetRegion places the crop box directly
func (w *Widget) SetRegion(r types.CropRegion) error {
	if w.closed {
		return ErrClosed
	}
	return w.controller.SetRegion(r)
}

// Reset ends any gesture and recenters the default box at scale 1
func (w *Widget) Reset() error {
	if w.closed {
		return ErrClosed
	}
	w.controller.Reset()
	return nil
}

// Layout returns the contain fit of the source at the current scale
func (w *Widget) Layout() (mapper.Layout, error) {
	if w.closed {
		return mapper.Layout{}, ErrClosed
	}
	return w.layout()
}

// Preview renders the viewport as the user sees it
func (w *Widget) Preview() (*image.NRGBA, error) {
	if w.closed {
		return nil, ErrClosed
	}
	layout, err := w.layout()
	if err != nil {
		return nil, err
	}
	return w.processor.RenderViewport(w.img, layout, w.controller.Region()), nil
}

// Apply crops the source under the box, encodes it, passes the data URI to
// the apply callback and closes the widget.
func (w *Widget) Apply() (string, error) {
	if w.closed {
		return "", ErrClosed
	}
	w.controller.End()

	layout, err := w.layout()
	if err != nil {
		return "", err
	}
	region := w.controller.Region()
	uri, rect, err := w.processor.Crop(w.img, layout, region)
	if err != nil {
		return "", fmt.Errorf("failed to crop avatar: %w", err)
	}

	w.close()
	w.logger.Info("avatar applied",
		zap.Float64("x", rect.X),
		zap.Float64("y", rect.Y),
		zap.Float64("size", rect.Size),
		zap.Float64("scale", region.Scale),
		zap.Int("bytes", len(uri)))

	if w.onApply != nil {
		w.onApply(uri)
	}
	return uri, nil
}

// Cancel discards the crop, calls the cancel callback and closes the widget
func (w *Widget) Cancel() error {
	if w.closed {
		return ErrClosed
	}
	w.close()
	w.logger.Debug("crop widget cancelled")

	if w.onCancel != nil {
		w.onCancel()
	}
	return nil
}

// Acquire subscribes to page-wide pointer events for the current gesture
func (w *Widget) Acquire() {
	if w.unsubscribe != nil {
		return
	}
	w.unsubscribe = w.document.Subscribe(w.handleDocumentEvent)
}

// Release drops the page-wide subscription
func (w *Widget) Release() {
	if w.unsubscribe == nil {
		return
	}
	w.unsubscribe()
	w.unsubscribe = nil
}

func (w *Widget) handleDocumentEvent(e pointer.Event) {
	switch {
	case e.IsMove():
		w.controller.Move(w.tracker.Local(e))
	case e.IsEnd():
		w.controller.End()
	}
}

func (w *Widget) layout() (mapper.Layout, error) {
	return mapper.Contain(
		float64(w.source.NaturalWidth),
		float64(w.source.NaturalHeight),
		w.controller.Region().Scale,
		w.controller.Config().ViewportSize)
}

func (w *Widget) close() {
	w.controller.End()
	w.Release()
	w.closed = true
}

// CropFile is a convenience function that loads an image file, crops region
// from it and writes the avatar to outputPath in the configured format.
func CropFile(inputPath, outputPath string, region types.CropRegion, opts Options) (types.SourceRect, error) {
	loader := source.NewWithConfig(opts.Source)
	src, img, err := loader.LoadFile(inputPath)
	if err != nil {
		return types.SourceRect{}, fmt.Errorf("failed to load image: %w", err)
	}

	if err := cropper.ValidateRegion(region, opts.Cropper); err != nil {
		return types.SourceRect{}, fmt.Errorf("invalid crop region: %w", err)
	}

	processor, err := processing.NewProcessorWithOptions(opts.Output)
	if err != nil {
		return types.SourceRect{}, err
	}
	if opts.Logger != nil {
		processor.SetLogger(opts.Logger)
	}

	rect, layout, err := mapper.Map(src, region, opts.Cropper.ViewportSize)
	if err != nil {
		return types.SourceRect{}, err
	}
	out, err := processor.Rasterize(img, rect)
	if err != nil {
		return rect, fmt.Errorf("failed to rasterize crop: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return rect, fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	o := processor.Options()
	if err := processor.Encode(f, out, o.Format, o.Quality, o.Lossless); err != nil {
		return rect, fmt.Errorf("failed to encode avatar: %w", err)
	}

	if opts.Logger != nil {
		opts.Logger.Info("avatar written",
			zap.String("output", outputPath),
			zap.Float64("ratio", layout.Ratio),
			zap.Float64("size", rect.Size))
	}
	return rect, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
