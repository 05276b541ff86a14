package cropper

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/menta2k/avatar-cropper/pkg/types"
)

// Defaults matching the avatar forms
const (
	DefaultViewportSize = 400.0
	DefaultMinSize      = 50.0
	DefaultMinScale     = 0.5
	DefaultMaxScale     = 3.0
	DefaultBoxSize      = 200.0
	DefaultBoxFraction  = 0.6
	DefaultHandleSize   = 16.0
	regionEpsilon       = 1e-9
)

var (
	ErrGestureActive     = errors.New("cropper: gesture already in progress")
	ErrUnknownHandle     = errors.New("cropper: unknown resize handle")
	ErrInvalidScale      = errors.New("cropper: invalid scale")
	ErrRegionOutOfBounds = errors.New("cropper: region outside viewport")
	ErrRegionNotSquare   = errors.New("cropper: region is not square")
	ErrRegionTooSmall    = errors.New("cropper: region smaller than minimum size")
)

// Listener is acquired when a gesture starts and released when it ends. It
// is how a host attaches document-wide move/end tracking for the lifetime of
// a gesture only.
type Listener interface {
	Acquire()
	Release()
}

// Config holds the crop box geometry limits
type Config struct {
	ViewportSize float64
	MinSize      float64
	MinScale     float64
	MaxScale     float64
	// DefaultSize and DefaultFraction give the initial box size:
	// min(DefaultSize, DefaultFraction*ViewportSize).
	DefaultSize     float64
	DefaultFraction float64
	HandleSize      float64
}

// DefaultConfig returns the configuration used by the avatar forms
func DefaultConfig() Config {
	return Config{
		ViewportSize:    DefaultViewportSize,
		MinSize:         DefaultMinSize,
		MinScale:        DefaultMinScale,
		MaxScale:        DefaultMaxScale,
		DefaultSize:     DefaultBoxSize,
		DefaultFraction: DefaultBoxFraction,
		HandleSize:      DefaultHandleSize,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.ViewportSize <= 0 {
		return fmt.Errorf("viewport size must be positive, got %v", c.ViewportSize)
	}
	if c.MinSize <= 0 || c.MinSize > c.ViewportSize {
		return fmt.Errorf("min size must be in (0, %v], got %v", c.ViewportSize, c.MinSize)
	}
	if c.MinScale <= 0 || c.MaxScale < c.MinScale {
		return fmt.Errorf("scale range [%v, %v] is invalid", c.MinScale, c.MaxScale)
	}
	if c.DefaultSize <= 0 || c.DefaultFraction <= 0 || c.DefaultFraction > 1 {
		return fmt.Errorf("default box size %v / fraction %v is invalid", c.DefaultSize, c.DefaultFraction)
	}
	if c.HandleSize < 0 {
		return fmt.Errorf("handle size must not be negative")
	}
	return nil
}

// Controller is the crop box state machine: Idle, Dragging or Resizing over
// a square region constrained to a square viewport.
type Controller struct {
	config   Config
	region   types.CropRegion
	gesture  types.GestureSession
	listener Listener
	logger   *zap.Logger
}

// New creates a controller with the default configuration
func New() *Controller {
	c, _ := NewWithConfig(DefaultConfig())
	return c
}

// NewWithConfig creates a controller with custom limits
func NewWithConfig(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		config: config,
		logger: zap.NewNop(),
	}
	c.Reset()
	return c, nil
}

// SetListener sets the listener acquired for the duration of each gesture
func (c *Controller) SetListener(l Listener) {
	c.listener = l
}

// SetLogger sets the logger
func (c *Controller) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// Config returns the controller limits
func (c *Controller) Config() Config {
	return c.config
}

// Region returns the current crop region
func (c *Controller) Region() types.CropRegion {
	return c.region
}

// Gesture returns the current gesture session
func (c *Controller) Gesture() types.GestureSession {
	return c.gesture
}

// Phase returns the current state
func (c *Controller) Phase() types.GestureKind {
	return c.gesture.Kind
}

// DefaultRegion returns the centered initial region for cfg
func DefaultRegion(cfg Config) types.CropRegion {
	size := math.Min(cfg.DefaultSize, cfg.ViewportSize*cfg.DefaultFraction)
	size = math.Max(size, cfg.MinSize)
	offset := (cfg.ViewportSize - size) / 2
	return types.CropRegion{
		X:      offset,
		Y:      offset,
		Width:  size,
		Height: size,
		Scale:  1,
	}
}

// Reset restores the centered default region at scale 1 and ends any gesture
func (c *Controller) Reset() {
	c.End()
	c.region = DefaultRegion(c.config)
	c.region.Scale = clamp(1, c.config.MinScale, c.config.MaxScale)
}

// SetRegion replaces the region after validating it
func (c *Controller) SetRegion(r types.CropRegion) error {
	if err := ValidateRegion(r, c.config); err != nil {
		return err
	}
	c.region = r
	return nil
}

// ValidateRegion checks r against the viewport invariants in cfg
func ValidateRegion(r types.CropRegion, cfg Config) error {
	if math.Abs(r.Width-r.Height) > regionEpsilon {
		return fmt.Errorf("%w: %vx%v", ErrRegionNotSquare, r.Width, r.Height)
	}
	if r.Width < cfg.MinSize-regionEpsilon {
		return fmt.Errorf("%w: %v < %v", ErrRegionTooSmall, r.Width, cfg.MinSize)
	}
	if r.X < -regionEpsilon || r.Y < -regionEpsilon ||
		r.X+r.Width > cfg.ViewportSize+regionEpsilon ||
		r.Y+r.Height > cfg.ViewportSize+regionEpsilon {
		return fmt.Errorf("%w: (%v,%v) size %v in viewport %v", ErrRegionOutOfBounds, r.X, r.Y, r.Width, cfg.ViewportSize)
	}
	if r.Scale < cfg.MinScale || r.Scale > cfg.MaxScale || math.IsNaN(r.Scale) {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidScale, r.Scale, cfg.MinScale, cfg.MaxScale)
	}
	return nil
}

// HitTest returns the handle under p, or whether p is on the region body.
// Handles take precedence over the body.
func (c *Controller) HitTest(p types.Point) (types.Handle, bool) {
	half := c.config.HandleSize / 2
	for _, h := range types.Handles() {
		corner := c.region.Corner(h)
		if math.Abs(p.X-corner.X) <= half && math.Abs(p.Y-corner.Y) <= half {
			return h, true
		}
	}
	return types.HandleNone, c.region.Contains(p)
}

// PointerDown starts the gesture matching the position under p. It returns
// false when p is outside the region and its handles.
func (c *Controller) PointerDown(p types.Point) (bool, error) {
	h, hit := c.HitTest(p)
	if !hit {
		return false, nil
	}
	if h != types.HandleNone {
		return true, c.BeginResize(p, h)
	}
	return true, c.BeginDrag(p)
}

// BeginDrag moves Idle to Dragging, anchoring p relative to the region origin
func (c *Controller) BeginDrag(p types.Point) error {
	if c.gesture.Active() {
		return ErrGestureActive
	}
	c.gesture = types.GestureSession{
		Kind:   types.GestureDragging,
		Anchor: p.Sub(c.region.TopLeft()),
	}
	c.acquire()
	c.logger.Debug("crop drag started", zap.Float64("x", p.X), zap.Float64("y", p.Y))
	return nil
}

// BeginResize moves Idle to Resizing on the given corner handle
func (c *Controller) BeginResize(p types.Point, h types.Handle) error {
	if c.gesture.Active() {
		return ErrGestureActive
	}
	if _, err := types.ParseHandle(string(h)); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownHandle, h)
	}
	c.gesture = types.GestureSession{
		Kind:   types.GestureResizing,
		Anchor: p,
		Handle: h,
	}
	c.acquire()
	c.logger.Debug("crop resize started", zap.String("handle", string(h)))
	return nil
}

// Move applies a pointer move to the active gesture. It is a no-op when idle.
func (c *Controller) Move(p types.Point) {
	switch c.gesture.Kind {
	case types.GestureDragging:
		c.drag(p)
	case types.GestureResizing:
		c.resize(p)
	}
}

// End returns to Idle, leaving the region where the last move put it
func (c *Controller) End() {
	if !c.gesture.Active() {
		return
	}
	kind := c.gesture.Kind
	c.gesture = types.GestureSession{}
	if c.listener != nil {
		c.listener.Release()
	}
	c.logger.Debug("crop gesture ended",
		zap.Stringer("gesture", kind),
		zap.Float64("x", c.region.X),
		zap.Float64("y", c.region.Y),
		zap.Float64("size", c.region.Width))
}

// SetScale sets the zoom applied to the displayed image, clamped to the
// configured range. The region itself does not move.
func (c *Controller) SetScale(scale float64) (float64, error) {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return c.region.Scale, fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}
	c.region.Scale = clamp(scale, c.config.MinScale, c.config.MaxScale)
	return c.region.Scale, nil
}

func (c *Controller) acquire() {
	if c.listener != nil {
		c.listener.Acquire()
	}
}

func (c *Controller) drag(p types.Point) {
	vp := c.config.ViewportSize
	c.region.X = clamp(p.X-c.gesture.Anchor.X, 0, vp-c.region.Width)
	c.region.Y = clamp(p.Y-c.gesture.Anchor.Y, 0, vp-c.region.Height)
}

// resize grows or shrinks the square from the dragged corner, keeping the
// diagonally opposite corner fixed. Deltas are measured from the previous
// sample, so the anchor follows the pointer.
func (c *Controller) resize(p types.Point) {
	dx := p.X - c.gesture.Anchor.X
	dy := p.Y - c.gesture.Anchor.Y
	c.gesture.Anchor = p

	r := c.region
	vp := c.config.ViewportSize
	minSize := c.config.MinSize
	old := r.Width

	switch c.gesture.Handle {
	case types.HandleSE:
		size := boundedSize(old+math.Min(dx, dy), minSize, math.Min(vp-r.X, vp-r.Y))
		r.Width, r.Height = size, size
	case types.HandleSW:
		size := boundedSize(old+math.Min(-dx, dy), minSize, math.Min(r.X+old, vp-r.Y))
		r.Width, r.Height = size, size
		r.X = r.X + old - size
	case types.HandleNE:
		size := boundedSize(old+math.Min(dx, -dy), minSize, math.Min(vp-r.X, r.Y+old))
		r.Width, r.Height = size, size
		r.Y = r.Y + old - size
	case types.HandleNW:
		size := boundedSize(old+math.Min(-dx, -dy), minSize, math.Min(r.X+old, r.Y+old))
		r.Width, r.Height = size, size
		r.X = r.X + old - size
		r.Y = r.Y + old - size
	}

	c.region = r
}

// boundedSize applies the upper bound first and the minimum last, so the
// minimum wins when the two conflict.
func boundedSize(v, minSize, maxSize float64) float64 {
	return math.Max(minSize, math.Min(maxSize, v))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
