package types

import "fmt"

// Point is a position in page or viewport pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p-q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// CropRegion is the square selection box in viewport pixels plus the zoom
// applied to the displayed source image underneath it.
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// TopLeft returns the region origin
func (r CropRegion) TopLeft() Point {
	return Point{X: r.X, Y: r.Y}
}

// Contains reports whether p lies inside the region
func (r CropRegion) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Corner returns the viewport position of the given corner
func (r CropRegion) Corner(h Handle) Point {
	switch h {
	case HandleNE:
		return Point{X: r.X + r.Width, Y: r.Y}
	case HandleSW:
		return Point{X: r.X, Y: r.Y + r.Height}
	case HandleSE:
		return Point{X: r.X + r.Width, Y: r.Y + r.Height}
	default:
		return Point{X: r.X, Y: r.Y}
	}
}

// Handle identifies a corner resize handle
type Handle string

// Corner handles
const (
	HandleNone Handle = ""
	HandleNW   Handle = "nw"
	HandleNE   Handle = "ne"
	HandleSW   Handle = "sw"
	HandleSE   Handle = "se"
)

// Handles lists the corner handles in hit-test order
func Handles() []Handle {
	return []Handle{HandleNW, HandleNE, HandleSW, HandleSE}
}

// ParseHandle converts a handle name into a Handle
func ParseHandle(s string) (Handle, error) {
	switch h := Handle(s); h {
	case HandleNW, HandleNE, HandleSW, HandleSE:
		return h, nil
	}
	return HandleNone, fmt.Errorf("unknown resize handle %q", s)
}

// GestureKind is the state of the crop box state machine
type GestureKind int

const (
	GestureNone GestureKind = iota
	GestureDragging
	GestureResizing
)

func (k GestureKind) String() string {
	switch k {
	case GestureDragging:
		return "dragging"
	case GestureResizing:
		return "resizing"
	default:
		return "none"
	}
}

// GestureSession tracks one drag or resize between pointer-down and pointer-up.
// Anchor is the pointer-to-region offset while dragging and the last pointer
// position while resizing.
type GestureSession struct {
	Kind   GestureKind
	Anchor Point
	Handle Handle
}

// Active reports whether a gesture is in progress
func (g GestureSession) Active() bool {
	return g.Kind != GestureNone
}

// SourceImage is the user-selected raw image
type SourceImage struct {
	NaturalWidth  int    `json:"naturalWidth"`
	NaturalHeight int    `json:"naturalHeight"`
	MIME          string `json:"mime"`
	Size          int64  `json:"size"`
	DataURI       string `json:"-"`
}

// SourceRect is a square crop area in source-image pixels. X and Y may be
// negative or exceed the image when the crop box sits over letterbox padding.
type SourceRect struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}
