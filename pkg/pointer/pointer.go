// Package pointer normalizes mouse and touch input into a single position
// abstraction and provides the document-level listener registry used while a
// crop gesture is in progress.
package pointer

import (
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// EventType identifies the kind of input event
type EventType int

const (
	MouseDown EventType = iota
	MouseMove
	MouseUp
	TouchStart
	TouchMove
	TouchEnd
	ContextMenu
)

func (t EventType) String() string {
	switch t {
	case MouseDown:
		return "mousedown"
	case MouseMove:
		return "mousemove"
	case MouseUp:
		return "mouseup"
	case TouchStart:
		return "touchstart"
	case TouchMove:
		return "touchmove"
	case TouchEnd:
		return "touchend"
	case ContextMenu:
		return "contextmenu"
	default:
		return "unknown"
	}
}

// Event is a mouse or touch event in page coordinates
type Event struct {
	Type    EventType
	ClientX float64
	ClientY float64
	Touches []types.Point
}

// IsStart reports whether the event begins a gesture
func (e Event) IsStart() bool {
	return e.Type == MouseDown || e.Type == TouchStart
}

// IsMove reports whether the event moves the pointer
func (e Event) IsMove() bool {
	return e.Type == MouseMove || e.Type == TouchMove
}

// IsEnd reports whether the event ends a gesture. A context menu (long press)
// ends the gesture as well.
func (e Event) IsEnd() bool {
	return e.Type == MouseUp || e.Type == TouchEnd || e.Type == ContextMenu
}

// Mouse builds a mouse event
func Mouse(t EventType, x, y float64) Event {
	return Event{Type: t, ClientX: x, ClientY: y}
}

// Touch builds a touch event with the given touch points
func Touch(t EventType, touches ...types.Point) Event {
	return Event{Type: t, Touches: touches}
}

// Position returns the event position in page coordinates: the first touch
// point for touch events, the client coordinates otherwise.
func Position(e Event) types.Point {
	if len(e.Touches) > 0 {
		return e.Touches[0]
	}
	return types.Point{X: e.ClientX, Y: e.ClientY}
}

// Tracker converts page positions into viewport-local positions
type Tracker struct {
	// Origin is the page position of the viewport's top-left corner
	Origin types.Point
}

// NewTracker creates a tracker for a viewport placed at origin
func NewTracker(origin types.Point) *Tracker {
	return &Tracker{Origin: origin}
}

// Local returns the event position relative to the viewport
func (t *Tracker) Local(e Event) types.Point {
	return Position(e).Sub(t.Origin)
}
