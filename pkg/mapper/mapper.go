// Package mapper converts a crop region drawn over a contain-fitted image in a
// square viewport back into source-image pixel coordinates.
package mapper

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/avatar-cropper/pkg/types"
)

var ErrInvalidDimensions = errors.New("mapper: dimensions must be positive")

// Layout describes how a scaled source image is contain-fitted into the viewport
type Layout struct {
	ViewportSize    float64 `json:"viewportSize"`
	ScaledWidth     float64 `json:"scaledWidth"`
	ScaledHeight    float64 `json:"scaledHeight"`
	DisplayedWidth  float64 `json:"displayedWidth"`
	DisplayedHeight float64 `json:"displayedHeight"`
	OffsetX         float64 `json:"offsetX"`
	OffsetY         float64 `json:"offsetY"`
	// Ratio converts displayed pixels into scaled source pixels
	Ratio float64 `json:"ratio"`
}

// Contain computes the contain fit of a naturalW x naturalH image, zoomed by
// scale, inside a square viewport.
func Contain(naturalW, naturalH, scale, viewport float64) (Layout, error) {
	if !(naturalW > 0 && naturalH > 0 && scale > 0 && viewport > 0) ||
		math.IsInf(naturalW, 0) || math.IsInf(naturalH, 0) || math.IsInf(scale, 0) || math.IsInf(viewport, 0) {
		return Layout{}, fmt.Errorf("%w: %vx%v scale %v viewport %v", ErrInvalidDimensions, naturalW, naturalH, scale, viewport)
	}

	l := Layout{
		ViewportSize: viewport,
		ScaledWidth:  naturalW * scale,
		ScaledHeight: naturalH * scale,
	}

	if l.ScaledWidth > l.ScaledHeight {
		l.DisplayedWidth = viewport
		l.DisplayedHeight = l.ScaledHeight / l.ScaledWidth * viewport
	} else {
		l.DisplayedHeight = viewport
		l.DisplayedWidth = l.ScaledWidth / l.ScaledHeight * viewport
	}

	l.OffsetX = (viewport - l.DisplayedWidth) / 2
	l.OffsetY = (viewport - l.DisplayedHeight) / 2
	l.Ratio = l.ScaledWidth / l.DisplayedWidth

	return l, nil
}

// MapRegion maps a viewport crop region into source coordinates
func (l Layout) MapRegion(r types.CropRegion) types.SourceRect {
	return types.SourceRect{
		X:    (r.X - l.OffsetX) * l.Ratio,
		Y:    (r.Y - l.OffsetY) * l.Ratio,
		Size: r.Width * l.Ratio,
	}
}

// DisplayRect returns where the image is drawn inside the viewport, rounded
// to whole pixels.
func (l Layout) DisplayRect() image.Rectangle {
	x0 := int(math.Round(l.OffsetX))
	y0 := int(math.Round(l.OffsetY))
	return image.Rect(x0, y0,
		x0+int(math.Round(l.DisplayedWidth)),
		y0+int(math.Round(l.DisplayedHeight)))
}

// Map computes the layout for src at the region's scale and maps the region
func Map(src types.SourceImage, r types.CropRegion, viewport float64) (types.SourceRect, Layout, error) {
	l, err := Contain(float64(src.NaturalWidth), float64(src.NaturalHeight), r.Scale, viewport)
	if err != nil {
		return types.SourceRect{}, Layout{}, err
	}
	return l.MapRegion(r), l, nil
}

// Overflows reports whether rect samples outside a w x h image, which
// happens when the crop box covers letterbox padding.
func Overflows(rect types.SourceRect, w, h int) bool {
	const eps = 1e-6
	return rect.X < -eps || rect.Y < -eps ||
		rect.X+rect.Size > float64(w)+eps ||
		rect.Y+rect.Size > float64(h)+eps
}

// Rectangle rounds rect to whole pixels
func Rectangle(rect types.SourceRect) image.Rectangle {
	x0 := int(math.Round(rect.X))
	y0 := int(math.Round(rect.Y))
	x1 := int(math.Round(rect.X + rect.Size))
	y1 := int(math.Round(rect.Y + rect.Size))
	return image.Rect(x0, y0, x1, y1)
}

// Intersect returns the part of rect that lies inside a w x h image
func Intersect(rect types.SourceRect, w, h int) image.Rectangle {
	return Rectangle(rect).Intersect(image.Rect(0, 0, w, h))
}
