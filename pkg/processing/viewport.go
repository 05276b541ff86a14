package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/avatar-cropper/pkg/mapper"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// Viewport colors
var (
	viewportBackground = color.NRGBA{17, 24, 39, 255}
	shadeColor         = color.NRGBA{0, 0, 0, 128}
	boxColor           = color.NRGBA{255, 255, 255, 255}
	handleColor        = color.NRGBA{59, 130, 246, 255}
)

const handleSize = 12

// RenderViewport renders what the crop widget shows: the source image
// contain-fitted into the viewport and zoomed by region.Scale around the
// viewport center, the area outside the crop box dimmed, the box outline and
// its four corner handles.
func (p *Processor) RenderViewport(src image.Image, layout mapper.Layout, region types.CropRegion) *image.NRGBA {
	vp := int(math.Round(layout.ViewportSize))
	canvas := imaging.New(vp, vp, viewportBackground)

	drawZoomed(canvas, src, layout, region.Scale)

	box := image.Rect(
		int(math.Round(region.X)),
		int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)),
		int(math.Round(region.Y+region.Height)),
	)

	shadeOutside(canvas, box, shadeColor)

	stroke := int(math.Max(1, 0.005*float64(vp)))
	drawBox(canvas, box, boxColor, stroke)

	hs := handleSize / 2
	for _, h := range types.Handles() {
		c := region.Corner(h)
		cx, cy := int(math.Round(c.X)), int(math.Round(c.Y))
		fillRect(canvas, image.Rect(cx-hs, cy-hs, cx+hs, cy+hs), handleColor)
	}

	return canvas
}

// drawZoomed draws src at its displayed size times scale, centered on the
// viewport and clipped to it.
func drawZoomed(canvas *image.NRGBA, src image.Image, layout mapper.Layout, scale float64) {
	b := src.Bounds()
	if b.Empty() || !(layout.DisplayedWidth > 0) {
		return
	}
	if !(scale > 0) {
		scale = 1
	}

	k := layout.DisplayedWidth * scale / float64(b.Dx())
	center := layout.ViewportSize / 2
	left := center - float64(b.Dx())*k/2
	top := center - float64(b.Dy())*k/2

	s2d := f64.Aff3{
		k, 0, left - float64(b.Min.X)*k,
		0, k, top - float64(b.Min.Y)*k,
	}
	draw.CatmullRom.Transform(canvas, s2d, src, b, draw.Over, nil)
}

func shadeOutside(img *image.NRGBA, box image.Rectangle, c color.NRGBA) {
	b := img.Bounds()
	box = box.Intersect(b)
	shade := image.NewUniform(c)
	for _, r := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, box.Min.Y),
		image.Rect(b.Min.X, box.Max.Y, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, box.Min.Y, box.Min.X, box.Max.Y),
		image.Rect(box.Max.X, box.Min.Y, b.Max.X, box.Max.Y),
	} {
		draw.Draw(img, r.Intersect(b), shade, image.Point{}, draw.Over)
	}
}

func drawBox(img *image.NRGBA, box image.Rectangle, c color.NRGBA, stroke int) {
	fillRect(img, image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+stroke), c)
	fillRect(img, image.Rect(box.Min.X, box.Max.Y-stroke, box.Max.X, box.Max.Y), c)
	fillRect(img, image.Rect(box.Min.X, box.Min.Y, box.Min.X+stroke, box.Max.Y), c)
	fillRect(img, image.Rect(box.Max.X-stroke, box.Min.Y, box.Max.X, box.Max.Y), c)
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}
