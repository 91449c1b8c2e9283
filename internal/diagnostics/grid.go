package diagnostics

import (
	"image"
	"image/color"
	"strconv"
)

// GridColor is the default colour of coordinate grid lines, blended into
// the image at gridStrength.
var GridColor = color.RGBA{255, 255, 255, 255}

const gridStrength = 0.45

// drawGrid draws lines every spacing pixels of image coordinates, labelled
// with their coordinate along the top and left edges. dx, dy is the image
// origin in img.
func drawGrid(img *image.NRGBA, spacing int, c color.RGBA, labels bool, dx, dy int) {
	if spacing <= 0 {
		return
	}
	b := img.Bounds()
	first := func(origin int) int {
		// First multiple of spacing at or after origin, in image coordinates.
		m := origin % spacing
		if m < 0 {
			m += spacing
		}
		if m == 0 {
			return origin
		}
		return origin + spacing - m
	}

	for x := first(dx); x-dx < b.Max.X; x += spacing {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.SetNRGBA(x-dx, y, toNRGBA(blend(img.NRGBAAt(x-dx, y), c, gridStrength)))
		}
		if labels {
			drawLabel(img, x-dx+2, 2, strconv.Itoa(x), color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
		}
	}
	for y := first(dy); y-dy < b.Max.Y; y += spacing {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y-dy, toNRGBA(blend(img.NRGBAAt(x, y-dy), c, gridStrength)))
		}
		if labels {
			drawLabel(img, 2, y-dy+2, strconv.Itoa(y), color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
		}
	}
}
