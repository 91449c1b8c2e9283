package diagnostics

import (
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/geometry"
	"github.com/ironsheep/leafmask/internal/region"
)

// OverlayOptions configures Overlay.
type OverlayOptions struct {
	// Tint colours mask foreground pixels; TintStrength is the blend factor
	// in [0, 1]. Zero strength leaves the image untouched.
	Tint         color.RGBA
	TintStrength float64

	// Labels draws each original hull's index next to its first vertex.
	Labels bool

	// Regions are outlined in their tag colour.
	Regions []region.Region

	// Grid draws coordinate lines every Grid pixels. Zero disables it.
	Grid       int
	GridLabels bool
}

// DefaultOverlayOptions tints the object green and labels hulls.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		Tint:         color.RGBA{0, 200, 83, 255},
		TintStrength: 0.45,
		Labels:       true,
	}
}

// Overlay draws a consolidation result on top of img.
//
// Foreground pixels of mask are tinted, every original hull is outlined in
// its classification colour and the reference hull in ReferenceColor.
// mask and res may be nil. img is not modified.
func Overlay(img image.Image, mask *image.Gray, res *consolidation.Result, opts OverlayOptions) *image.NRGBA {
	out := imaging.Clone(img)
	b := img.Bounds()
	// imaging.Clone rebases to (0,0); dx/dy map image coordinates back.
	dx, dy := b.Min.X, b.Min.Y

	if mask != nil && opts.TintStrength > 0 {
		inter := mask.Rect.Intersect(b)
		for y := inter.Min.Y; y < inter.Max.Y; y++ {
			for x := inter.Min.X; x < inter.Max.X; x++ {
				if mask.Pix[mask.PixOffset(x, y)] == 0 {
					continue
				}
				out.SetNRGBA(x-dx, y-dy, toNRGBA(blend(out.NRGBAAt(x-dx, y-dy), opts.Tint, opts.TintStrength)))
			}
		}
	}

	drawGrid(out, opts.Grid, GridColor, opts.GridLabels, dx, dy)

	for _, r := range opts.Regions {
		outlineRegion(out, r, dx, dy)
	}

	if res != nil {
		for i, h := range res.Original {
			c := ClassColor(consolidation.Outside)
			if i < len(res.OriginalClasses) {
				c = ClassColor(res.OriginalClasses[i])
			}
			outline(out, h.Polygon, c, dx, dy)
			if opts.Labels && len(h.Polygon) > 0 {
				p := h.Polygon[0]
				drawLabel(out, p.X-dx+2, p.Y-dy+2, strconv.Itoa(i), c, color.RGBA{0, 0, 0, 180})
			}
		}
		if res.Reference != nil {
			outline(out, res.Reference.Polygon, ReferenceColor, dx, dy)
		}
	}
	return out
}

func outline(img *image.NRGBA, p geometry.Polygon, c color.RGBA, dx, dy int) {
	n := len(p)
	if n == 0 {
		return
	}
	for i := range p {
		a, b := p[i], p[(i+1)%n]
		geometry.WalkLine(a.Sub(image.Pt(dx, dy)), b.Sub(image.Pt(dx, dy)), func(q image.Point) {
			img.Set(q.X, q.Y, c)
		})
	}
}

func outlineRegion(img *image.NRGBA, r region.Region, dx, dy int) {
	c := TagColor(r.Tag)
	if r.Shape == region.Rectangle {
		rc := r.Rect
		outline(img, geometry.Polygon{
			rc.Min, {rc.Max.X - 1, rc.Min.Y}, {rc.Max.X - 1, rc.Max.Y - 1}, {rc.Min.X, rc.Max.Y - 1},
		}, c, dx, dy)
		return
	}
	bb := r.Bounds()
	for y := bb.Min.Y; y < bb.Max.Y; y++ {
		for x := bb.Min.X; x < bb.Max.X; x++ {
			p := image.Pt(x, y)
			if !r.Contains(p) {
				continue
			}
			if !r.Contains(p.Add(image.Pt(1, 0))) || !r.Contains(p.Add(image.Pt(-1, 0))) ||
				!r.Contains(p.Add(image.Pt(0, 1))) || !r.Contains(p.Add(image.Pt(0, -1))) {
				img.Set(x-dx, y-dy, c)
			}
		}
	}
}

func toNRGBA(c color.RGBA) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
