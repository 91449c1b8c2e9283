package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/leafmask/internal/region"
)

// Foreground and Background are the two values written into masks.
var (
	Foreground = color.Gray{Y: 255}
	Background = color.Gray{Y: 0}
)

// NewMask creates an all-background mask.
func NewMask(bounds image.Rectangle) *image.Gray {
	return image.NewGray(bounds)
}

// FullMask creates an all-foreground mask.
func FullMask(bounds image.Rectangle) *image.Gray {
	m := image.NewGray(bounds)
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	return m
}

// ToMask binarises any image: every pixel that is not (near) black becomes
// foreground. The result keeps the source bounds.
func ToMask(img image.Image) *image.Gray {
	out := segment.Threshold(img, 1)
	out.Rect = img.Bounds()
	return out
}

// CloneMask returns an independent copy of m.
func CloneMask(m *image.Gray) *image.Gray {
	out := image.NewGray(m.Rect)
	w := m.Rect.Dx()
	for y := 0; y < m.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], m.Pix[y*m.Stride:y*m.Stride+w])
	}
	return out
}

// CountNonZero returns the number of foreground pixels.
func CountNonZero(m *image.Gray) int {
	n := 0
	w := m.Rect.Dx()
	for y := 0; y < m.Rect.Dy(); y++ {
		for _, v := range m.Pix[y*m.Stride : y*m.Stride+w] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// And returns the intersection of two masks over a's bounds. Pixels of a
// outside b count as background.
func And(a, b *image.Gray) *image.Gray {
	return combine(a, b, func(x, y bool) bool { return x && y })
}

// Or returns the union of two masks over a's bounds.
func Or(a, b *image.Gray) *image.Gray {
	return combine(a, b, func(x, y bool) bool { return x || y })
}

func combine(a, b *image.Gray, fn func(x, y bool) bool) *image.Gray {
	out := image.NewGray(a.Rect)
	for y := a.Rect.Min.Y; y < a.Rect.Max.Y; y++ {
		for x := a.Rect.Min.X; x < a.Rect.Max.X; x++ {
			av := a.Pix[a.PixOffset(x, y)] != 0
			bv := image.Pt(x, y).In(b.Rect) && b.Pix[b.PixOffset(x, y)] != 0
			if fn(av, bv) {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}

// Equal reports whether two masks have the same bounds and foreground.
func Equal(a, b *image.Gray) bool {
	if a.Rect != b.Rect {
		return false
	}
	for y := a.Rect.Min.Y; y < a.Rect.Max.Y; y++ {
		for x := a.Rect.Min.X; x < a.Rect.Max.X; x++ {
			if (a.Pix[a.PixOffset(x, y)] != 0) != (b.Pix[b.PixOffset(x, y)] != 0) {
				return false
			}
		}
	}
	return true
}

// FillHoles returns a copy of m where every background pixel not
// 4-connected to the border becomes foreground.
func FillHoles(m *image.Gray) *image.Gray {
	b := m.Rect
	outside := make([]bool, b.Dx()*b.Dy())
	var stack []image.Point
	push := func(x, y int) {
		if x < b.Min.X || y < b.Min.Y || x >= b.Max.X || y >= b.Max.Y {
			return
		}
		i := (y-b.Min.Y)*b.Dx() + (x - b.Min.X)
		if outside[i] || m.Pix[m.PixOffset(x, y)] != 0 {
			return
		}
		outside[i] = true
		stack = append(stack, image.Pt(x, y))
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		push(x, b.Min.Y)
		push(x, b.Max.Y-1)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		push(b.Min.X, y)
		push(b.Max.X-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}

	out := NewMask(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !outside[(y-b.Min.Y)*b.Dx()+(x-b.Min.X)] {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}

// FillRegion sets every pixel of m inside r to v.
func FillRegion(m *image.Gray, r region.Region, v color.Gray) {
	b := r.Bounds().Intersect(m.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r.Contains(image.Pt(x, y)) {
				m.Pix[m.PixOffset(x, y)] = v.Y
			}
		}
	}
}

// ClearRegion sets every pixel of m inside r to background.
func ClearRegion(m *image.Gray, r region.Region) {
	FillRegion(m, r, Background)
}

// RegionMask rasterises the union of regions over bounds.
func RegionMask(bounds image.Rectangle, regions []region.Region) *image.Gray {
	m := NewMask(bounds)
	for _, r := range regions {
		FillRegion(m, r, Foreground)
	}
	return m
}

// KeepRegions returns m restricted to the union of regions.
func KeepRegions(m *image.Gray, regions []region.Region) *image.Gray {
	return And(m, RegionMask(m.Rect, regions))
}

// CountInRegion returns the number of foreground pixels of m inside r.
func CountInRegion(m *image.Gray, r region.Region) int {
	n := 0
	b := r.Bounds().Intersect(m.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] != 0 && r.Contains(image.Pt(x, y)) {
				n++
			}
		}
	}
	return n
}

// MaskToRGBA renders a mask as an opaque black and white image.
func MaskToRGBA(m *image.Gray) *image.RGBA {
	out := image.NewRGBA(m.Rect)
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
			v := m.Pix[m.PixOffset(x, y)]
			if v != 0 {
				v = 255
			}
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// ApplyMask returns a copy of img with every background pixel of m painted
// black.
func ApplyMask(img image.Image, m *image.Gray) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			if p.In(m.Rect) && m.Pix[m.PixOffset(x, y)] != 0 {
				out.Set(x, y, img.At(x, y))
			} else {
				out.SetRGBA(x, y, color.RGBA{A: 255})
			}
		}
	}
	return out
}
