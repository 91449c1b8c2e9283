// Package morph provides binary morphology on masks: erode, dilate, open
// and close, each with a kernel size, a kernel shape, optional restricting
// regions and a repetition count.
//
// Rectangular kernels run through bild's spatial filters; elliptical and
// cross kernels use a direct min/max scan since bild only offers a square
// window.
package morph

import (
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/leafmask/internal/region"
)

// Op is a morphology operation.
type Op int

const (
	Erode Op = iota
	Dilate
	Open
	Close
)

var opNames = [...]string{Erode: "erode", Dilate: "dilate", Open: "open", Close: "close"}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// ParseOp converts "erode", "dilate", "open" or "close" into an Op.
func ParseOp(s string) (Op, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range opNames {
		if name == key {
			return Op(i), nil
		}
	}
	return Erode, fmt.Errorf("unknown morphology operation: %s", s)
}

// OpForTag maps a morphology region tag to its operation.
func OpForTag(t region.Tag) (Op, bool) {
	switch t {
	case region.TagErode:
		return Erode, true
	case region.TagDilate:
		return Dilate, true
	case region.TagOpen:
		return Open, true
	case region.TagClose:
		return Close, true
	}
	return Erode, false
}

// KernelShape is the structuring element shape.
type KernelShape int

const (
	KernelRect KernelShape = iota
	KernelEllipse
	KernelCross
)

var shapeNames = [...]string{KernelRect: "rect", KernelEllipse: "ellipse", KernelCross: "cross"}

func (k KernelShape) String() string {
	if k < 0 || int(k) >= len(shapeNames) {
		return fmt.Sprintf("kernel(%d)", int(k))
	}
	return shapeNames[k]
}

// ParseKernelShape converts "rect", "ellipse" or "cross" into a KernelShape.
// An empty string yields KernelRect.
func ParseKernelShape(s string) (KernelShape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rect", "rectangle", "square":
		return KernelRect, nil
	case "ellipse", "circle":
		return KernelEllipse, nil
	case "cross":
		return KernelCross, nil
	}
	return KernelRect, fmt.Errorf("unknown kernel shape: %s", s)
}

type kernel struct {
	size    int
	shape   KernelShape
	offsets []image.Point
}

func newKernel(size int, shape KernelShape) kernel {
	k := kernel{size: size, shape: shape}
	if shape == KernelRect {
		return k
	}

	r := size / 2
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			switch shape {
			case KernelCross:
				if dx != 0 && dy != 0 {
					continue
				}
			case KernelEllipse:
				if r > 0 && dx*dx+dy*dy > r*r {
					continue
				}
			}
			k.offsets = append(k.offsets, image.Pt(dx, dy))
		}
	}
	return k
}

// strategies is the fixed operation table. Each entry applies its
// operation n times.
var strategies = [...]func(m *image.Gray, k kernel, n int) *image.Gray{
	Erode:  func(m *image.Gray, k kernel, n int) *image.Gray { return repeat(m, k, n, false) },
	Dilate: func(m *image.Gray, k kernel, n int) *image.Gray { return repeat(m, k, n, true) },
	Open: func(m *image.Gray, k kernel, n int) *image.Gray {
		return repeat(repeat(m, k, n, false), k, n, true)
	},
	Close: func(m *image.Gray, k kernel, n int) *image.Gray {
		return repeat(repeat(m, k, n, true), k, n, false)
	},
}

// Apply runs op on mask and returns a new mask with the same bounds.
//
// Parameters:
//   - size: kernel width in pixels. Even sizes are rounded up to the next odd
//     size; sizes below 1 return an unmodified copy.
//   - shape: structuring element shape.
//   - regions: when non-empty, only pixels inside at least one region take
//     the processed value; every other pixel keeps its original value.
//   - iterations: repetition count, at least 1.
func Apply(mask *image.Gray, op Op, size int, shape KernelShape, regions []region.Region, iterations int) *image.Gray {
	if size < 1 || op < 0 || int(op) >= len(strategies) {
		return clone(mask)
	}
	if size%2 == 0 {
		size++
	}
	if iterations < 1 {
		iterations = 1
	}

	src := atOrigin(mask)
	out := strategies[op](src, newKernel(size, shape), iterations)
	out.Rect = mask.Rect

	if len(regions) > 0 {
		restrict(out, mask, regions)
	}
	return out
}

// Grow dilates the mask by amount pixels, or erodes it by -amount when
// amount is negative, using a (2|amount|+1) kernel.
func Grow(mask *image.Gray, amount int, shape KernelShape) *image.Gray {
	switch {
	case amount > 0:
		return Apply(mask, Dilate, 2*amount+1, shape, nil, 1)
	case amount < 0:
		return Apply(mask, Erode, -2*amount+1, shape, nil, 1)
	}
	return clone(mask)
}

func repeat(m *image.Gray, k kernel, n int, dilate bool) *image.Gray {
	out := m
	for i := 0; i < n; i++ {
		if k.shape == KernelRect {
			out = rectPass(out, k.size, dilate)
		} else {
			out = scanPass(out, k.offsets, dilate)
		}
	}
	if out == m {
		return clone(m)
	}
	return out
}

// rectPass uses bild's square-window min/max filter.
func rectPass(m *image.Gray, size int, dilate bool) *image.Gray {
	radius := float64(size-1) / 2
	if dilate {
		return fromRGBA(effect.Dilate(m, radius))
	}
	return fromRGBA(effect.Erode(m, radius))
}

func fromRGBA(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = src.Pix[y*src.Stride+x*4]
		}
	}
	return dst
}

// scanPass computes the min (erode) or max (dilate) over the kernel offsets.
// Neighbours outside the mask are ignored.
func scanPass(m *image.Gray, offsets []image.Point, dilate bool) *image.Gray {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := m.Pix[y*m.Stride+x]
			for _, o := range offsets {
				nx, ny := x+o.X, y+o.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				nv := m.Pix[ny*m.Stride+nx]
				if dilate && nv > v || !dilate && nv < v {
					v = nv
				}
			}
			dst.Pix[y*dst.Stride+x] = v
		}
	}
	return dst
}

func restrict(out, orig *image.Gray, regions []region.Region) {
	b := orig.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			inside := false
			for _, r := range regions {
				if r.Contains(p) {
					inside = true
					break
				}
			}
			if !inside {
				out.SetGray(x, y, orig.GrayAt(x, y))
			}
		}
	}
}

// atOrigin returns a view of m translated so that its bounds start at (0,0).
func atOrigin(m *image.Gray) *image.Gray {
	if m.Rect.Min == (image.Point{}) {
		return m
	}
	return &image.Gray{Pix: m.Pix, Stride: m.Stride, Rect: image.Rect(0, 0, m.Rect.Dx(), m.Rect.Dy())}
}

func clone(m *image.Gray) *image.Gray {
	out := image.NewGray(m.Rect)
	for y := 0; y < m.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+m.Rect.Dx()], m.Pix[y*m.Stride:y*m.Stride+m.Rect.Dx()])
	}
	return out
}
