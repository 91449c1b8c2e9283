package geometry

import (
	"image"
)

// Contour is one traced boundary of a mask.
type Contour struct {
	// Points is the closed boundary in clockwise order (y pointing down).
	// The closing edge from the last point back to the first is implicit.
	Points Polygon

	// Parent is the index of the enclosing outer contour for holes, or -1.
	Parent int

	// Hole reports whether the contour bounds a background hole.
	Hole bool

	// Label is the connected-component label of an outer contour
	// (1-based). Holes carry the label of their parent component.
	Label int

	// PixelCount is the number of pixels of the component (or hole).
	PixelCount int
}

// ContourSet is the result of FindContours.
//
// Outer contours come first, one per 8-connected foreground component in
// raster order of their top-left pixel; contour i has Label i+1. Holes
// follow, each pointing at its parent through Parent.
type ContourSet struct {
	Contours []Contour

	// Labels holds the component label of every pixel (0 = background),
	// row-major over Bounds.
	Labels []int32

	Bounds image.Rectangle
}

// LabelAt returns the component label at p, or 0 for background and points
// outside the mask.
func (cs *ContourSet) LabelAt(p image.Point) int {
	if !p.In(cs.Bounds) {
		return 0
	}
	w := cs.Bounds.Dx()
	return int(cs.Labels[(p.Y-cs.Bounds.Min.Y)*w+(p.X-cs.Bounds.Min.X)])
}

// Outer returns the outer contours only.
func (cs *ContourSet) Outer() []Contour {
	out := make([]Contour, 0, len(cs.Contours))
	for _, c := range cs.Contours {
		if !c.Hole {
			out = append(out, c)
		}
	}
	return out
}

// Moore neighbourhood in clockwise order for a y-down raster:
// E, SE, S, SW, W, NW, N, NE.
var mooreDirs = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const dirWest = 4

// FindContours labels the foreground of mask and traces the boundary of
// every component and every enclosed hole.
//
// Foreground components use 8-connectivity, holes use 4-connectivity so
// that the two never leak through each other's diagonals. A background
// region counts as a hole only if it does not touch the mask border.
//
// Boundaries are traced with Moore-neighbour tracing starting at the first
// pixel of the region in raster order. A single-pixel region yields a
// one-point contour.
func FindContours(mask *image.Gray) *ContourSet {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	cs := &ContourSet{Bounds: b, Labels: make([]int32, w*h)}
	if w == 0 || h == 0 {
		return cs
	}

	fg := func(x, y int) bool {
		return mask.Pix[(y-b.Min.Y)*mask.Stride+(x-b.Min.X)] != 0
	}

	// Foreground components.
	var starts []image.Point
	var counts []int
	label := int32(0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if cs.Labels[y*w+x] != 0 || !fg(x+b.Min.X, y+b.Min.Y) {
				continue
			}
			label++
			n := labelRegion(cs.Labels, w, h, x, y, label, true, func(px, py int) bool {
				return fg(px+b.Min.X, py+b.Min.Y)
			})
			starts = append(starts, image.Pt(x, y))
			counts = append(counts, n)
		}
	}

	for i, s := range starts {
		lbl := int32(i + 1)
		pts := traceBoundary(s, w, h, func(px, py int) bool {
			return cs.Labels[py*w+px] == lbl
		})
		cs.Contours = append(cs.Contours, Contour{
			Points:     offset(pts, b.Min),
			Parent:     -1,
			Label:      i + 1,
			PixelCount: counts[i],
		})
	}

	// Background regions.
	bg := make([]int32, w*h)
	hole := int32(0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if cs.Labels[y*w+x] != 0 || bg[y*w+x] != 0 {
				continue
			}
			hole++
			id := hole
			touches := false
			n := labelRegion(bg, w, h, x, y, id, false, func(px, py int) bool {
				if cs.Labels[py*w+px] != 0 {
					return false
				}
				if px == 0 || py == 0 || px == w-1 || py == h-1 {
					touches = true
				}
				return true
			})
			if touches || x == 0 {
				continue
			}

			// The first raster pixel of a hole has a foreground left neighbour.
			parent := int(cs.Labels[y*w+x-1])
			pts := traceBoundary(image.Pt(x, y), w, h, func(px, py int) bool {
				return bg[py*w+px] == id
			})
			cs.Contours = append(cs.Contours, Contour{
				Points:     offset(pts, b.Min),
				Parent:     parent - 1,
				Hole:       true,
				Label:      parent,
				PixelCount: n,
			})
		}
	}

	return cs
}

// labelRegion flood-fills the region containing (startX, startY) with id.
//
// Uses an explicit stack rather than recursion so large regions cannot
// overflow the goroutine stack. Returns the number of labelled pixels.
func labelRegion(labels []int32, w, h, startX, startY int, id int32, eight bool, inside func(x, y int) bool) int {
	stack := []image.Point{{X: startX, Y: startY}}
	n := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= w || p.Y < 0 || p.Y >= h {
			continue
		}
		if labels[p.Y*w+p.X] != 0 || !inside(p.X, p.Y) {
			continue
		}

		labels[p.Y*w+p.X] = id
		n++

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if !eight && dx != 0 && dy != 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}

	return n
}

// traceBoundary runs Moore-neighbour tracing around the region containing
// start. start must be the region's first pixel in raster order, so its
// west neighbour is known to be outside.
func traceBoundary(start image.Point, w, h int, member func(x, y int) bool) Polygon {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.X < w && p.Y >= 0 && p.Y < h && member(p.X, p.Y)
	}

	contour := Polygon{start}
	cur, back := start, dirWest
	var first image.Point
	haveFirst := false

	// Every boundary pixel can be entered from at most 8 directions.
	limit := 8*w*h + 8
	for i := 0; i < limit; i++ {
		next, nb, ok := mooreStep(cur, back, inside)
		if !ok {
			break
		}
		if haveFirst && cur == start && next == first {
			break
		}
		if !haveFirst {
			first, haveFirst = next, true
		}
		contour = append(contour, next)
		cur, back = next, nb
	}

	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}

// mooreStep finds the next boundary pixel clockwise from the backtrack
// direction. It returns the pixel, the backtrack direction seen from it and
// false if cur has no neighbours inside the region.
func mooreStep(cur image.Point, back int, inside func(image.Point) bool) (image.Point, int, bool) {
	for k := 1; k <= 8; k++ {
		p := cur.Add(mooreDirs[(back+k)%8])
		if inside(p) {
			prev := cur.Add(mooreDirs[(back+k-1)%8])
			return p, dirIndex(prev.Sub(p)), true
		}
	}
	return image.Point{}, 0, false
}

func dirIndex(d image.Point) int {
	for i, m := range mooreDirs {
		if m == d {
			return i
		}
	}
	return dirWest
}

func offset(pts Polygon, o image.Point) Polygon {
	if o == (image.Point{}) {
		return pts
	}
	for i := range pts {
		pts[i] = pts[i].Add(o)
	}
	return pts
}
