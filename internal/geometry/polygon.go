package geometry

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// Polygon is a closed sequence of pixel-center vertices. The edge from the
// last vertex back to the first is implicit.
type Polygon []image.Point

// DefaultSimplifyRatio is the simplification tolerance as a fraction of the
// polygon perimeter.
const DefaultSimplifyRatio = 0.001

var white = color.Gray{Y: 255}

// onEdgeEpsilon is the distance below which a point counts as lying on an edge.
const onEdgeEpsilon = 1e-9

// Clone returns a copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Perimeter returns the length of the closed polygon.
func Perimeter(p Polygon) float64 {
	if len(p) < 2 {
		return 0
	}
	total := 0.0
	for i := range p {
		j := (i + 1) % len(p)
		total += dist(p[i], p[j])
	}
	return total
}

// SimplifyRelative simplifies p with a tolerance of ratio times its perimeter.
func SimplifyRelative(p Polygon, ratio float64) Polygon {
	return Simplify(p, ratio*Perimeter(p))
}

// Simplify reduces the vertex count of a closed polygon with the
// Douglas-Peucker algorithm.
//
// The polygon is split at its first vertex and the vertex farthest from it;
// each half is simplified independently so the result stays closed. Vertices
// farther than epsilon from the simplified outline are kept.
func Simplify(p Polygon, epsilon float64) Polygon {
	n := len(p)
	if n <= 3 || epsilon <= 0 {
		return p.Clone()
	}

	far, best := 0, -1.0
	for i, q := range p {
		if d := dist(q, p[0]); d > best {
			far, best = i, d
		}
	}
	if far == 0 {
		return Polygon{p[0]}
	}

	ext := make(Polygon, n+1)
	copy(ext, p)
	ext[n] = p[0]

	keep := make([]bool, n+1)
	keep[0], keep[far], keep[n] = true, true, true
	markDouglasPeucker(ext, 0, far, epsilon, keep)
	markDouglasPeucker(ext, far, n, epsilon, keep)

	out := make(Polygon, 0, n)
	for i := 0; i < n; i++ {
		if keep[i] {
			out = append(out, p[i])
		}
	}
	return out
}

func markDouglasPeucker(pts Polygon, first, last int, eps float64, keep []bool) {
	stack := [][2]int{{first, last}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s[1]-s[0] < 2 {
			continue
		}

		idx, dmax := -1, 0.0
		for i := s[0] + 1; i < s[1]; i++ {
			if d := segmentDistance(pts[i], pts[s[0]], pts[s[1]]); d > dmax {
				idx, dmax = i, d
			}
		}
		if idx >= 0 && dmax > eps {
			keep[idx] = true
			stack = append(stack, [2]int{s[0], idx}, [2]int{idx, s[1]})
		}
	}
}

// PointPolygonTest returns the signed distance from (x, y) to the polygon
// outline: positive inside, negative outside, zero on an edge.
//
// Degenerate polygons (one or two vertices) have no interior, so every point
// not on them is outside. An empty polygon yields negative infinity.
func PointPolygonTest(p Polygon, x, y float64) float64 {
	n := len(p)
	if n == 0 {
		return math.Inf(-1)
	}

	d := math.Inf(1)
	for i := range p {
		j := (i + 1) % n
		if e := segmentDistanceF(x, y, p[i], p[j]); e < d {
			d = e
		}
	}
	if d <= onEdgeEpsilon {
		return 0
	}
	if n < 3 {
		return -d
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := float64(p[i].X), float64(p[i].Y)
		xj, yj := float64(p[j].X), float64(p[j].Y)
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	if inside {
		return d
	}
	return -d
}

// Contains reports whether the point lies inside or on the polygon.
func Contains(p Polygon, x, y float64) bool {
	return PointPolygonTest(p, x, y) >= 0
}

func signedArea(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	s := 0
	for i := range p {
		j := (i + 1) % len(p)
		s += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return float64(s) / 2
}

// Area returns the unsigned shoelace area of the polygon.
func Area(p Polygon) float64 {
	return math.Abs(signedArea(p))
}

// Centroid returns the area centroid of the polygon. Polygons without area
// fall back to the mean of their vertices.
func Centroid(p Polygon) (float64, float64) {
	if len(p) == 0 {
		return 0, 0
	}

	a := signedArea(p)
	if math.Abs(a) < 1e-12 {
		sx, sy := 0.0, 0.0
		for _, q := range p {
			sx += float64(q.X)
			sy += float64(q.Y)
		}
		return sx / float64(len(p)), sy / float64(len(p))
	}

	cx, cy := 0.0, 0.0
	for i := range p {
		j := (i + 1) % len(p)
		cross := float64(p[i].X*p[j].Y - p[j].X*p[i].Y)
		cx += float64(p[i].X+p[j].X) * cross
		cy += float64(p[i].Y+p[j].Y) * cross
	}
	return cx / (6 * a), cy / (6 * a)
}

// BoundingRect returns the smallest pixel rectangle containing every vertex.
func BoundingRect(p Polygon) image.Rectangle {
	if len(p) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(p[0].X, p[0].Y, p[0].X+1, p[0].Y+1)
	for _, q := range p[1:] {
		r = r.Union(image.Rect(q.X, q.Y, q.X+1, q.Y+1))
	}
	return r
}

// ConvexHull returns the convex hull of the vertices using Andrew's
// monotone chain. Collinear points are dropped.
func ConvexHull(p Polygon) Polygon {
	pts := p.Clone()
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	uniq := pts[:0]
	for _, q := range pts {
		if len(uniq) == 0 || q != uniq[len(uniq)-1] {
			uniq = append(uniq, q)
		}
	}
	if len(uniq) < 3 {
		return uniq.Clone()
	}

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make(Polygon, 0, 2*len(uniq))
	for _, q := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		q := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	return hull[:len(hull)-1]
}

// Fill rasterises the polygon into a new mask with the given bounds.
// Interior pixels and every pixel on the outline are set to 255.
func Fill(p Polygon, bounds image.Rectangle) *image.Gray {
	out := image.NewGray(bounds)
	FillInto(out, p)
	return out
}

// FillInto rasterises the polygon onto an existing mask.
func FillInto(dst *image.Gray, p Polygon) {
	bounds := dst.Bounds()
	clip := BoundingRect(p).Intersect(bounds)
	if clip.Empty() {
		return
	}

	n := len(p)
	xs := make([]float64, 0, 8)
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		xs = xs[:0]
		for i := 0; i < n; i++ {
			a, b := p[i], p[(i+1)%n]
			if (a.Y <= y && b.Y > y) || (b.Y <= y && a.Y > y) {
				t := float64(y-a.Y) / float64(b.Y-a.Y)
				xs = append(xs, float64(a.X)+t*float64(b.X-a.X))
			}
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			x0 := max(int(math.Ceil(xs[k])), clip.Min.X)
			x1 := min(int(math.Floor(xs[k+1])), clip.Max.X-1)
			for x := x0; x <= x1; x++ {
				dst.SetGray(x, y, white)
			}
		}
	}

	for i := 0; i < n; i++ {
		WalkLine(p[i], p[(i+1)%n], func(q image.Point) {
			if q.In(bounds) {
				dst.SetGray(q.X, q.Y, white)
			}
		})
	}
}

// WalkLine visits every pixel on the Bresenham line from a to b, inclusive.
func WalkLine(a, b image.Point, visit func(image.Point)) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	err := dx + dy
	x, y := a.X, a.Y
	for {
		visit(image.Pt(x, y))
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func dist(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func segmentDistance(p, a, b image.Point) float64 {
	return segmentDistanceF(float64(p.X), float64(p.Y), a, b)
}

// segmentDistanceF returns the distance from (x, y) to segment ab.
func segmentDistanceF(x, y float64, a, b image.Point) float64 {
	ax, ay := float64(a.X), float64(a.Y)
	bx, by := float64(b.X), float64(b.Y)
	vx, vy := bx-ax, by-ay
	l2 := vx*vx + vy*vy
	if l2 == 0 {
		return math.Hypot(x-ax, y-ay)
	}
	t := ((x-ax)*vx + (y-ay)*vy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(x-(ax+t*vx), y-(ay+t*vy))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
