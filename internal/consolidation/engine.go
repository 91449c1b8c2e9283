// Package consolidation turns a noisy raw segmentation into one coherent
// object mask.
//
// Connected components of the raw mask are reduced to hulls; the hull most
// likely to be the object is picked as reference; the remaining hulls are
// accepted or rejected by comparing them with every hull accepted so far,
// until a pass accepts nothing new. Pixels of rejected components are erased.
package consolidation

import (
	"errors"
	"image"
	"math"

	"github.com/ironsheep/leafmask/internal/geometry"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/region"
)

// ErrNoObject reports that a mask holds no usable object.
var ErrNoObject = errors.New("no object detected")

// Options configures BuildCleanedMask.
type Options struct {
	ClassifyParams

	// Anchor biases reference selection toward a point of this region.
	// Nil selects the largest hull.
	Anchor *region.Region

	// Position is the anchor point of Anchor.
	Position region.Position

	// KernelShape is the structuring element used for Dilation.
	KernelShape morph.KernelShape

	// SimplifyRatio is the hull simplification tolerance as a fraction of
	// the perimeter. Zero selects geometry.DefaultSimplifyRatio.
	SimplifyRatio float64
}

// PassStats records the set sizes after one aggregation pass.
type PassStats struct {
	Accepted int `json:"accepted"`
	Pending  int `json:"pending"`
	Moved    int `json:"moved"`
}

// AggregateResult is the outcome of Aggregate.
type AggregateResult struct {
	// Accepted holds hull indices in acceptance order; the reference first.
	Accepted []int

	// Classes holds, for every hull, the classification that accepted it or,
	// for rejected hulls, its classification against the reference.
	Classes []Classification

	// Passes holds one entry per pass.
	Passes []PassStats
}

// Result describes one BuildCleanedMask call.
type Result struct {
	// Reference is the selected reference hull, nil when the mask was empty.
	Reference *Hull

	// Hulls are the hulls of the grown (or shrunk) mask and Classes their
	// aggregation outcome.
	Hulls   []Hull
	Classes []Classification

	// Accepted are the accepted hulls of the grown mask.
	Accepted []Hull

	// Original are the hulls of the raw mask and OriginalClasses their
	// best classification against the accepted hulls.
	Original        []Hull
	OriginalClasses []Classification

	// Kept is the number of raw components kept.
	Kept int

	Passes []PassStats
}

// ExtractHulls simplifies the outer contour of every connected component
// of mask. Area and centroid come from the component's pixels, not from the
// simplified polygon.
func ExtractHulls(mask *image.Gray, ratio float64) ([]Hull, *geometry.ContourSet) {
	if ratio <= 0 {
		ratio = geometry.DefaultSimplifyRatio
	}
	cs := geometry.FindContours(mask)
	outer := cs.Outer()
	if len(outer) == 0 {
		return nil, cs
	}

	sx := make([]float64, len(outer)+1)
	sy := make([]float64, len(outer)+1)
	w := cs.Bounds.Dx()
	for i, l := range cs.Labels {
		if l == 0 {
			continue
		}
		sx[l] += float64(i%w + cs.Bounds.Min.X)
		sy[l] += float64(i/w + cs.Bounds.Min.Y)
	}

	hulls := make([]Hull, len(outer))
	for i, c := range outer {
		n := float64(c.PixelCount)
		hulls[i] = Hull{
			Polygon: geometry.SimplifyRelative(c.Points, ratio),
			Area:    n,
			CX:      sx[c.Label] / n,
			CY:      sy[c.Label] / n,
			Label:   c.Label,
			Index:   i,
		}
	}
	return hulls, cs
}

// SelectReferenceHull picks the hull most likely to be the object.
//
// With an anchor, every hull is scored as area × (1 − nd)², where nd is the
// centroid's distance to the anchor point divided by the anchor's diagonal,
// clamped to [0, 1]. A middle-center position divides by the anchor's radius
// instead: the circle radius, or half the rectangle diagonal. Without an
// anchor the score is the area. Equal scores prefer the larger area, then the
// earlier hull.
//
// ok is false when hulls is empty.
func SelectReferenceHull(hulls []Hull, anchor *region.Region, pos region.Position) (Hull, bool) {
	if len(hulls) == 0 {
		return Hull{}, false
	}

	best, bestScore := 0, math.Inf(-1)
	for i, h := range hulls {
		score := h.Area
		if anchor != nil {
			nd := normalizedDistance(h, anchor, pos)
			score = h.Area * (1 - nd) * (1 - nd)
		}
		if score > bestScore || score == bestScore && h.Area > hulls[best].Area {
			best, bestScore = i, score
		}
	}
	return hulls[best], true
}

func normalizedDistance(h Hull, anchor *region.Region, pos region.Position) float64 {
	ax, ay := anchor.Anchor(pos)
	d := math.Hypot(h.CX-ax, h.CY-ay)

	norm := anchor.Diagonal()
	if pos == region.MiddleCenter {
		norm /= 2
		if anchor.Shape == region.Circle {
			norm = float64(anchor.Radius)
		}
	}
	if norm <= 0 {
		if d == 0 {
			return 0
		}
		return 1
	}
	return math.Max(0, math.Min(1, d/norm))
}

// Aggregate grows the accepted set from hulls[ref] to a fixed point.
//
// Each pass classifies every pending hull, in order, against every hull
// accepted so far and moves it to the accepted set on the first accepting
// classification. Passes stop once one moves nothing or nothing is pending,
// so at most len(hulls)-1 passes run.
func Aggregate(hulls []Hull, ref int, p ClassifyParams) AggregateResult {
	if ref < 0 || ref >= len(hulls) {
		return AggregateResult{}
	}

	res := AggregateResult{
		Accepted: []int{ref},
		Classes:  make([]Classification, len(hulls)),
	}
	res.Classes[ref] = FullyInside

	pending := make([]int, 0, len(hulls)-1)
	for i := range hulls {
		if i != ref {
			pending = append(pending, i)
		}
	}

	accepted := []Hull{hulls[ref]}
	for len(pending) > 0 {
		moved := 0
		remaining := pending[:0]
		for _, i := range pending {
			cls, ok := classifyAgainst(hulls[i], accepted, p)
			res.Classes[i] = cls
			if ok {
				res.Accepted = append(res.Accepted, i)
				accepted = append(accepted, hulls[i])
				moved++
				continue
			}
			remaining = append(remaining, i)
		}
		pending = remaining
		res.Passes = append(res.Passes, PassStats{Accepted: len(res.Accepted), Pending: len(pending), Moved: moved})
		if moved == 0 {
			break
		}
	}
	return res
}

// classifyAgainst classifies h against each accepted hull. It returns the
// first accepting classification, or the classification against the first
// accepted hull.
func classifyAgainst(h Hull, accepted []Hull, p ClassifyParams) (Classification, bool) {
	var first Classification
	for k, a := range accepted {
		cls := ClassifyHull(h, a, p)
		if cls.Accepted() {
			return cls, true
		}
		if k == 0 {
			first = cls
		}
	}
	return first, false
}

// BuildCleanedMask keeps only the components of raw that belong to the
// object.
//
// The mask is grown (or shrunk) by Options.Dilation, hulls are extracted, a
// reference is selected and the accepted set aggregated. Hulls of the
// unmodified raw mask are then classified against every accepted hull; the
// pixels of accepted components are kept and all others erased.
//
// A mask without components yields an all-background mask and a Result with
// a nil Reference. raw is never modified.
func BuildCleanedMask(raw *image.Gray, opts Options) (*image.Gray, *Result, error) {
	if raw == nil {
		return nil, nil, errors.New("raw mask is nil")
	}

	out := image.NewGray(raw.Rect)
	grown := morph.Grow(raw, opts.Dilation, opts.KernelShape)
	hulls, _ := ExtractHulls(grown, opts.SimplifyRatio)
	res := &Result{Hulls: hulls}
	if len(hulls) == 0 {
		return out, res, nil
	}

	ref, _ := SelectReferenceHull(hulls, opts.Anchor, opts.Position)
	res.Reference = &ref

	agg := Aggregate(hulls, ref.Index, opts.ClassifyParams)
	res.Classes = agg.Classes
	res.Passes = agg.Passes
	for _, i := range agg.Accepted {
		res.Accepted = append(res.Accepted, hulls[i])
	}

	original, cs := ExtractHulls(raw, opts.SimplifyRatio)
	res.Original = original
	res.OriginalClasses = make([]Classification, len(original))

	keep := make([]bool, len(original)+1)
	for i, h := range original {
		cls, ok := classifyAgainst(h, res.Accepted, opts.ClassifyParams)
		res.OriginalClasses[i] = cls
		if ok {
			keep[h.Label] = true
			res.Kept++
		}
	}

	w := cs.Bounds.Dx()
	for i, l := range cs.Labels {
		if l != 0 && keep[l] {
			out.Pix[out.PixOffset(i%w+cs.Bounds.Min.X, i/w+cs.Bounds.Min.Y)] = 255
		}
	}
	return out, res, nil
}
