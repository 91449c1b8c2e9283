package consolidation

import (
	"fmt"
	"math"

	"github.com/ironsheep/leafmask/internal/geometry"
	"github.com/ironsheep/leafmask/internal/region"
)

// Classification is the outcome of comparing a candidate hull with an
// accepted hull.
type Classification int

const (
	FullyInside Classification = iota
	Overlaps
	ProtectedDistanceOK
	ProtectedSizeOK
	OKTolerance
	TooSmall
	TooFar
	Outside
	BigEnoughToIgnoreDistance
)

// AllClassifications lists every classification in declaration order.
var AllClassifications = []Classification{
	FullyInside, Overlaps, ProtectedDistanceOK, ProtectedSizeOK, OKTolerance,
	TooSmall, TooFar, Outside, BigEnoughToIgnoreDistance,
}

var classificationNames = [...]string{
	FullyInside:               "fully_inside",
	Overlaps:                  "overlaps",
	ProtectedDistanceOK:       "protected_distance_ok",
	ProtectedSizeOK:           "protected_size_ok",
	OKTolerance:               "ok_tolerance",
	TooSmall:                  "too_small",
	TooFar:                    "too_far",
	Outside:                   "outside",
	BigEnoughToIgnoreDistance: "big_enough_to_ignore_distance",
}

func (c Classification) String() string {
	if c < 0 || int(c) >= len(classificationNames) {
		return fmt.Sprintf("classification(%d)", int(c))
	}
	return classificationNames[c]
}

// Accepted reports whether a hull with this classification joins the object.
func (c Classification) Accepted() bool {
	switch c {
	case FullyInside, Overlaps, ProtectedDistanceOK, ProtectedSizeOK,
		OKTolerance, BigEnoughToIgnoreDistance:
		return true
	}
	return false
}

// Hull is the simplified outline of one connected component.
type Hull struct {
	// Polygon is the simplified outer boundary.
	Polygon geometry.Polygon

	// Area is the raw pixel count of the component.
	Area float64

	// CX, CY is the component centroid.
	CX, CY float64

	// Label is the component label in the mask the hull came from.
	Label int

	// Index is the hull's position in the slice it was extracted into.
	Index int
}

// NewHull builds a hull from a polygon alone, using its shoelace area and
// area centroid.
func NewHull(p geometry.Polygon) Hull {
	cx, cy := geometry.Centroid(p)
	return Hull{Polygon: p, Area: geometry.Area(p), CX: cx, CY: cy}
}

// ClassifyParams are the thresholds of one classification.
type ClassifyParams struct {
	// ToleranceArea is the minimum raw area of an outside candidate.
	// Negative disables the criterion.
	ToleranceArea int

	// ToleranceDistance is the maximum distance from an outside candidate to
	// the accepted hull. Negative disables the criterion.
	ToleranceDistance int

	// Dilation is the grow (positive) or shrink (negative) amount applied to
	// the mask before hull extraction. Only its sign matters here.
	Dilation int

	// SafeRegion relaxes acceptance for candidates with a vertex inside it.
	SafeRegion *region.Region

	// ProtectBig accepts outside candidates in the safe region that pass the
	// area criterion.
	ProtectBig bool

	// ProtectClose accepts outside candidates in the safe region that pass
	// the distance criterion.
	ProtectClose bool

	// AreaOverride accepts any outside candidate larger than this area,
	// whatever its distance. Zero disables it.
	AreaOverride int
}

// ClassifyHull compares candidate with reference and returns exactly one
// classification.
//
// # Algorithm
//
//  1. In erosion mode (negative Dilation) a candidate larger than the
//     reference is rasterised together with it; full containment yields
//     FullyInside and any shared pixel yields Overlaps.
//  2. Otherwise every candidate vertex is tested against the reference with
//     the signed point-in-polygon distance. Vertices both inside and outside
//     yield Overlaps; all inside yields FullyInside.
//  3. For an all-outside candidate the tolerance tiers are tried in order:
//     ProtectedSizeOK, ProtectedDistanceOK, OKTolerance,
//     BigEnoughToIgnoreDistance, then TooSmall, TooFar or Outside by which
//     criteria failed.
func ClassifyHull(candidate, reference Hull, p ClassifyParams) Classification {
	if p.Dilation < 0 && candidate.Area > reference.Area {
		if c, ok := classifyByPixels(candidate, reference); ok {
			return c
		}
	}
	return classifyByVertices(candidate, reference, p)
}

// classifyByPixels rasterises both hulls. ok is false when they share no
// pixel.
func classifyByPixels(candidate, reference Hull) (Classification, bool) {
	bounds := geometry.BoundingRect(candidate.Polygon).Union(geometry.BoundingRect(reference.Polygon))
	cand := geometry.Fill(candidate.Polygon, bounds)
	ref := geometry.Fill(reference.Polygon, bounds)

	total, shared := 0, 0
	for i, v := range cand.Pix {
		if v == 0 {
			continue
		}
		total++
		if ref.Pix[i] != 0 {
			shared++
		}
	}

	switch {
	case shared == 0:
		return Outside, false
	case shared == total:
		return FullyInside, true
	default:
		return Overlaps, true
	}
}

func classifyByVertices(candidate, reference Hull, p ClassifyParams) Classification {
	anyIn, anyOut := false, false
	minDist := math.Inf(1)

	for _, v := range candidate.Polygon {
		d := geometry.PointPolygonTest(reference.Polygon, float64(v.X), float64(v.Y))
		if d >= 0 {
			anyIn = true
			continue
		}
		anyOut = true
		if -d < minDist {
			minDist = -d
		}
	}

	switch {
	case anyIn && anyOut:
		return Overlaps
	case anyIn:
		return FullyInside
	}

	areaOK := p.ToleranceArea < 0 || candidate.Area >= float64(p.ToleranceArea)
	distOK := p.ToleranceDistance < 0 || minDist <= float64(p.ToleranceDistance)
	inSafe := p.SafeRegion != nil && anyVertexIn(candidate.Polygon, *p.SafeRegion)

	switch {
	case areaOK && inSafe && p.ProtectBig:
		return ProtectedSizeOK
	case distOK && inSafe && p.ProtectClose:
		return ProtectedDistanceOK
	case areaOK && distOK:
		return OKTolerance
	case p.AreaOverride > 0 && candidate.Area > float64(p.AreaOverride):
		return BigEnoughToIgnoreDistance
	case !areaOK && !distOK:
		return Outside
	case !areaOK:
		return TooSmall
	default:
		return TooFar
	}
}

func anyVertexIn(p geometry.Polygon, r region.Region) bool {
	for _, v := range p {
		if r.Contains(v) {
			return true
		}
	}
	return false
}
