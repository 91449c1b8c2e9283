package consolidation

import (
	"image"
	"testing"

	"github.com/ironsheep/leafmask/internal/geometry"
	"github.com/ironsheep/leafmask/internal/region"
)

func rect(x1, y1, x2, y2 int) geometry.Polygon {
	return geometry.Polygon{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
}

// cShape is a concave polygon open to the right: a 100×100 block with the
// band 20 < y < 80 removed right of x = 20.
func cShape() geometry.Polygon {
	return geometry.Polygon{{0, 0}, {100, 0}, {100, 20}, {20, 20}, {20, 80}, {100, 80}, {100, 100}, {0, 100}}
}

func TestClassifyHull(t *testing.T) {
	ref := NewHull(rect(0, 0, 100, 100))
	base := ClassifyParams{ToleranceArea: 1000, ToleranceDistance: 50}
	safe := region.NewRect("safe", region.TagSafe, image.Rect(250, 250, 400, 400))
	nearSafe := region.NewRect("near", region.TagSafe, image.Rect(105, 0, 130, 30))

	with := func(mod func(p *ClassifyParams)) ClassifyParams {
		p := base
		mod(&p)
		return p
	}

	tests := []struct {
		name string
		cand geometry.Polygon
		p    ClassifyParams
		want Classification
	}{
		{"inside", rect(20, 20, 30, 30), base, FullyInside},
		{"straddling edge", rect(90, 40, 120, 60), base, Overlaps},
		{"small and far", rect(300, 300, 305, 305), base, Outside},
		{"small and near", rect(110, 10, 115, 15), base, TooSmall},
		{"big and far", rect(300, 0, 400, 100), base, TooFar},
		{"big and near", rect(110, 0, 200, 100), base, OKTolerance},
		{"area override", rect(300, 0, 400, 100), with(func(p *ClassifyParams) { p.AreaOverride = 5000 }), BigEnoughToIgnoreDistance},
		{"override needs strictly larger", rect(300, 0, 400, 100), with(func(p *ClassifyParams) { p.AreaOverride = 10000 }), TooFar},
		{"negative tolerances accept", rect(300, 300, 305, 305), ClassifyParams{ToleranceArea: -1, ToleranceDistance: -1}, OKTolerance},
		{"negative area only", rect(300, 300, 305, 305), with(func(p *ClassifyParams) { p.ToleranceArea = -1 }), TooFar},
		{"protected by size", rect(300, 300, 305, 305), with(func(p *ClassifyParams) {
			p.ToleranceArea = 10
			p.SafeRegion = &safe
			p.ProtectBig = true
		}), ProtectedSizeOK},
		{"protected by distance", rect(110, 10, 115, 15), with(func(p *ClassifyParams) {
			p.SafeRegion = &nearSafe
			p.ProtectClose = true
		}), ProtectedDistanceOK},
		{"protection needs the flag", rect(110, 10, 115, 15), with(func(p *ClassifyParams) {
			p.SafeRegion = &nearSafe
		}), TooSmall},
		{"protection needs the safe region", rect(110, 10, 115, 15), with(func(p *ClassifyParams) {
			p.SafeRegion = &safe
			p.ProtectClose = true
		}), TooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyHull(NewHull(tt.cand), ref, tt.p); got != tt.want {
				t.Errorf("ClassifyHull = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyHull_Totality(t *testing.T) {
	ref := NewHull(cShape())
	candidates := []geometry.Polygon{
		rect(5, 30, 15, 70), rect(40, 40, 60, 60), rect(-50, -50, 150, 150),
		rect(90, 10, 130, 30), rect(500, 500, 501, 501), {{200, 200}},
	}
	safe := region.NewRect("safe", region.TagSafe, image.Rect(0, 0, 600, 600))

	valid := make(map[Classification]bool)
	for _, c := range AllClassifications {
		valid[c] = true
	}

	for _, cand := range candidates {
		for _, dil := range []int{-2, 0, 3} {
			for _, tol := range []int{-1, 0, 50, 5000} {
				for _, protect := range []bool{false, true} {
					p := ClassifyParams{
						ToleranceArea: tol, ToleranceDistance: tol, Dilation: dil,
						SafeRegion: &safe, ProtectBig: protect, ProtectClose: protect,
						AreaOverride: tol,
					}
					if got := ClassifyHull(NewHull(cand), ref, p); !valid[got] {
						t.Fatalf("ClassifyHull returned %v for %v with %+v", got, cand, p)
					}
				}
			}
		}
	}
}

func TestClassify_ContainmentAgreement(t *testing.T) {
	tests := []struct {
		name string
		ref  geometry.Polygon
		cand geometry.Polygon
	}{
		{"convex reference", rect(0, 0, 100, 100), rect(20, 20, 30, 30)},
		{"concave reference", cShape(), rect(5, 30, 15, 70)},
		{"touching the outline", rect(0, 0, 100, 100), rect(0, 0, 10, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, ref := NewHull(tt.cand), NewHull(tt.ref)

			byPixels, ok := classifyByPixels(cand, ref)
			if !ok || byPixels != FullyInside {
				t.Fatalf("pixel path = %v (ok=%v), want FullyInside", byPixels, ok)
			}
			if byVertices := classifyByVertices(cand, ref, ClassifyParams{}); byVertices != byPixels {
				t.Errorf("vertex path = %v, pixel path = %v", byVertices, byPixels)
			}
		})
	}
}

// The pixel path sees any shared pixel, the vertex path only sees vertices.
// A candidate whose edge crosses the reference without a vertex inside it is
// where the two disagree; both outcomes are recorded here so a change to
// either path is noticed.
func TestClassify_ConcaveDisagreement(t *testing.T) {
	cand := NewHull(cShape())
	ref := NewHull(rect(50, 10, 60, 30))
	p := ClassifyParams{ToleranceArea: 1000, ToleranceDistance: 10}

	byPixels, ok := classifyByPixels(cand, ref)
	if !ok || byPixels != Overlaps {
		t.Fatalf("pixel path = %v (ok=%v), want Overlaps", byPixels, ok)
	}
	if got := classifyByVertices(cand, ref, p); got != TooFar {
		t.Errorf("vertex path = %v, want TooFar", got)
	}

	p.Dilation = -1
	if got := ClassifyHull(cand, ref, p); got != Overlaps {
		t.Errorf("erosion mode should take the pixel path, got %v", got)
	}
	p.Dilation = 0
	if got := ClassifyHull(cand, ref, p); got != TooFar {
		t.Errorf("without erosion the vertex path decides, got %v", got)
	}
}

func TestClassifyHull_ErosionFastPath(t *testing.T) {
	big := NewHull(rect(0, 0, 100, 100))
	small := NewHull(rect(40, 40, 60, 60))
	p := ClassifyParams{ToleranceArea: 100000, ToleranceDistance: 1, Dilation: -2}

	if got := ClassifyHull(big, small, p); got != Overlaps {
		t.Errorf("enclosing candidate in erosion mode = %v, want Overlaps", got)
	}

	p.Dilation = 2
	if got := ClassifyHull(big, small, p); got.Accepted() {
		t.Errorf("enclosing candidate outside erosion mode = %v, want a rejection", got)
	}
}

func TestClassification_Accepted(t *testing.T) {
	rejected := map[Classification]bool{TooSmall: true, TooFar: true, Outside: true}
	for _, c := range AllClassifications {
		if c.Accepted() == rejected[c] {
			t.Errorf("%v.Accepted() = %v", c, c.Accepted())
		}
		if c.String() == "" {
			t.Errorf("classification %d has no name", int(c))
		}
	}
}
