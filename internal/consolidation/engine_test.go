package consolidation

import (
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/region"
)

func drawDisk(m *image.Gray, cx, cy, r int) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r && image.Pt(x, y).In(m.Rect) {
				m.Pix[m.PixOffset(x, y)] = 255
			}
		}
	}
}

func drawRect(m *image.Gray, r image.Rectangle) {
	r = r.Intersect(m.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[m.PixOffset(x, y)] = 255
		}
	}
}

// plantScene is a 400×300 mask with a large disk near the bottom center, a
// tiny disk one pixel to its right and a medium disk in the top-left corner.
func plantScene() (raw, large, tiny *image.Gray) {
	b := image.Rect(0, 0, 400, 300)
	raw, large, tiny = imaging.NewMask(b), imaging.NewMask(b), imaging.NewMask(b)
	drawDisk(large, 200, 240, 40)
	drawDisk(tiny, 247, 240, 5)
	drawDisk(raw, 200, 240, 40)
	drawDisk(raw, 247, 240, 5)
	drawDisk(raw, 60, 60, 30)
	return raw, large, tiny
}

func sceneOptions(dilation int) Options {
	frame := region.NewRect("frame", region.TagNone, image.Rect(0, 0, 400, 300))
	return Options{
		ClassifyParams: ClassifyParams{ToleranceArea: 1000, ToleranceDistance: 50, Dilation: dilation},
		Anchor:         &frame,
		Position:       region.BottomCenter,
		KernelShape:    morph.KernelRect,
	}
}

func hullNear(hulls []Hull, x, y float64) (int, bool) {
	for i, h := range hulls {
		if math.Hypot(h.CX-x, h.CY-y) < 3 {
			return i, true
		}
	}
	return -1, false
}

func TestBuildCleanedMask_KeepsPlantWithNearbyLeaf(t *testing.T) {
	raw, large, tiny := plantScene()

	out, res, err := BuildCleanedMask(raw, sceneOptions(3))
	if err != nil {
		t.Fatalf("BuildCleanedMask: %v", err)
	}

	if res.Reference == nil {
		t.Fatal("expected a reference hull")
	}
	if res.Reference.CY < 200 {
		t.Errorf("reference centroid (%.1f, %.1f) should be the bottom plant", res.Reference.CX, res.Reference.CY)
	}

	want := imaging.Or(large, tiny)
	if !imaging.Equal(out, want) {
		t.Errorf("cleaned mask has %d pixels, want %d (large + tiny disk)",
			imaging.CountNonZero(out), imaging.CountNonZero(want))
	}
	if res.Kept != 2 {
		t.Errorf("Kept = %d, want 2", res.Kept)
	}

	medium, ok := hullNear(res.Original, 60, 60)
	if !ok {
		t.Fatal("medium disk missing from the original hulls")
	}
	if got := res.OriginalClasses[medium]; got != TooFar {
		t.Errorf("medium disk classified %v, want too_far", got)
	}
}

func TestBuildCleanedMask_WithoutDilationDropsSmallNeighbour(t *testing.T) {
	raw, large, _ := plantScene()

	out, res, err := BuildCleanedMask(raw, sceneOptions(0))
	if err != nil {
		t.Fatalf("BuildCleanedMask: %v", err)
	}
	if !imaging.Equal(out, large) {
		t.Errorf("cleaned mask has %d pixels, want only the large disk (%d)",
			imaging.CountNonZero(out), imaging.CountNonZero(large))
	}

	tiny, ok := hullNear(res.Original, 247, 240)
	if !ok {
		t.Fatal("tiny disk missing from the original hulls")
	}
	if got := res.OriginalClasses[tiny]; got != TooSmall {
		t.Errorf("tiny disk classified %v, want too_small", got)
	}
}

func TestBuildCleanedMask_Idempotent(t *testing.T) {
	raw, _, _ := plantScene()
	opts := sceneOptions(3)

	first, _, err := BuildCleanedMask(raw, opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, _, err := BuildCleanedMask(first, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !imaging.Equal(first, second) {
		t.Errorf("second run changed the mask: %d -> %d pixels",
			imaging.CountNonZero(first), imaging.CountNonZero(second))
	}
}

func TestBuildCleanedMask_ErosionDropsThinNoise(t *testing.T) {
	raw := imaging.NewMask(image.Rect(0, 0, 200, 100))
	drawRect(raw, image.Rect(10, 10, 60, 60))
	drawRect(raw, image.Rect(100, 10, 141, 11))
	input := imaging.CloneMask(raw)

	out, res, err := BuildCleanedMask(raw, Options{
		ClassifyParams: ClassifyParams{ToleranceArea: 1000, ToleranceDistance: 50, Dilation: -1},
	})
	if err != nil {
		t.Fatalf("BuildCleanedMask: %v", err)
	}
	if n := imaging.CountNonZero(out); n != 2500 {
		t.Errorf("cleaned mask has %d pixels, want the 2500 of the square", n)
	}
	if len(res.Hulls) != 1 {
		t.Errorf("erosion should leave one hull, got %d", len(res.Hulls))
	}
	if !imaging.Equal(raw, input) {
		t.Error("BuildCleanedMask modified its input")
	}
}

func TestBuildCleanedMask_Empty(t *testing.T) {
	raw := imaging.NewMask(image.Rect(0, 0, 50, 50))

	out, res, err := BuildCleanedMask(raw, Options{})
	if err != nil {
		t.Fatalf("BuildCleanedMask: %v", err)
	}
	if imaging.CountNonZero(out) != 0 {
		t.Error("empty input should give an empty mask")
	}
	if res.Reference != nil {
		t.Error("empty input should have no reference")
	}
	if out.Rect != raw.Rect {
		t.Errorf("bounds = %v, want %v", out.Rect, raw.Rect)
	}

	if _, _, err := BuildCleanedMask(nil, Options{}); err == nil {
		t.Error("nil mask should be an error")
	}
}

func TestAggregate_ChainsThroughAcceptedHulls(t *testing.T) {
	hulls := []Hull{
		NewHull(rect(100, 100, 200, 200)), // reference
		NewHull(rect(300, 100, 340, 140)), // only close to the bridge
		NewHull(rect(230, 100, 270, 140)), // bridge
		NewHull(rect(600, 600, 640, 640)), // far away
	}
	p := ClassifyParams{ToleranceArea: 1000, ToleranceDistance: 50}

	res := Aggregate(hulls, 0, p)

	if diff := cmp.Diff([]int{0, 2, 1}, res.Accepted); diff != "" {
		t.Errorf("accepted order mismatch (-want +got):\n%s", diff)
	}
	wantPasses := []PassStats{
		{Accepted: 2, Pending: 2, Moved: 1},
		{Accepted: 3, Pending: 1, Moved: 1},
		{Accepted: 3, Pending: 1, Moved: 0},
	}
	if diff := cmp.Diff(wantPasses, res.Passes); diff != "" {
		t.Errorf("pass stats mismatch (-want +got):\n%s", diff)
	}
	if res.Classes[3] != TooFar {
		t.Errorf("far hull classified %v, want too_far", res.Classes[3])
	}
	if res.Classes[0] != FullyInside {
		t.Errorf("reference classified %v, want fully_inside", res.Classes[0])
	}
}

func TestAggregate_Monotone(t *testing.T) {
	hulls := []Hull{
		NewHull(rect(0, 0, 50, 50)),
		NewHull(rect(60, 0, 100, 40)),
		NewHull(rect(110, 0, 150, 40)),
		NewHull(rect(160, 0, 200, 40)),
		NewHull(rect(210, 0, 250, 40)),
		NewHull(rect(900, 900, 910, 910)),
	}
	p := ClassifyParams{ToleranceArea: 500, ToleranceDistance: 20}

	res := Aggregate(hulls, 0, p)
	if len(res.Passes) > len(hulls)-1 {
		t.Errorf("%d passes for %d hulls", len(res.Passes), len(hulls))
	}

	prevAccepted, prevPending := 1, len(hulls)-1
	for i, ps := range res.Passes {
		if ps.Accepted < prevAccepted || ps.Pending > prevPending {
			t.Errorf("pass %d not monotone: %+v after accepted=%d pending=%d", i, ps, prevAccepted, prevPending)
		}
		if ps.Accepted+ps.Pending != len(hulls) {
			t.Errorf("pass %d loses hulls: %+v", i, ps)
		}
		prevAccepted, prevPending = ps.Accepted, ps.Pending
	}
	if len(res.Accepted) != 5 {
		t.Errorf("accepted %d hulls, want the chain of 5", len(res.Accepted))
	}
}

func TestAggregate_InvalidReference(t *testing.T) {
	res := Aggregate([]Hull{NewHull(rect(0, 0, 10, 10))}, 3, ClassifyParams{})
	if len(res.Accepted) != 0 || len(res.Passes) != 0 {
		t.Errorf("invalid reference should aggregate nothing, got %+v", res)
	}
}

func TestSelectReferenceHull(t *testing.T) {
	frame := region.NewRect("frame", region.TagNone, image.Rect(0, 0, 400, 300))
	pot := region.NewCircle("pot", region.TagNone, image.Pt(100, 100), 50)

	far := Hull{Area: 10000, CX: 200, CY: 50, Index: 0}
	near := Hull{Area: 6000, CX: 200, CY: 280, Index: 1}

	tests := []struct {
		name   string
		hulls  []Hull
		anchor *region.Region
		pos    region.Position
		want   int
	}{
		{"largest without anchor", []Hull{far, near}, nil, region.MiddleCenter, 0},
		{"anchor favours the closer hull", []Hull{far, near}, &frame, region.BottomCenter, 1},
		{"anchor at top favours the other", []Hull{far, near}, &frame, region.TopCenter, 0},
		{
			"equal scores prefer the larger area",
			[]Hull{{Area: 100, CX: 2000, CY: 2000, Index: 0}, {Area: 300, CX: -2000, CY: 2000, Index: 1}},
			&frame, region.TopLeft, 1,
		},
		{
			"equal scores and areas keep the first",
			[]Hull{{Area: 100, CX: 10, CY: 10, Index: 0}, {Area: 100, CX: 10, CY: 10, Index: 1}},
			nil, region.MiddleCenter, 0,
		},
		{
			"circle center normalises by radius",
			[]Hull{{Area: 5000, CX: 145, CY: 100, Index: 0}, {Area: 1000, CX: 100, CY: 130, Index: 1}},
			&pot, region.MiddleCenter, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectReferenceHull(tt.hulls, tt.anchor, tt.pos)
			if !ok {
				t.Fatal("expected a hull")
			}
			if got.Index != tt.want {
				t.Errorf("selected hull %d, want %d", got.Index, tt.want)
			}
		})
	}

	if _, ok := SelectReferenceHull(nil, &frame, region.BottomCenter); ok {
		t.Error("no hulls should select nothing")
	}
}

func TestExtractHulls(t *testing.T) {
	m := imaging.NewMask(image.Rect(0, 0, 100, 100))
	drawRect(m, image.Rect(10, 10, 30, 20))
	drawRect(m, image.Rect(50, 50, 60, 60))

	hulls, cs := ExtractHulls(m, 0)
	if len(hulls) != 2 {
		t.Fatalf("got %d hulls, want 2", len(hulls))
	}
	if hulls[0].Area != 200 || hulls[1].Area != 100 {
		t.Errorf("areas = %v, %v, want 200, 100", hulls[0].Area, hulls[1].Area)
	}
	if hulls[0].CX != 19.5 || hulls[0].CY != 14.5 {
		t.Errorf("centroid = (%v, %v), want (19.5, 14.5)", hulls[0].CX, hulls[0].CY)
	}
	if len(hulls[0].Polygon) != 4 {
		t.Errorf("rectangle should simplify to 4 vertices, got %d", len(hulls[0].Polygon))
	}
	if cs.LabelAt(image.Pt(55, 55)) != hulls[1].Label {
		t.Error("hull label does not match the component label")
	}
}
