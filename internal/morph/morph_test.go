package morph

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/leafmask/internal/region"
)

func createMask(w, h int, rects ...image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return m
}

func countSet(m *image.Gray) int {
	n := 0
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
			if m.GrayAt(x, y).Y != 0 {
				n++
			}
		}
	}
	return n
}

func TestApply_KernelShapes(t *testing.T) {
	dot := createMask(11, 11, image.Rect(5, 5, 6, 6))

	tests := []struct {
		name  string
		size  int
		shape KernelShape
		want  int
	}{
		{"rect 3", 3, KernelRect, 9},
		{"ellipse 3", 3, KernelEllipse, 5},
		{"ellipse 5", 5, KernelEllipse, 13},
		{"cross 3", 3, KernelCross, 5},
		{"cross 5", 5, KernelCross, 9},
		{"even size rounds up", 2, KernelRect, 9},
		{"size 1 is identity", 1, KernelRect, 1},
		{"size 0 is identity", 0, KernelEllipse, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(dot, Dilate, tt.size, tt.shape, nil, 1)
			if n := countSet(got); n != tt.want {
				t.Errorf("dilated dot has %d pixels, want %d", n, tt.want)
			}
		})
	}
}

func TestApply_Ops(t *testing.T) {
	square := image.Rect(3, 3, 8, 8)
	noise := image.Rect(0, 10, 1, 11)
	gap := createMask(11, 11, image.Rect(2, 2, 5, 5), image.Rect(6, 2, 9, 5))

	tests := []struct {
		name string
		mask *image.Gray
		op   Op
		want int
	}{
		{"erode square", createMask(11, 11, square), Erode, 9},
		{"open drops noise", createMask(11, 12, square, noise), Open, 25},
		{"close bridges gap", gap, Close, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.mask, tt.op, 3, KernelRect, nil, 1)
			if n := countSet(got); n != tt.want {
				t.Errorf("%v produced %d pixels, want %d", tt.op, n, tt.want)
			}
		})
	}
}

func TestApply_Iterations(t *testing.T) {
	dot := createMask(11, 11, image.Rect(5, 5, 6, 6))
	got := Apply(dot, Dilate, 3, KernelRect, nil, 2)
	if n := countSet(got); n != 25 {
		t.Errorf("two dilations produced %d pixels, want 25", n)
	}
}

func TestApply_RestrictedToRegions(t *testing.T) {
	line := createMask(20, 5, image.Rect(0, 2, 20, 3))
	left := region.NewRect("left", region.TagDilate, image.Rect(0, 0, 10, 5))

	got := Apply(line, Dilate, 3, KernelRect, []region.Region{left}, 1)

	if got.GrayAt(5, 1).Y != 255 {
		t.Error("pixel inside region should be dilated")
	}
	if got.GrayAt(15, 1).Y != 0 {
		t.Error("pixel outside region should keep its original value")
	}
	if n := countSet(got); n != 20+2*10 {
		t.Errorf("got %d pixels, want 40", n)
	}
	if countSet(line) != 20 {
		t.Error("Apply must not modify its input")
	}
}

func TestApply_OffsetBounds(t *testing.T) {
	m := image.NewGray(image.Rect(50, 50, 61, 61))
	m.SetGray(55, 55, color.Gray{Y: 255})

	for _, shape := range []KernelShape{KernelRect, KernelEllipse} {
		got := Apply(m, Dilate, 3, shape, nil, 1)
		if got.Bounds() != m.Bounds() {
			t.Fatalf("%v: bounds = %v, want %v", shape, got.Bounds(), m.Bounds())
		}
		if got.GrayAt(54, 55).Y != 255 || got.GrayAt(53, 55).Y != 0 {
			t.Errorf("%v: dilation misplaced on offset mask", shape)
		}
	}
}

func TestGrow(t *testing.T) {
	m := createMask(11, 11, image.Rect(3, 3, 8, 8))

	if n := countSet(Grow(m, 1, KernelRect)); n != 49 {
		t.Errorf("Grow(+1) = %d pixels, want 49", n)
	}
	if n := countSet(Grow(m, -1, KernelRect)); n != 9 {
		t.Errorf("Grow(-1) = %d pixels, want 9", n)
	}
	if n := countSet(Grow(m, 0, KernelRect)); n != 25 {
		t.Errorf("Grow(0) = %d pixels, want 25", n)
	}
}

func TestParse(t *testing.T) {
	if op, err := ParseOp("Close"); err != nil || op != Close {
		t.Errorf("ParseOp(Close) = %v, %v", op, err)
	}
	if _, err := ParseOp("smear"); err == nil {
		t.Error("ParseOp should reject unknown operations")
	}
	if k, err := ParseKernelShape("ellipse"); err != nil || k != KernelEllipse {
		t.Errorf("ParseKernelShape(ellipse) = %v, %v", k, err)
	}
	if op, ok := OpForTag(region.TagOpen); !ok || op != Open {
		t.Errorf("OpForTag(open) = %v, %v", op, ok)
	}
	if _, ok := OpForTag(region.TagKeep); ok {
		t.Error("keep is not a morphology tag")
	}
}
