package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
)

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	got, err := Crop(img, image.Rect(50, 0, 100, 50))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if got.Bounds() != image.Rect(0, 0, 50, 50) {
		t.Errorf("bounds = %v, want rebased 50x50", got.Bounds())
	}
	r, g, b, _ := got.At(10, 10).RGBA()
	if r != 0 || g>>8 != 255 || b != 0 {
		t.Errorf("cropped top-right quadrant should be green, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := createPatternImage(100, 100)

	tests := []struct {
		name string
		r    image.Rectangle
	}{
		{"outside", image.Rect(50, 50, 150, 150)},
		{"empty", image.Rect(10, 10, 10, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.r); err == nil {
				t.Errorf("Crop(%v) should fail", tt.r)
			}
		})
	}
}

func TestCropMask(t *testing.T) {
	m := NewMask(image.Rect(0, 0, 20, 20))
	m.SetGray(5, 5, Foreground)
	m.SetGray(15, 15, Foreground)

	got := CropMask(m, image.Rect(0, 0, 10, 10))
	if got.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Fatalf("bounds = %v", got.Bounds())
	}
	if CountNonZero(got) != 1 || got.GrayAt(5, 5).Y != 255 {
		t.Error("CropMask should keep only the pixel inside the crop")
	}
}

func TestEncodePNGBase64(t *testing.T) {
	img := createPatternImage(40, 20)

	tests := []struct {
		name  string
		scale float64
		w, h  int
	}{
		{"original", 1, 40, 20},
		{"zero scale keeps size", 0, 40, 20},
		{"half", 0.5, 20, 10},
		{"double", 2, 80, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := EncodePNGBase64(img, tt.scale)
			if err != nil {
				t.Fatalf("EncodePNGBase64 failed: %v", err)
			}
			if enc.Width != tt.w || enc.Height != tt.h || enc.MimeType != "image/png" {
				t.Errorf("got %dx%d %s, want %dx%d image/png", enc.Width, enc.Height, enc.MimeType, tt.w, tt.h)
			}

			data, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
			if err != nil {
				t.Fatalf("invalid base64: %v", err)
			}
			decoded, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("invalid PNG: %v", err)
			}
			if decoded.Bounds().Dx() != tt.w {
				t.Errorf("decoded width = %d, want %d", decoded.Bounds().Dx(), tt.w)
			}
		})
	}
}
