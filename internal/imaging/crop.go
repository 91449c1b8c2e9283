package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodedImage is a PNG image ready to travel inside a JSON document.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image. The result is rebased so
// its bounds start at (0,0).
func Crop(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region: %v is empty", r)
	}
	return imaging.Crop(img, r), nil
}

// CropMask crops a mask to r, keeping r's coordinates.
func CropMask(m *image.Gray, r image.Rectangle) *image.Gray {
	out := image.NewGray(r)
	inter := r.Intersect(m.Rect)
	for y := inter.Min.Y; y < inter.Max.Y; y++ {
		copy(out.Pix[out.PixOffset(inter.Min.X, y):out.PixOffset(inter.Max.X-1, y)+1],
			m.Pix[m.PixOffset(inter.Min.X, y):m.PixOffset(inter.Max.X-1, y)+1])
	}
	return out
}

// EncodePNGBase64 encodes img as PNG, optionally scaling it first.
// A scale of 1 or less than or equal to 0 keeps the original size.
func EncodePNGBase64(img image.Image, scale float64) (*EncodedImage, error) {
	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(img.Bounds().Dx())*scale))
		newHeight := max(1, int(float64(img.Bounds().Dy())*scale))
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
