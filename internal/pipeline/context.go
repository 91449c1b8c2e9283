package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"image"
	"maps"

	"github.com/google/uuid"

	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/region"
)

// Token identifies the visible state of an image context. The zero value,
// uuid.Nil, never matches a memo.
type Token = uuid.UUID

// tokenNamespace scopes the name-based UUIDs derived from state digests.
var tokenNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ironsheep/leafmask/token"))

// ComputeToken derives the token of an image, mask and region registry.
// Identical pixels and regions yield identical tokens across runs and
// processes. mask and regions may be nil; a nil registry digests like an
// empty one.
func ComputeToken(img image.Image, mask *image.Gray, regions *region.Registry) Token {
	h := sha256.New()
	imageDigest(h, img)
	return tokenFrom(h.Sum(nil), mask, regions)
}

func tokenFrom(imageSum []byte, mask *image.Gray, regions *region.Registry) Token {
	h := sha256.New()
	h.Write(imageSum)
	maskDigest(h, mask)
	regionsDigest(h, regions)
	return uuid.NewSHA1(tokenNamespace, h.Sum(nil))
}

func imageDigest(h hash.Hash, img image.Image) {
	if img == nil {
		h.Write([]byte{0})
		return
	}
	b := img.Bounds()
	writeRect(h, b)

	switch src := img.(type) {
	case *image.RGBA:
		writeRows(h, src.Pix, src.Stride, b.Dx()*4, b.Dy())
	case *image.NRGBA:
		writeRows(h, src.Pix, src.Stride, b.Dx()*4, b.Dy())
	case *image.Gray:
		writeRows(h, src.Pix, src.Stride, b.Dx(), b.Dy())
	default:
		row := make([]byte, 0, b.Dx()*8)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row = row[:0]
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				row = binary.BigEndian.AppendUint16(row, uint16(r))
				row = binary.BigEndian.AppendUint16(row, uint16(g))
				row = binary.BigEndian.AppendUint16(row, uint16(bl))
				row = binary.BigEndian.AppendUint16(row, uint16(a))
			}
			h.Write(row)
		}
	}
}

func maskDigest(h hash.Hash, m *image.Gray) {
	if m == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	writeRect(h, m.Rect)
	writeRows(h, m.Pix, m.Stride, m.Rect.Dx(), m.Rect.Dy())
}

func regionsDigest(h hash.Hash, regions *region.Registry) {
	var all []region.Region
	if regions != nil {
		all = regions.All()
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(all)))
	h.Write(n[:])
	for _, r := range all {
		fmt.Fprintf(h, "%q %d %d %d %d %q %d;", r.Name, r.Tag, r.Shape, r.Center, r.Radius, r.ToolID, r.KernelSize)
		writeRect(h, r.Rect)
	}
}

func writeRect(h hash.Hash, r image.Rectangle) {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(int64(r.Min.X)))
	binary.BigEndian.PutUint64(buf[8:], uint64(int64(r.Min.Y)))
	binary.BigEndian.PutUint64(buf[16:], uint64(int64(r.Max.X)))
	binary.BigEndian.PutUint64(buf[24:], uint64(int64(r.Max.Y)))
	h.Write(buf[:])
}

func writeRows(h hash.Hash, pix []byte, stride, rowLen, rows int) {
	for y := 0; y < rows; y++ {
		h.Write(pix[y*stride : y*stride+rowLen])
	}
}

// ImageContext is the state of one image flowing through a run.
//
// The current image and mask are owned by the context for the duration of
// a run; tools read them and describe changes through their Result.
type ImageContext struct {
	// Name identifies the image, usually its path.
	Name string

	// Source is the image as loaded; Image is the current, possibly
	// corrected or filtered, image.
	Source image.Image
	Image  image.Image

	// Mask is the current object mask, nil before the threshold stage.
	Mask *image.Gray

	// Regions holds the regions of the current run.
	Regions *region.Registry

	// Token identifies the current image and mask.
	Token Token

	// Settings are the settings of the pipeline running this context.
	Settings Settings

	// Features and Images accumulate the outputs of the feature extraction
	// and image generation stages.
	Features map[string]float64
	Images   map[string]image.Image

	// Consolidation is the last consolidation outcome of the run, if any.
	Consolidation *consolidation.Result

	base *region.Registry

	digestOf  image.Image
	digestSum []byte
}

// NewImageContext creates a context for src. regions are the regions known
// before the run starts and may be nil; they are copied.
func NewImageContext(name string, src image.Image, regions *region.Registry) *ImageContext {
	if regions == nil {
		regions = region.NewRegistry()
	}
	c := &ImageContext{Name: name, Source: src, base: regions.Clone()}
	c.Reset()
	return c
}

// Reset returns the context to its pre-run state: the source image, no
// mask, the initial regions and no accumulated outputs.
func (c *ImageContext) Reset() {
	c.Image = c.Source
	c.Mask = nil
	if c.base == nil {
		c.base = region.NewRegistry()
	}
	c.Regions = c.base.Clone()
	c.Features = make(map[string]float64)
	c.Images = make(map[string]image.Image)
	c.Consolidation = nil
	c.UpdateToken()
}

// UpdateToken recomputes Token from the current image, mask and regions.
// The image digest is reused while the image itself is unchanged.
func (c *ImageContext) UpdateToken() {
	if c.digestSum == nil || c.digestOf != c.Image {
		h := sha256.New()
		imageDigest(h, c.Image)
		c.digestOf, c.digestSum = c.Image, h.Sum(nil)
	}
	c.Token = tokenFrom(c.digestSum, c.Mask, c.Regions)
}

// Bounds returns the bounds of the current image.
func (c *ImageContext) Bounds() image.Rectangle {
	if c.Image == nil {
		return image.Rectangle{}
	}
	return c.Image.Bounds()
}

// WorkBounds returns the bounds of the first keep region, clipped to the
// image, or the whole image when no keep region exists.
func (c *ImageContext) WorkBounds() image.Rectangle {
	if r, ok := c.Regions.KeepBounds(); ok {
		if in := r.Intersect(c.Bounds()); !in.Empty() {
			return in
		}
	}
	return c.Bounds()
}

// AddFeatures merges values into the accumulated features.
func (c *ImageContext) AddFeatures(values map[string]float64) {
	maps.Copy(c.Features, values)
}
