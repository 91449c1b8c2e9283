package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Source problem sentinels. A *SourceError wraps exactly one of these.
var (
	ErrUnreadable  = errors.New("source image cannot be read")
	ErrUndecodable = errors.New("source image cannot be decoded")
	ErrTooSmall    = errors.New("source image is smaller than the minimum size")
	ErrUniform     = errors.New("source image is blank")
)

// SourceError reports why an input image is unusable. It is raised before any
// pipeline stage runs and is never a pipeline defect.
type SourceError struct {
	Path string
	Err  error
	Msg  string
}

func (e *SourceError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Err, e.Msg)
}

func (e *SourceError) Unwrap() error { return e.Err }

// SourceCheck configures the checks applied by LoadSource.
type SourceCheck struct {
	// MinWidth and MinHeight reject frames below the given size. Zero
	// disables the check.
	MinWidth  int
	MinHeight int

	// RejectUniform rejects frames whose every sampled pixel has the same
	// colour (lens cap on, wrong camera, blank export).
	RejectUniform bool
}

// DefaultSourceCheck is applied by callers that do not configure their own.
var DefaultSourceCheck = SourceCheck{MinWidth: 16, MinHeight: 16, RejectUniform: true}

// ImageCache provides thread-safe caching of decoded source images.
//
// The cache stores decoded image.Image objects keyed by their file path. The
// JSON-RPC server keeps one cache for its lifetime so repeated runs against
// the same photo skip decoding; batch runs use a fresh cache per invocation.
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear().
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats are
//     PNG, JPEG, and GIF.
//
// Returns a *SourceError wrapping ErrUnreadable or ErrUndecodable on failure.
// The image is cached using the exact path string provided.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Path: path, Err: ErrUnreadable, Msg: err.Error()}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &SourceError{Path: path, Err: ErrUndecodable, Msg: err.Error()}
	}
	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ReadSource decodes path without caching and applies check. Batch runs
// read every image once, so they skip the cache.
func ReadSource(path string, check SourceCheck) (image.Image, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if err := CheckSource(img, check); err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			se.Path = path
		}
		return nil, err
	}
	return img, nil
}

// LoadSource loads path through the cache and applies check.
//
// A cached image that fails the check is evicted so the next attempt reads
// the file again.
func LoadSource(cache *ImageCache, path string, check SourceCheck) (image.Image, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	if err := CheckSource(img, check); err != nil {
		cache.Evict(path)
		var se *SourceError
		if errors.As(err, &se) {
			se.Path = path
		}
		return nil, err
	}
	return img, nil
}

// CheckSource applies check to an already decoded image.
func CheckSource(img image.Image, check SourceCheck) error {
	b := img.Bounds()
	if b.Dx() < check.MinWidth || b.Dy() < check.MinHeight {
		return &SourceError{Err: ErrTooSmall,
			Msg: fmt.Sprintf("got %dx%d, need at least %dx%d", b.Dx(), b.Dy(), check.MinWidth, check.MinHeight)}
	}
	if check.RejectUniform && isUniform(img) {
		return &SourceError{Err: ErrUniform}
	}
	return nil
}

// isUniform samples a coarse grid and reports whether every sample matches
// the first pixel.
func isUniform(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	stepX := max(1, b.Dx()/64)
	stepY := max(1, b.Dy()/64)

	r0, g0, b0, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != r0 || g != g0 || bl != b0 {
				return false
			}
		}
	}
	return true
}

// ImageInfo contains metadata about a source image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif", or "unknown", based on file extension.
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and describes it.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}

// IsImageFile reports whether path has an extension the loader can decode.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}
