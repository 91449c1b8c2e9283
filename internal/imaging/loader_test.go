package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// writePNG encodes img into a PNG file under t.TempDir and returns its path.
func writePNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createTestImage creates a solid-colour PNG file and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	return writePNG(t, "solid.png", createInMemoryImage(width, height, c))
}

// createTestImageWithPattern creates a four-quadrant PNG file and returns its path.
func createTestImageWithPattern(t *testing.T, width, height int) string {
	t.Helper()
	return writePNG(t, "pattern.png", createPatternImage(width, height))
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImageWithPattern(t, 100, 100)

	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	bounds := img1.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x100", bounds.Dx(), bounds.Dy())
	}

	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "invalid.png")
	if err := os.WriteFile(invalid, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", "/nonexistent/path/to/image.png", ErrUnreadable},
		{"not an image", invalid, ErrUndecodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImageCache().Load(tt.path)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load error = %v, want %v", err, tt.want)
			}
			var se *SourceError
			if !errors.As(err, &se) || se.Path != tt.path {
				t.Errorf("error should be a *SourceError for %s, got %#v", tt.path, err)
			}
		})
	}
}

func TestImageCache_ClearAndEvict(t *testing.T) {
	cache := NewImageCache()
	a := createTestImageWithPattern(t, 50, 50)
	b := writePNG(t, "other.png", createPatternImage(20, 20))

	for _, p := range []string{a, b} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	cache.Evict(a)
	if cache.Len() != 1 {
		t.Errorf("Evict left %d images, want 1", cache.Len())
	}
	cache.Evict("/nonexistent/path")

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Clear left %d images", cache.Len())
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImageWithPattern(t, 50, 50)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(imgPath); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestLoadSource(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"usable photo", func(t *testing.T) string { return createTestImageWithPattern(t, 64, 64) }, nil},
		{"blank frame", func(t *testing.T) string { return createTestImage(t, 64, 64, color.RGBA{10, 10, 10, 255}) }, ErrUniform},
		{"too small", func(t *testing.T) string { return createTestImageWithPattern(t, 8, 8) }, ErrTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewImageCache()
			path := tt.path(t)

			img, err := LoadSource(cache, path, DefaultSourceCheck)
			if tt.want == nil {
				if err != nil || img == nil {
					t.Fatalf("LoadSource failed: %v", err)
				}
				return
			}

			if !errors.Is(err, tt.want) {
				t.Fatalf("LoadSource error = %v, want %v", err, tt.want)
			}
			var se *SourceError
			if errors.As(err, &se) && se.Path != path {
				t.Errorf("SourceError.Path = %q, want %q", se.Path, path)
			}
			if cache.Len() != 0 {
				t.Error("rejected source should be evicted from the cache")
			}
		})
	}
}

func TestReadSource(t *testing.T) {
	path := createTestImageWithPattern(t, 64, 64)
	img, err := ReadSource(path, DefaultSourceCheck)
	if err != nil || img.Bounds().Dx() != 64 {
		t.Fatalf("ReadSource = %v, %v", img, err)
	}

	// Every call decodes the file again.
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, createInMemoryImage(64, 64, color.Black)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = ReadSource(path, DefaultSourceCheck)
	var se *SourceError
	if !errors.Is(err, ErrUniform) || !errors.As(err, &se) || se.Path != path {
		t.Errorf("ReadSource error = %v, want a uniform source at %s", err, path)
	}

	if _, err := ReadSource(filepath.Join(t.TempDir(), "missing.png"), DefaultSourceCheck); !errors.Is(err, ErrUnreadable) {
		t.Errorf("ReadSource error = %v, want ErrUnreadable", err)
	}
}

func TestCheckSource_Disabled(t *testing.T) {
	img := createInMemoryImage(4, 4, color.White)
	if err := CheckSource(img, SourceCheck{}); err != nil {
		t.Errorf("empty check should accept anything, got %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})

	info, err := LoadImageInfo(cache, imgPath)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Width != 200 || info.Height != 150 {
		t.Errorf("size = %dx%d, want 200x150", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}

	if _, err := LoadImageInfo(cache, "/nonexistent/image.png"); err == nil {
		t.Error("LoadImageInfo should fail for non-existent file")
	}
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.png": true, "b.JPG": true, "c.jpeg": true, "d.gif": true,
		"e.txt": false, "noext": false,
	}
	for path, want := range tests {
		if got := IsImageFile(path); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", path, got, want)
		}
	}
}
