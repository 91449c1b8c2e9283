package report

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/leafmask/internal/batch"
)

// SaveImages writes the generated images of every successful outcome to
// dir as "<image base name>_<output name>.png" and returns the written
// paths.
func SaveImages(dir string, outcomes []batch.Outcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, o := range outcomes {
		if !o.Success() {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(o.Path), filepath.Ext(o.Path))
		for _, name := range slices.Sorted(maps.Keys(o.Report.Images)) {
			path := filepath.Join(dir, base+"_"+name+".png")
			if err := imaging.Save(o.Report.Images[name], path); err != nil {
				return written, fmt.Errorf("failed to save %s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}
