package tools

import (
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/leafmask/internal/diagnostics"
	"github.com/ironsheep/leafmask/internal/features"
	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/pipeline"
)

type featureParams struct {
	// Prefix is prepended to every feature name.
	Prefix string `yaml:"prefix"`

	// Source selects the colour image measured by color_features:
	// "source" (the loaded image) or "image" (after pre-processing).
	Source string `yaml:"source"`
}

func newFeatureParams(params map[string]any) (featureParams, error) {
	p := featureParams{Source: "source"}
	if err := decodeParams(params, &p); err != nil {
		return p, err
	}
	p.Source = strings.ToLower(p.Source)
	if p.Source != "source" && p.Source != "image" {
		return p, fmt.Errorf("unknown feature source: %s", p.Source)
	}
	return p, nil
}

func (p featureParams) named(values map[string]float64) map[string]float64 {
	if p.Prefix == "" {
		return values
	}
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[p.Prefix+k] = v
	}
	return out
}

type shapeFeaturesTool struct {
	p featureParams
}

func newShapeFeatures(params map[string]any) (pipeline.Tool, error) {
	p, err := newFeatureParams(params)
	if err != nil {
		return nil, err
	}
	return &shapeFeaturesTool{p: p}, nil
}

func (t *shapeFeaturesTool) Name() string { return "shape_features" }

func (t *shapeFeaturesTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *shapeFeaturesTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	if err := requireMask(ictx); err != nil {
		return nil, err
	}
	s, err := features.ShapeFeatures(ictx.Mask)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{Features: t.p.named(s.Values())}, nil
}

type colorFeaturesTool struct {
	p featureParams
}

func newColorFeatures(params map[string]any) (pipeline.Tool, error) {
	p, err := newFeatureParams(params)
	if err != nil {
		return nil, err
	}
	return &colorFeaturesTool{p: p}, nil
}

func (t *colorFeaturesTool) Name() string { return "color_features" }

func (t *colorFeaturesTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *colorFeaturesTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	if err := requireMask(ictx); err != nil {
		return nil, err
	}
	img := ictx.Source
	if t.p.Source == "image" {
		img = ictx.Image
	}
	c, err := features.ColorFeatures(img, ictx.Mask)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{Features: t.p.named(c.Values())}, nil
}

type maskImageParams struct {
	// Name is the key of the image in the run's outputs.
	Name string `yaml:"name"`

	// Mode is "binary" (black and white mask) or "cutout" (the source image
	// with the background painted black).
	Mode string `yaml:"mode"`

	// Crop limits the output to the working area.
	Crop bool `yaml:"crop"`
}

type maskImageTool struct {
	p maskImageParams
}

func newMaskImage(params map[string]any) (pipeline.Tool, error) {
	p := maskImageParams{Name: "mask", Mode: "binary"}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	p.Mode = strings.ToLower(p.Mode)
	if p.Mode != "binary" && p.Mode != "cutout" {
		return nil, fmt.Errorf("unknown mask image mode: %s", p.Mode)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("image name must not be empty")
	}
	return &maskImageTool{p: p}, nil
}

func (t *maskImageTool) Name() string { return "mask_image" }

func (t *maskImageTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *maskImageTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	if err := requireMask(ictx); err != nil {
		return nil, err
	}
	mask := ictx.Mask
	src := ictx.Source
	if t.p.Crop {
		wb := ictx.WorkBounds()
		mask = imaging.CropMask(mask, wb)
		cropped, err := imaging.Crop(src, wb)
		if err != nil {
			return nil, err
		}
		src = rebase(cropped, mask.Rect)
	}

	var out image.Image
	if t.p.Mode == "cutout" {
		out = imaging.ApplyMask(src, mask)
	} else {
		out = imaging.MaskToRGBA(mask)
	}
	return &pipeline.Result{Images: map[string]image.Image{t.p.Name: out}}, nil
}

type overlayImageParams struct {
	Name     string  `yaml:"name"`
	Tint     string  `yaml:"tint"`
	Strength float64 `yaml:"strength"`
	Labels   bool    `yaml:"labels"`
	Regions  bool    `yaml:"regions"`
	Grid     int     `yaml:"grid"`
	GridText bool    `yaml:"grid_labels"`
}

type overlayImageTool struct {
	p    overlayImageParams
	opts diagnostics.OverlayOptions
}

func newOverlayImage(params map[string]any) (pipeline.Tool, error) {
	def := diagnostics.DefaultOverlayOptions()
	p := overlayImageParams{Name: "overlay", Strength: def.TintStrength, Labels: def.Labels, Regions: true}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Strength < 0 || p.Strength > 1 {
		return nil, fmt.Errorf("strength must be in [0, 1], got %v", p.Strength)
	}
	if p.Grid < 0 {
		return nil, fmt.Errorf("grid spacing must not be negative, got %d", p.Grid)
	}
	if p.Tint != "" {
		c, err := diagnostics.ParseColor(p.Tint)
		if err != nil {
			return nil, err
		}
		def.Tint = c
	}
	def.TintStrength = p.Strength
	def.Labels = p.Labels
	def.Grid, def.GridLabels = p.Grid, p.GridText
	return &overlayImageTool{p: p, opts: def}, nil
}

func (t *overlayImageTool) Name() string { return "overlay_image" }

func (t *overlayImageTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *overlayImageTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	opts := t.opts
	if t.p.Regions {
		opts.Regions = ictx.Regions.All()
	}
	out := diagnostics.Overlay(ictx.Source, ictx.Mask, ictx.Consolidation, opts)
	return &pipeline.Result{Images: map[string]image.Image{t.p.Name: out}}, nil
}
