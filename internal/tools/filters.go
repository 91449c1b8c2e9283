package tools

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/leafmask/internal/pipeline"
)

type exposureParams struct {
	// Mode is "auto" (percentile stretch) or "manual".
	Mode string `yaml:"mode"`

	// Clip is the fraction of pixels clipped at each end by auto mode.
	Clip float64 `yaml:"clip"`

	// Gamma, Contrast and Brightness apply in manual mode. Contrast and
	// Brightness are percentages in [-100, 100].
	Gamma      float64 `yaml:"gamma"`
	Contrast   float64 `yaml:"contrast"`
	Brightness float64 `yaml:"brightness"`
}

type exposureTool struct {
	p exposureParams
}

func newExposure(params map[string]any) (pipeline.Tool, error) {
	p := exposureParams{Mode: "auto", Clip: 0.01, Gamma: 1}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	p.Mode = strings.ToLower(p.Mode)
	switch {
	case p.Mode != "auto" && p.Mode != "manual":
		return nil, fmt.Errorf("unknown exposure mode: %s", p.Mode)
	case p.Clip < 0 || p.Clip >= 0.5:
		return nil, fmt.Errorf("clip must be in [0, 0.5), got %v", p.Clip)
	case p.Gamma <= 0:
		return nil, fmt.Errorf("gamma must be positive, got %v", p.Gamma)
	}
	return &exposureTool{p: p}, nil
}

func (t *exposureTool) Name() string { return "exposure" }

func (t *exposureTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *exposureTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	src := ictx.Image
	if t.p.Mode == "auto" {
		return &pipeline.Result{Image: autoStretch(src, t.p.Clip)}, nil
	}

	out := imaging.AdjustGamma(src, t.p.Gamma)
	if t.p.Contrast != 0 {
		out = imaging.AdjustContrast(out, t.p.Contrast)
	}
	if t.p.Brightness != 0 {
		out = imaging.AdjustBrightness(out, t.p.Brightness)
	}
	return &pipeline.Result{Image: rebase(out, src.Bounds())}, nil
}

// autoStretch maps the clip and 1-clip percentiles of the joint RGB
// histogram onto 0 and 255.
func autoStretch(src image.Image, clip float64) image.Image {
	h := histogram.NewRGBAHistogram(src)
	var bins [256]int
	total := 0
	for i := range bins {
		bins[i] = h.R.Bins[i] + h.G.Bins[i] + h.B.Bins[i]
		total += bins[i]
	}
	if total == 0 {
		return src
	}

	cut := int(math.Floor(clip * float64(total)))
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += bins[lo]
		if acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += bins[hi]
		if acc > cut {
			break
		}
	}
	if hi <= lo {
		return src
	}

	var lut [256]uint8
	scale := 255 / float64(hi-lo)
	for i := range lut {
		lut[i] = uint8(math.Round(math.Max(0, math.Min(255, float64(i-lo)*scale))))
	}
	out := imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
	return rebase(out, src.Bounds())
}

type radiusParams struct {
	Radius float64 `yaml:"radius"`
}

type blurTool struct {
	p radiusParams
}

func newBlur(params map[string]any) (pipeline.Tool, error) {
	p := radiusParams{Radius: 2}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Radius < 0 {
		return nil, fmt.Errorf("radius must not be negative, got %v", p.Radius)
	}
	return &blurTool{p: p}, nil
}

func (t *blurTool) Name() string { return "blur" }

func (t *blurTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *blurTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	return &pipeline.Result{Image: blur.Gaussian(ictx.Image, t.p.Radius)}, nil
}

type medianTool struct {
	p radiusParams
}

func newMedian(params map[string]any) (pipeline.Tool, error) {
	p := radiusParams{Radius: 1}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Radius < 0 {
		return nil, fmt.Errorf("radius must not be negative, got %v", p.Radius)
	}
	return &medianTool{p: p}, nil
}

func (t *medianTool) Name() string { return "median" }

func (t *medianTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *medianTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	return &pipeline.Result{Image: effect.Median(ictx.Image, t.p.Radius)}, nil
}

type sharpenTool struct {
	Sigma float64 `yaml:"sigma"`
}

func newSharpen(params map[string]any) (pipeline.Tool, error) {
	t := &sharpenTool{Sigma: 1}
	if err := decodeParams(params, t); err != nil {
		return nil, err
	}
	if t.Sigma <= 0 {
		return nil, fmt.Errorf("sigma must be positive, got %v", t.Sigma)
	}
	return t, nil
}

func (t *sharpenTool) Name() string { return "sharpen" }

func (t *sharpenTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *sharpenTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	return &pipeline.Result{Image: rebase(imaging.Sharpen(ictx.Image, t.Sigma), ictx.Image.Bounds())}, nil
}
