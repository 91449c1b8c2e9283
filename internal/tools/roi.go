package tools

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/region"
)

type roiParams struct {
	Name  string `yaml:"name"`
	Tag   string `yaml:"tag"`
	Shape string `yaml:"shape"`

	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`

	CX     int `yaml:"cx"`
	CY     int `yaml:"cy"`
	Radius int `yaml:"radius"`

	ToolID     string `yaml:"tool_id"`
	KernelSize int    `yaml:"kernel_size"`

	// Target is "raw" or "preprocessed": the image an automatic region is
	// fitted to.
	Target string `yaml:"target"`

	// Channel, Min and Max fit a rectangle automatically around the pixels
	// whose channel value lies in [Min, Max], grown by Margin.
	Channel string `yaml:"channel"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Margin  int    `yaml:"margin"`
}

type roiTool struct {
	p       roiParams
	tag     region.Tag
	shape   region.Shape
	channel imaging.Channel
	auto    bool
}

func newROI(params map[string]any) (pipeline.Tool, error) {
	p := roiParams{Target: "preprocessed", Max: 255}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, errors.New("region name is required")
	}

	t := &roiTool{p: p}
	var err error
	if t.tag, err = region.ParseTag(p.Tag); err != nil {
		return nil, err
	}
	if t.shape, err = region.ParseShape(p.Shape); err != nil {
		return nil, err
	}
	switch strings.ToLower(p.Target) {
	case "raw", "preprocessed":
	default:
		return nil, fmt.Errorf("unknown target: %s", p.Target)
	}

	if p.Channel != "" {
		if t.channel, err = imaging.ParseChannel(p.Channel); err != nil {
			return nil, err
		}
		if err := checkRange(p.Min, p.Max); err != nil {
			return nil, err
		}
		t.auto = true
		t.shape = region.Rectangle
		return t, nil
	}

	if t.shape == region.Circle && p.Radius <= 0 {
		return nil, fmt.Errorf("circle region %s needs a positive radius", p.Name)
	}
	if t.shape == region.Rectangle && (p.X2 <= p.X1 || p.Y2 <= p.Y1) {
		return nil, fmt.Errorf("rectangle region %s is empty", p.Name)
	}
	return t, nil
}

func (t *roiTool) Name() string { return "roi" }

func (t *roiTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

// TargetsRaw reports whether the region is fitted to the source image.
func (t *roiTool) TargetsRaw() bool {
	return strings.EqualFold(t.p.Target, "raw")
}

func (t *roiTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	var r region.Region
	switch {
	case t.auto:
		src := ictx.Image
		if t.TargetsRaw() {
			src = ictx.Source
		}
		sel := imaging.InRange(imaging.ExtractChannel(src, t.channel), uint8(t.p.Min), uint8(t.p.Max), false)
		bb, ok := foregroundBounds(sel)
		if !ok {
			return nil, fmt.Errorf("no pixel of %s in [%d, %d] for region %s", t.channel, t.p.Min, t.p.Max, t.p.Name)
		}
		bb = bb.Inset(-t.p.Margin).Intersect(src.Bounds())
		r = region.NewRect(t.p.Name, t.tag, bb)
	case t.shape == region.Circle:
		r = region.NewCircle(t.p.Name, t.tag, image.Pt(t.p.CX, t.p.CY), t.p.Radius)
	default:
		r = region.NewRect(t.p.Name, t.tag, image.Rect(t.p.X1, t.p.Y1, t.p.X2, t.p.Y2))
	}
	r.ToolID = t.p.ToolID
	r.KernelSize = t.p.KernelSize
	return &pipeline.Result{Regions: []region.Region{r}}, nil
}

func foregroundBounds(m *image.Gray) (image.Rectangle, bool) {
	var bb image.Rectangle
	found := false
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				bb, found = px, true
				continue
			}
			bb = bb.Union(px)
		}
	}
	return bb, found
}

func checkRange(lo, hi int) error {
	if lo < 0 || hi > 255 || lo > hi {
		return fmt.Errorf("range [%d, %d] must lie within [0, 255] with min <= max", lo, hi)
	}
	return nil
}
