package tools

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/pipeline"
)

type channelThresholdParams struct {
	Channel string `yaml:"channel"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Invert  bool   `yaml:"invert"`
}

type channelThresholdTool struct {
	p       channelThresholdParams
	channel imaging.Channel
}

func newChannelThreshold(params map[string]any) (pipeline.Tool, error) {
	p := channelThresholdParams{Channel: "lab_a", Max: 255}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	ch, err := imaging.ParseChannel(p.Channel)
	if err != nil {
		return nil, err
	}
	if err := checkRange(p.Min, p.Max); err != nil {
		return nil, err
	}
	return &channelThresholdTool{p: p, channel: ch}, nil
}

func (t *channelThresholdTool) Name() string { return "channel_threshold" }

func (t *channelThresholdTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *channelThresholdTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	ch := imaging.ExtractChannel(ictx.Image, t.channel)
	return &pipeline.Result{Mask: imaging.InRange(ch, uint8(t.p.Min), uint8(t.p.Max), t.p.Invert)}, nil
}

type lumaThresholdTool struct {
	Level  int  `yaml:"level"`
	Invert bool `yaml:"invert"`
}

func newLumaThreshold(params map[string]any) (pipeline.Tool, error) {
	t := &lumaThresholdTool{Level: 128}
	if err := decodeParams(params, t); err != nil {
		return nil, err
	}
	if t.Level < 0 || t.Level > 255 {
		return nil, fmt.Errorf("level must be in [0, 255], got %d", t.Level)
	}
	return t, nil
}

func (t *lumaThresholdTool) Name() string { return "luma_threshold" }

func (t *lumaThresholdTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

// Process selects pixels whose luma is at least Level, or below it when
// inverted.
func (t *lumaThresholdTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	m := rebaseMask(segment.Threshold(ictx.Image, uint8(t.Level)), ictx.Bounds())
	if t.Invert {
		invert(m)
	}
	return &pipeline.Result{Mask: m}, nil
}

type edgeThresholdParams struct {
	Low  int     `yaml:"low"`
	High int     `yaml:"high"`
	Blur float64 `yaml:"blur"`

	// Close is the rect kernel used to bridge gaps in the edge outline.
	// Zero disables it.
	Close int `yaml:"close"`

	// Fill turns closed outlines into solid areas. Without it the mask
	// holds only the edges.
	Fill bool `yaml:"fill"`
}

type edgeThresholdTool struct {
	p edgeThresholdParams
}

func newEdgeThreshold(params map[string]any) (pipeline.Tool, error) {
	p := edgeThresholdParams{Low: 50, High: 150, Blur: 1.4, Close: 5, Fill: true}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := checkRange(p.Low, p.High); err != nil {
		return nil, err
	}
	if p.Blur < 0 || p.Close < 0 {
		return nil, fmt.Errorf("blur and close must not be negative, got %v and %d", p.Blur, p.Close)
	}
	return &edgeThresholdTool{p: p}, nil
}

func (t *edgeThresholdTool) Name() string { return "edge_threshold" }

func (t *edgeThresholdTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

func (t *edgeThresholdTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	m := imaging.EdgeMap(ictx.Image, t.p.Low, t.p.High, t.p.Blur)
	if t.p.Close > 0 {
		m = morph.Apply(m, morph.Close, t.p.Close, morph.KernelRect, nil, 1)
	}
	if t.p.Fill {
		m = imaging.FillHoles(m)
	}
	return &pipeline.Result{Mask: m}, nil
}

func invert(m *image.Gray) {
	for i, v := range m.Pix {
		if v == 0 {
			m.Pix[i] = 255
		} else {
			m.Pix[i] = 0
		}
	}
}
