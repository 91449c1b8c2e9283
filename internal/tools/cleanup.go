package tools

import (
	"errors"
	"fmt"

	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/region"
)

type morphologyParams struct {
	Op         string `yaml:"op"`
	Size       int    `yaml:"size"`
	Shape      string `yaml:"shape"`
	Iterations int    `yaml:"iterations"`

	// Regions names the regions the operation is limited to. Empty means
	// the whole mask.
	Regions []string `yaml:"regions"`
}

type morphologyTool struct {
	p     morphologyParams
	op    morph.Op
	shape morph.KernelShape
}

func newMorphology(params map[string]any) (pipeline.Tool, error) {
	p := morphologyParams{Op: "open", Size: 3, Shape: "ellipse", Iterations: 1}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	t := &morphologyTool{p: p}
	var err error
	if t.op, err = morph.ParseOp(p.Op); err != nil {
		return nil, err
	}
	if t.shape, err = morph.ParseKernelShape(p.Shape); err != nil {
		return nil, err
	}
	if p.Size < 1 || p.Iterations < 1 {
		return nil, fmt.Errorf("size and iterations must be at least 1, got %d and %d", p.Size, p.Iterations)
	}
	return t, nil
}

func (t *morphologyTool) Name() string { return "morphology" }

func (t *morphologyTool) Clone() pipeline.Tool {
	c := *t
	c.p.Regions = append([]string(nil), t.p.Regions...)
	return &c
}

func (t *morphologyTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	if err := requireMask(ictx); err != nil {
		return nil, err
	}
	var regs []region.Region
	for _, name := range t.p.Regions {
		r, ok := ictx.Regions.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown region: %s", name)
		}
		regs = append(regs, r)
	}
	return &pipeline.Result{Mask: morph.Apply(ictx.Mask, t.op, t.p.Size, t.shape, regs, t.p.Iterations)}, nil
}

type consolidateParams struct {
	ToleranceArea     int     `yaml:"tolerance_area"`
	ToleranceDistance int     `yaml:"tolerance_distance"`
	Dilation          int     `yaml:"dilation"`
	KernelShape       string  `yaml:"kernel_shape"`
	SafeRegion        string  `yaml:"safe_region"`
	ProtectBig        bool    `yaml:"protect_big"`
	ProtectClose      bool    `yaml:"protect_close"`
	AreaOverride      int     `yaml:"area_override"`
	Anchor            string  `yaml:"anchor"`
	Position          string  `yaml:"position"`
	SimplifyRatio     float64 `yaml:"simplify_ratio"`
}

// consolidateTool keeps the fragments of the mask that belong to the object.
// It must be the last enabled cleanup tool.
type consolidateTool struct {
	p     consolidateParams
	shape morph.KernelShape
}

func newConsolidate(params map[string]any) (pipeline.Tool, error) {
	p := consolidateParams{ToleranceArea: 1000, ToleranceDistance: 50, KernelShape: "rect"}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	shape, err := morph.ParseKernelShape(p.KernelShape)
	if err != nil {
		return nil, err
	}
	if p.Position != "" {
		if _, err := region.ParsePosition(p.Position); err != nil {
			return nil, err
		}
	}
	if p.SimplifyRatio < 0 || p.AreaOverride < 0 {
		return nil, errors.New("simplify_ratio and area_override must not be negative")
	}
	return &consolidateTool{p: p, shape: shape}, nil
}

func (t *consolidateTool) Name() string { return "consolidate" }

func (t *consolidateTool) Clone() pipeline.Tool {
	c := *t
	return &c
}

// Final marks the tool as the one that must close the cleanup stage.
func (t *consolidateTool) Final() bool { return true }

func (t *consolidateTool) Process(ictx *pipeline.ImageContext) (*pipeline.Result, error) {
	if err := requireMask(ictx); err != nil {
		return nil, err
	}
	opts, err := t.options(ictx)
	if err != nil {
		return nil, err
	}
	mask, res, err := consolidation.BuildCleanedMask(ictx.Mask, opts)
	if err != nil {
		return nil, err
	}
	if res.Reference == nil {
		return nil, consolidation.ErrNoObject
	}
	return &pipeline.Result{Mask: mask, Consolidation: res}, nil
}

// options resolves region names and defaults against the context. The
// anchor defaults to the working area and the position to the pipeline's
// boundary position.
func (t *consolidateTool) options(ictx *pipeline.ImageContext) (consolidation.Options, error) {
	opts := consolidation.Options{
		ClassifyParams: consolidation.ClassifyParams{
			ToleranceArea:     t.p.ToleranceArea,
			ToleranceDistance: t.p.ToleranceDistance,
			Dilation:          t.p.Dilation,
			ProtectBig:        t.p.ProtectBig,
			ProtectClose:      t.p.ProtectClose,
			AreaOverride:      t.p.AreaOverride,
		},
		Position:      ictx.Settings.BoundaryPosition,
		KernelShape:   t.shape,
		SimplifyRatio: t.p.SimplifyRatio,
	}
	if t.p.Position != "" {
		opts.Position, _ = region.ParsePosition(t.p.Position)
	}

	if t.p.Anchor != "" {
		r, ok := ictx.Regions.Get(t.p.Anchor)
		if !ok {
			return opts, fmt.Errorf("unknown anchor region: %s", t.p.Anchor)
		}
		opts.Anchor = &r
	} else {
		r := region.NewRect("work", region.TagHelper, ictx.WorkBounds())
		opts.Anchor = &r
	}

	switch {
	case t.p.SafeRegion != "":
		r, ok := ictx.Regions.Get(t.p.SafeRegion)
		if !ok {
			return opts, fmt.Errorf("unknown safe region: %s", t.p.SafeRegion)
		}
		opts.SafeRegion = &r
	default:
		if safe := ictx.Regions.ByTag(region.TagSafe); len(safe) > 0 {
			opts.SafeRegion = &safe[0]
		}
	}
	return opts, nil
}
