package pipeline

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"sort"
	"time"

	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/region"
)

// ToolDecision records how one tool's result was obtained during a run.
type ToolDecision struct {
	ToolID   string        `json:"tool_id"`
	Stage    StageKind     `json:"-"`
	Decision CacheDecision `json:"-"`
}

// RunReport is the outcome of one run.
type RunReport struct {
	Name    string
	Success bool
	Elapsed time.Duration
	Message string
	Errors  []*StageError

	Decisions []ToolDecision
	Features  map[string]float64
	Mask      *image.Gray
	Images    map[string]image.Image

	Consolidation *consolidation.Result
}

// Processed returns the IDs of the tools that were actually processed, not
// reused.
func (r *RunReport) Processed() []string {
	var out []string
	for _, d := range r.Decisions {
		if d.Decision != Reused {
			out = append(out, d.ToolID)
		}
	}
	return out
}

// ProcessTool returns the result of st for the current state of ictx.
//
// The memo is reused when caching is enabled, cacheOK holds, a memo exists,
// the descriptor was not invalidated and the memo token equals the context
// token. Otherwise a clone of the tool is processed and its result memoised
// under the token observed before processing.
//
// A failure (error, panic or nil result) clears the context token and the
// memo and is returned as a *StageError of kind KindToolFailure.
func (p *Pipeline) ProcessTool(st *StageTool, ictx *ImageContext, cacheOK bool) (*Result, CacheDecision, error) {
	token := ictx.Token
	if p.settings.CacheEnabled && cacheOK && st.memo != nil && !st.invalidated &&
		token != (Token{}) && st.memoToken == token {
		return st.memo, Reused, nil
	}

	decision := Fresh
	if st.memo != nil || st.invalidated {
		decision = Invalidated
	}

	res, err := safeProcess(st.Tool.Clone(), ictx)
	if err == nil && res == nil {
		err = errors.New("tool returned no result")
	}
	if err != nil {
		ictx.Token = Token{}
		st.Invalidate()
		return nil, decision, &StageError{
			Kind: KindToolFailure, Stage: st.Stage, ToolID: st.ID,
			Message: err.Error(), Err: err,
		}
	}

	st.memo, st.memoToken, st.invalidated = res, token, false
	return res, decision, nil
}

func safeProcess(t Tool, ictx *ImageContext) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("tool %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Process(ictx)
}

// run carries the per-run state threaded through the stages.
type run struct {
	p       *Pipeline
	ictx    *ImageContext
	cacheOK bool
	report  *RunReport
}

// Run processes ictx through every enabled tool.
//
// The context is reset first, so repeated runs over the same context start
// from the same state. The run stops at the first error; the report then
// carries it and Success is false.
func (p *Pipeline) Run(ictx *ImageContext) *RunReport {
	start := time.Now()
	report := &RunReport{Name: ictx.Name}

	err := p.execute(ictx, report)

	report.Elapsed = time.Since(start)
	report.Features = maps.Clone(ictx.Features)
	report.Images = maps.Clone(ictx.Images)
	report.Mask = ictx.Mask
	report.Consolidation = ictx.Consolidation

	if err != nil {
		var c Collector
		c.Add(err)
		report.Errors = c.Errors()
		report.Message = err.Error()
		p.logger.Error("run failed", "image", ictx.Name, "error", err, "elapsed", report.Elapsed)
		return report
	}

	report.Success = true
	report.Message = fmt.Sprintf("%d tools, %d processed", len(report.Decisions), len(report.Processed()))
	p.logger.Info("run completed", "image", ictx.Name, "elapsed", report.Elapsed,
		"tools", len(report.Decisions), "processed", len(report.Processed()))
	return report
}

func (p *Pipeline) execute(ictx *ImageContext, report *RunReport) error {
	if ictx.Source == nil {
		return SourceIssue(errors.New("image context has no source image"))
	}
	if err := p.Validate(); err != nil {
		return err
	}

	ictx.Settings = p.settings
	ictx.Reset()

	r := &run{p: p, ictx: ictx, cacheOK: p.settings.CacheEnabled, report: report}
	steps := []func() error{
		func() error { return r.imageStage(StageExposureFix) },
		func() error { return r.imageStage(StagePreProcess) },
		r.roiStage,
		r.thresholdStage,
		r.cleanupStage,
		r.enforce,
		r.featureStage,
		r.imageGenerationStage,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// process runs one tool and threads the sticky cache flag.
func (r *run) process(st *StageTool) (*Result, error) {
	res, decision, err := r.p.ProcessTool(st, r.ictx, r.cacheOK)
	r.report.Decisions = append(r.report.Decisions, ToolDecision{ToolID: st.ID, Stage: st.Stage, Decision: decision})
	if err != nil {
		r.cacheOK = false
		return nil, err
	}
	if decision != Reused {
		r.cacheOK = false
	}
	r.p.logger.Debug("tool done", "image", r.ictx.Name, "tool", st.ID, "stage", st.Stage.String(),
		"decision", decision.String())
	return res, nil
}

func (r *run) enabled(s StageKind) []*StageTool {
	var out []*StageTool
	for _, st := range r.p.tools[r.p.stageStart(s):r.p.stageEnd(s)] {
		if st.Enabled {
			out = append(out, st)
		}
	}
	return out
}

func (r *run) imageStage(s StageKind) error {
	for _, st := range r.enabled(s) {
		res, err := r.process(st)
		if err != nil {
			return err
		}
		if res.Image != nil {
			r.ictx.Image = res.Image
			r.ictx.UpdateToken()
		}
	}
	return nil
}

func (r *run) roiStage() error {
	tools := r.enabled(StageROI)
	sort.SliceStable(tools, func(i, j int) bool { return targetsRaw(tools[i]) && !targetsRaw(tools[j]) })

	for _, st := range tools {
		res, err := r.process(st)
		if err != nil {
			return err
		}
		for _, reg := range res.Regions {
			if err := r.ictx.Regions.Add(reg); err != nil {
				return &StageError{Kind: KindConfiguration, Stage: StageROI, ToolID: st.ID, Message: err.Error(), Err: err}
			}
		}
		if len(res.Regions) > 0 {
			r.ictx.UpdateToken()
		}
	}
	return nil
}

func targetsRaw(st *StageTool) bool {
	t, ok := st.Tool.(RawTargeted)
	return ok && t.TargetsRaw()
}

// thresholdStage builds the coarse mask: unbound partial masks are reduced
// with the configured merge mode, masks of region-bound tools are limited
// to their regions and OR-ed in afterwards. Unbound regions are applied to
// the result.
func (r *run) thresholdStage() error {
	var partials, bound []*image.Gray
	for _, st := range r.enabled(StageThreshold) {
		res, err := r.process(st)
		if err != nil {
			return err
		}
		if res.Mask == nil {
			err := errors.New("threshold tool produced no mask")
			return &StageError{Kind: KindToolFailure, Stage: StageThreshold, ToolID: st.ID, Message: err.Error(), Err: err}
		}
		if regs := r.ictx.Regions.BoundTo(st.ID); len(regs) > 0 {
			bound = append(bound, imaging.KeepRegions(res.Mask, regs))
			continue
		}
		partials = append(partials, res.Mask)
	}

	var mask *image.Gray
	switch {
	case len(partials) > 0:
		reduce, ok := reducers[r.p.settings.Merge]
		if !ok {
			return &StageError{
				Kind: KindConfiguration, Stage: StageThreshold,
				Message: fmt.Sprintf("merge mode %q cannot combine threshold masks", r.p.settings.Merge),
			}
		}
		mask = imaging.CloneMask(partials[0])
		for _, m := range partials[1:] {
			mask = reduce(mask, m)
		}
	case len(bound) > 0:
		mask = imaging.NewMask(r.ictx.Bounds())
	default:
		return &StageError{Kind: KindConfiguration, Stage: StageThreshold, Message: "no enabled threshold tool"}
	}
	for _, m := range bound {
		mask = imaging.Or(mask, m)
	}

	r.ictx.Mask = r.applyRegions(mask)
	r.ictx.UpdateToken()
	return nil
}

// applyRegions applies every unbound keep, delete and morphology region in
// registry order. All keep regions act together, at the position of the
// first one.
func (r *run) applyRegions(mask *image.Gray) *image.Gray {
	keeps := r.ictx.Regions.Unbound(region.TagKeep)
	keptOnce := false
	s := r.p.settings

	for _, reg := range r.ictx.Regions.All() {
		if reg.ToolID != "" {
			continue
		}
		switch {
		case reg.Tag == region.TagKeep:
			if !keptOnce {
				mask = imaging.KeepRegions(mask, keeps)
				keptOnce = true
			}
		case reg.Tag == region.TagDelete:
			imaging.ClearRegion(mask, reg)
		case reg.Tag.IsMorphology():
			op, _ := morph.OpForTag(reg.Tag)
			size := reg.KernelSize
			if size <= 0 {
				size = s.RegionKernelSize
			}
			mask = morph.Apply(mask, op, size, s.RegionKernelShape, []region.Region{reg}, 1)
		}
	}
	return mask
}

func (r *run) cleanupStage() error {
	for _, st := range r.enabled(StageMaskCleanup) {
		res, err := r.process(st)
		if err != nil {
			return err
		}
		if res.Mask != nil {
			r.ictx.Mask = imaging.CloneMask(res.Mask)
			r.ictx.UpdateToken()
		}
		if res.Consolidation != nil {
			r.ictx.Consolidation = res.Consolidation
		}
	}
	return nil
}

// enforce fails the run if any enforce region has no foreground pixel in
// the mask.
func (r *run) enforce() error {
	for _, reg := range r.ictx.Regions.ByTag(region.TagEnforce) {
		if r.ictx.Mask == nil || imaging.CountInRegion(r.ictx.Mask, reg) == 0 {
			return &StageError{
				Kind: KindEnforce, Stage: StageMaskCleanup,
				Message: fmt.Sprintf("enforce region %s has no foreground pixel", reg.Name),
			}
		}
	}
	return nil
}

func (r *run) featureStage() error {
	for _, st := range r.enabled(StageFeatureExtraction) {
		res, err := r.process(st)
		if err != nil {
			return err
		}
		r.ictx.AddFeatures(res.Features)
	}
	return nil
}

func (r *run) imageGenerationStage() error {
	for _, st := range r.enabled(StageImageGeneration) {
		res, err := r.process(st)
		if err != nil {
			return err
		}
		maps.Copy(r.ictx.Images, res.Images)
	}
	return nil
}
