package pipeline

import (
	"image"

	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/region"
)

// Tool is one configurable processing step.
//
// Process must not modify the context; it describes its output in the
// returned Result, which the pipeline applies. Results may be memoised and
// handed out again, so their images and masks must not be modified after
// they are returned.
type Tool interface {
	// Name returns the tool kind, such as "channel_threshold".
	Name() string

	// Process runs the tool against the current state of ictx.
	Process(ictx *ImageContext) (*Result, error)

	// Clone returns an independent copy of the tool and its configuration.
	Clone() Tool
}

// RawTargeted is implemented by ROI tools that read the source image. Such
// tools run before the ROI tools that read the pre-processed image.
type RawTargeted interface {
	TargetsRaw() bool
}

// Finalizer is implemented by cleanup tools that must be the last enabled
// tool of their stage, such as mask consolidation.
type Finalizer interface {
	Final() bool
}

// Result is the output of one tool. Which fields are used depends on the
// stage the tool runs in.
type Result struct {
	// Image replaces the current image (exposure fix, pre-processing).
	Image image.Image

	// Mask is a partial mask (threshold) or the new current mask (cleanup).
	Mask *image.Gray

	// Regions are added to the registry (ROI).
	Regions []region.Region

	// Features are merged into the context (feature extraction).
	Features map[string]float64

	// Images are generated outputs keyed by name (image generation).
	Images map[string]image.Image

	// Consolidation is set by the consolidation tool.
	Consolidation *consolidation.Result
}

// StageTool is the descriptor of one configured tool.
type StageTool struct {
	ID      string
	Stage   StageKind
	Enabled bool
	Tool    Tool

	memo        *Result
	memoToken   Token
	invalidated bool
}

// NewStageTool creates an enabled descriptor.
func NewStageTool(id string, stage StageKind, tool Tool) *StageTool {
	return &StageTool{ID: id, Stage: stage, Enabled: true, Tool: tool}
}

// Cached reports whether the descriptor holds a memoised result.
func (st *StageTool) Cached() bool {
	return st.memo != nil
}

// Invalidate drops the memoised result.
func (st *StageTool) Invalidate() {
	if st.memo != nil {
		st.invalidated = true
	}
	st.memo = nil
	st.memoToken = Token{}
}

func (st *StageTool) clone() *StageTool {
	c := *st
	if st.Tool != nil {
		c.Tool = st.Tool.Clone()
	}
	return &c
}

// ToolInfo is a read-only view of a descriptor.
type ToolInfo struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Stage   StageKind `json:"-"`
	StageID string    `json:"stage"`
	Enabled bool      `json:"enabled"`
	Cached  bool      `json:"cached"`
	Index   int       `json:"index"`
}

func (st *StageTool) info(index int) ToolInfo {
	kind := ""
	if st.Tool != nil {
		kind = st.Tool.Name()
	}
	return ToolInfo{
		ID: st.ID, Kind: kind, Stage: st.Stage, StageID: st.Stage.String(),
		Enabled: st.Enabled, Cached: st.Cached(), Index: index,
	}
}
