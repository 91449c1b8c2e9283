package pipeline

import (
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/region"
)

// StageKind identifies one pipeline stage. The numeric order is the
// execution order.
type StageKind int

const (
	StageExposureFix StageKind = iota
	StagePreProcess
	StageROI
	StageThreshold
	StageMaskCleanup
	StageFeatureExtraction
	StageImageGeneration
)

// AllStages lists every stage in execution order.
var AllStages = []StageKind{
	StageExposureFix, StagePreProcess, StageROI, StageThreshold,
	StageMaskCleanup, StageFeatureExtraction, StageImageGeneration,
}

var stageNames = [...]string{
	StageExposureFix:       "exposure_fix",
	StagePreProcess:        "pre_process",
	StageROI:               "roi",
	StageThreshold:         "threshold",
	StageMaskCleanup:       "mask_cleanup",
	StageFeatureExtraction: "feature_extraction",
	StageImageGeneration:   "image_generation",
}

func (s StageKind) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStageKind converts a stage name. Hyphens and underscores are
// interchangeable.
func ParseStageKind(s string) (StageKind, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range stageNames {
		if name == key {
			return StageKind(i), nil
		}
	}
	return StageExposureFix, fmt.Errorf("unknown stage: %s", s)
}

// CacheDecision tells how a tool result was obtained.
type CacheDecision int

const (
	// Fresh: the tool had no memo and was processed.
	Fresh CacheDecision = iota
	// Reused: the memo was returned without processing.
	Reused
	// Invalidated: a memo existed but was stale or cleared; the tool was
	// processed again.
	Invalidated
)

func (d CacheDecision) String() string {
	switch d {
	case Fresh:
		return "fresh"
	case Reused:
		return "reused"
	case Invalidated:
		return "invalidated"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// MergeMode selects how partial threshold masks are combined.
type MergeMode int

const (
	MergeUnset MergeMode = iota
	MergeAnd
	MergeOr
)

func (m MergeMode) String() string {
	switch m {
	case MergeAnd:
		return "and"
	case MergeOr:
		return "or"
	case MergeUnset:
		return "unset"
	}
	return fmt.Sprintf("merge(%d)", int(m))
}

// ParseMergeMode converts "and" or "or". An empty string yields MergeUnset.
func ParseMergeMode(s string) (MergeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return MergeUnset, nil
	case "and":
		return MergeAnd, nil
	case "or":
		return MergeOr, nil
	}
	return MergeUnset, fmt.Errorf("unknown merge mode: %s", s)
}

var reducers = map[MergeMode]func(a, b *image.Gray) *image.Gray{
	MergeAnd: imaging.And,
	MergeOr:  imaging.Or,
}

// Settings are the pipeline-wide parameters.
type Settings struct {
	Merge        MergeMode
	CacheEnabled bool

	// BoundaryPosition is the anchor position used by the consolidation
	// tool when biasing its reference selection.
	BoundaryPosition region.Position

	// RegionKernelSize and RegionKernelShape are used for morphology
	// regions that carry no kernel size of their own.
	RegionKernelSize  int
	RegionKernelShape morph.KernelShape
}

// DefaultSettings returns AND merging with caching enabled.
func DefaultSettings() Settings {
	return Settings{
		Merge:             MergeAnd,
		CacheEnabled:      true,
		BoundaryPosition:  region.BottomCenter,
		RegionKernelSize:  3,
		RegionKernelShape: morph.KernelEllipse,
	}
}
