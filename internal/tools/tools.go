// Package tools provides the stage tools a pipeline document can name.
//
// Tool kinds form a closed table: every kind has a fixed stage and a
// constructor that decodes its parameter map. Parameters arrive as a
// generic map (from YAML documents or JSON-RPC requests) and are decoded
// into typed structs; unknown parameter names are rejected.
package tools

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/leafmask/internal/pipeline"
)

// Kind identifies a tool implementation.
type Kind int

const (
	KindExposure Kind = iota
	KindBlur
	KindMedian
	KindSharpen
	KindROI
	KindChannelThreshold
	KindLumaThreshold
	KindEdgeThreshold
	KindMorphology
	KindConsolidate
	KindShapeFeatures
	KindColorFeatures
	KindMaskImage
	KindOverlayImage
)

// ErrUnknownKind is returned for a tool kind outside the table.
var ErrUnknownKind = errors.New("unknown tool kind")

type kindSpec struct {
	name  string
	stage pipeline.StageKind
	doc   string
	build func(params map[string]any) (pipeline.Tool, error)
}

var kinds = [...]kindSpec{
	KindExposure:         {"exposure", pipeline.StageExposureFix, "Fix exposure automatically or with gamma, contrast and brightness", newExposure},
	KindBlur:             {"blur", pipeline.StagePreProcess, "Gaussian blur", newBlur},
	KindMedian:           {"median", pipeline.StagePreProcess, "Median filter", newMedian},
	KindSharpen:          {"sharpen", pipeline.StagePreProcess, "Unsharp sharpening", newSharpen},
	KindROI:              {"roi", pipeline.StageROI, "Declare a tagged rectangle or circle region", newROI},
	KindChannelThreshold: {"channel_threshold", pipeline.StageThreshold, "Select pixels whose colour channel lies in a range", newChannelThreshold},
	KindLumaThreshold:    {"luma_threshold", pipeline.StageThreshold, "Select pixels brighter (or darker) than a level", newLumaThreshold},
	KindEdgeThreshold:    {"edge_threshold", pipeline.StageThreshold, "Select the areas enclosed by detected edges", newEdgeThreshold},
	KindMorphology:       {"morphology", pipeline.StageMaskCleanup, "Erode, dilate, open or close the mask", newMorphology},
	KindConsolidate:      {"consolidate", pipeline.StageMaskCleanup, "Keep only the fragments that belong to the object", newConsolidate},
	KindShapeFeatures:    {"shape_features", pipeline.StageFeatureExtraction, "Area, perimeter, solidity and bounding size of the mask", newShapeFeatures},
	KindColorFeatures:    {"color_features", pipeline.StageFeatureExtraction, "Mean hue, saturation and value under the mask", newColorFeatures},
	KindMaskImage:        {"mask_image", pipeline.StageImageGeneration, "Render the mask or the masked image", newMaskImage},
	KindOverlayImage:     {"overlay_image", pipeline.StageImageGeneration, "Render hull classifications over the source image", newOverlayImage},
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kinds) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kinds[k].name
}

// Stage returns the stage tools of this kind run in.
func (k Kind) Stage() pipeline.StageKind {
	return kinds[k].stage
}

// ParseKind converts a kind name.
func ParseKind(s string) (Kind, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, k := range kinds {
		if k.name == key {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownKind, s)
}

// Info describes one tool kind.
type Info struct {
	Kind        string `json:"kind"`
	Stage       string `json:"stage"`
	Description string `json:"description"`
}

// Kinds lists every tool kind in stage order.
func Kinds() []Info {
	out := make([]Info, 0, len(kinds))
	for _, s := range pipeline.AllStages {
		for _, k := range kinds {
			if k.stage == s {
				out = append(out, Info{Kind: k.name, Stage: s.String(), Description: k.doc})
			}
		}
	}
	return out
}

// Build creates a tool of the named kind from its parameters and returns
// the stage it belongs to.
func Build(kind string, params map[string]any) (pipeline.Tool, pipeline.StageKind, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, 0, err
	}
	t, err := kinds[k].build(params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build %s tool: %w", k, err)
	}
	return t, k.Stage(), nil
}

// decodeParams decodes params into dst, which holds the defaults.
func decodeParams(params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// rebase moves img to bounds b when the two have the same size.
// disintegration/imaging always returns images anchored at (0,0).
func rebase(img *image.NRGBA, b image.Rectangle) *image.NRGBA {
	if img.Rect.Size() == b.Size() {
		img.Rect = b
	}
	return img
}

// rebaseMask moves a mask anchored at (0,0) to bounds b when the two have
// the same size. bild segmentation results start at the origin.
func rebaseMask(m *image.Gray, b image.Rectangle) *image.Gray {
	if m.Rect.Size() == b.Size() {
		m.Rect = b
	}
	return m
}

func requireMask(ictx *pipeline.ImageContext) error {
	if ictx.Mask == nil {
		return errors.New("no mask to work on")
	}
	return nil
}
