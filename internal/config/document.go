package config

import (
	"errors"
	"fmt"

	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/region"
	"github.com/ironsheep/leafmask/internal/tools"
)

// CurrentVersion is the document version this build reads and writes.
const CurrentVersion = 1

// Document is a persisted pipeline.
type Document struct {
	Version  int          `yaml:"version"`
	Settings SettingsDoc  `yaml:"settings"`
	Tools    []ToolConfig `yaml:"tools"`
}

// SettingsDoc holds pipeline settings as written in a document. Empty
// values keep the defaults of pipeline.DefaultSettings.
type SettingsDoc struct {
	Merge             string `yaml:"merge,omitempty" json:"merge,omitempty"`
	Cache             *bool  `yaml:"cache,omitempty" json:"cache,omitempty"`
	BoundaryPosition  string `yaml:"boundary_position,omitempty" json:"boundary_position,omitempty"`
	RegionKernelSize  int    `yaml:"region_kernel_size,omitempty" json:"region_kernel_size,omitempty"`
	RegionKernelShape string `yaml:"region_kernel_shape,omitempty" json:"region_kernel_shape,omitempty"`
}

// ToolConfig is one tool entry.
type ToolConfig struct {
	// ID identifies the tool within the pipeline. An empty ID is generated
	// when the pipeline is built.
	ID string `yaml:"id,omitempty"`

	Kind string `yaml:"kind"`

	// Stage is optional; when set it must match the kind's stage.
	Stage string `yaml:"stage,omitempty"`

	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`

	Params map[string]any `yaml:"params,omitempty"`
}

// IsEnabled reports whether the entry is enabled.
func (t ToolConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Validate checks the document without building its tools' parameters.
func (d *Document) Validate() error {
	if d.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	if _, err := d.Settings.Resolve(); err != nil {
		return err
	}
	if len(d.Tools) == 0 {
		return ErrNoTools
	}

	seen := make(map[string]bool, len(d.Tools))
	for i, t := range d.Tools {
		if t.Kind == "" {
			return fmt.Errorf("%w: entry %d", ErrMissingKind, i)
		}
		k, err := tools.ParseKind(t.Kind)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if t.Stage != "" {
			s, err := pipeline.ParseStageKind(t.Stage)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			if s != k.Stage() {
				return fmt.Errorf("%w: %s runs in %s, not %s", ErrStageMismatch, k, k.Stage(), s)
			}
		}
		if t.ID == "" {
			continue
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateToolID, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Resolve converts the settings into pipeline settings.
func (s SettingsDoc) Resolve() (pipeline.Settings, error) {
	out := pipeline.DefaultSettings()
	var errs []error

	if s.Merge != "" {
		m, err := pipeline.ParseMergeMode(s.Merge)
		errs = append(errs, err)
		out.Merge = m
	}
	if s.Cache != nil {
		out.CacheEnabled = *s.Cache
	}
	if s.BoundaryPosition != "" {
		p, err := region.ParsePosition(s.BoundaryPosition)
		errs = append(errs, err)
		out.BoundaryPosition = p
	}
	if s.RegionKernelSize < 0 {
		errs = append(errs, fmt.Errorf("region kernel size must not be negative, got %d", s.RegionKernelSize))
	} else if s.RegionKernelSize > 0 {
		out.RegionKernelSize = s.RegionKernelSize
	}
	if s.RegionKernelShape != "" {
		k, err := morph.ParseKernelShape(s.RegionKernelShape)
		errs = append(errs, err)
		out.RegionKernelShape = k
	}

	if err := errors.Join(errs...); err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return out, nil
}

// SettingsFrom converts pipeline settings into their document form.
func SettingsFrom(s pipeline.Settings) SettingsDoc {
	cache := s.CacheEnabled
	doc := SettingsDoc{
		Cache:             &cache,
		BoundaryPosition:  s.BoundaryPosition.String(),
		RegionKernelSize:  s.RegionKernelSize,
		RegionKernelShape: s.RegionKernelShape.String(),
	}
	if s.Merge != pipeline.MergeUnset {
		doc.Merge = s.Merge.String()
	}
	return doc
}

// Default returns a pipeline for green plants photographed against soil or
// a neutral background.
func Default() *Document {
	return &Document{
		Version:  CurrentVersion,
		Settings: SettingsFrom(pipeline.DefaultSettings()),
		Tools: []ToolConfig{
			{ID: "exposure", Kind: "exposure", Params: map[string]any{"mode": "auto", "clip": 0.01}},
			{ID: "denoise", Kind: "median", Params: map[string]any{"radius": 1}},
			{ID: "green", Kind: "channel_threshold", Params: map[string]any{"channel": "lab_a", "min": 0, "max": 120}},
			{ID: "saturated", Kind: "channel_threshold", Params: map[string]any{"channel": "saturation", "min": 40, "max": 255}},
			{ID: "close", Kind: "morphology", Params: map[string]any{"op": "close", "size": 5, "shape": "ellipse"}},
			{ID: "consolidate", Kind: "consolidate", Params: map[string]any{"tolerance_area": 1000, "tolerance_distance": 50, "dilation": 3}},
			{ID: "shape", Kind: "shape_features"},
			{ID: "color", Kind: "color_features"},
			{ID: "mask", Kind: "mask_image", Params: map[string]any{"mode": "binary"}},
			{ID: "overlay", Kind: "overlay_image"},
		},
	}
}
