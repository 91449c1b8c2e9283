package report

import (
	"time"

	"github.com/ironsheep/leafmask/internal/batch"
	"github.com/ironsheep/leafmask/internal/features"
	"github.com/ironsheep/leafmask/internal/pipeline"
)

// Writer renders a batch summary.
type Writer interface {
	Write(s *batch.Summary) (int, error)
}

// Document is the serialisable form of a batch summary.
type Document struct {
	Generated   time.Time      `json:"generated"`
	Total       int            `json:"total"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	ElapsedMS   int64          `json:"elapsed_ms"`
	ErrorCounts map[string]int `json:"error_counts,omitempty"`
	Images      []ImageEntry   `json:"images"`
	Features    FeatureTable   `json:"features"`
}

// ImageEntry describes one processed image.
type ImageEntry struct {
	Path      string       `json:"path"`
	Success   bool         `json:"success"`
	ElapsedMS int64        `json:"elapsed_ms"`
	Message   string       `json:"message"`
	Errors    []ErrorEntry `json:"errors,omitempty"`

	// Hulls and Kept describe the consolidation step, when one ran.
	Hulls int `json:"hulls,omitempty"`
	Kept  int `json:"kept,omitempty"`
}

// ErrorEntry is one run error.
type ErrorEntry struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	ToolID  string `json:"tool_id,omitempty"`
	Message string `json:"message"`
}

// FeatureTable holds the features of successful images. Columns is the
// sorted union of feature names; Present is false where an image lacks a
// column.
type FeatureTable struct {
	Columns []string     `json:"columns"`
	Rows    []FeatureRow `json:"rows"`
}

// FeatureRow holds one image's features, aligned with the table columns.
type FeatureRow struct {
	Path    string    `json:"path"`
	Values  []float64 `json:"values"`
	Present []bool    `json:"present"`
}

// NewDocument converts s.
func NewDocument(s *batch.Summary, now time.Time) *Document {
	d := &Document{
		Generated: now,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
		ElapsedMS: s.Elapsed.Milliseconds(),
		Images:    make([]ImageEntry, 0, len(s.Outcomes)),
		Features:  NewFeatureTable(s.Outcomes),
	}
	if len(s.ErrorCounts) > 0 {
		d.ErrorCounts = make(map[string]int, len(s.ErrorCounts))
		for k, n := range s.ErrorCounts {
			d.ErrorCounts[k.String()] = n
		}
	}
	for _, o := range s.Outcomes {
		d.Images = append(d.Images, NewImageEntry(o.Path, o.Report))
	}
	return d
}

// NewImageEntry converts a single run report.
func NewImageEntry(path string, r *pipeline.RunReport) ImageEntry {
	e := ImageEntry{Path: path}
	if r == nil {
		return e
	}
	e.Success = r.Success
	e.ElapsedMS = r.Elapsed.Milliseconds()
	e.Message = r.Message
	for _, se := range r.Errors {
		e.Errors = append(e.Errors, ErrorEntry{
			Kind: se.Kind.String(), Stage: se.Stage.String(), ToolID: se.ToolID, Message: se.Message,
		})
	}
	if c := r.Consolidation; c != nil {
		e.Hulls = len(c.Original)
		e.Kept = c.Kept
	}
	return e
}

// NewFeatureTable merges the features of the successful outcomes.
func NewFeatureTable(outcomes []batch.Outcome) FeatureTable {
	names := make(map[string]float64)
	for _, o := range outcomes {
		if !o.Success() {
			continue
		}
		for k := range o.Report.Features {
			names[k] = 0
		}
	}
	t := FeatureTable{Columns: features.Names(names), Rows: []FeatureRow{}}

	for _, o := range outcomes {
		if !o.Success() {
			continue
		}
		row := FeatureRow{
			Path:    o.Path,
			Values:  make([]float64, len(t.Columns)),
			Present: make([]bool, len(t.Columns)),
		}
		for i, c := range t.Columns {
			row.Values[i], row.Present[i] = o.Report.Features[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
