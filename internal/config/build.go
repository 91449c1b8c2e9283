package config

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/tools"
)

// Build validates doc and creates its pipeline. Entries without an ID get
// a generated one of the form "<kind>-<8 hex digits>".
func Build(doc *Document, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	settings, err := doc.Settings.Resolve()
	if err != nil {
		return nil, err
	}

	p := pipeline.New(settings, opts...)
	for i, tc := range doc.Tools {
		tool, stage, err := tools.Build(tc.Kind, tc.Params)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, tc.ID, err)
		}
		id := tc.ID
		if id == "" {
			id = GenerateID(tc.Kind)
		}
		st := pipeline.NewStageTool(id, stage, tool)
		st.Enabled = tc.IsEnabled()
		if err := p.Add(st); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, id, err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// GenerateID returns a fresh tool ID for kind.
func GenerateID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
}
