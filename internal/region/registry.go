package region

import (
	"fmt"
	"image"
)

// Registry holds the regions of one run in insertion order.
//
// Registry is not safe for concurrent use; each image context owns its own.
type Registry struct {
	regions []Region
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add appends a region. Names must be unique and non-empty.
func (r *Registry) Add(reg Region) error {
	if reg.Name == "" {
		return fmt.Errorf("region name must not be empty")
	}
	if _, ok := r.index[reg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, reg.Name)
	}
	r.index[reg.Name] = len(r.regions)
	r.regions = append(r.regions, reg)
	return nil
}

// Get returns the region with the given name.
func (r *Registry) Get(name string) (Region, bool) {
	i, ok := r.index[name]
	if !ok {
		return Region{}, false
	}
	return r.regions[i], true
}

// All returns a copy of every region in insertion order.
func (r *Registry) All() []Region {
	out := make([]Region, len(r.regions))
	copy(out, r.regions)
	return out
}

// Len returns the number of registered regions.
func (r *Registry) Len() int {
	return len(r.regions)
}

// ByTag returns the regions carrying any of the given tags, in insertion order.
func (r *Registry) ByTag(tags ...Tag) []Region {
	var out []Region
	for _, reg := range r.regions {
		for _, t := range tags {
			if reg.Tag == t {
				out = append(out, reg)
				break
			}
		}
	}
	return out
}

// BoundTo returns the regions bound to the given tool.
func (r *Registry) BoundTo(toolID string) []Region {
	if toolID == "" {
		return nil
	}
	var out []Region
	for _, reg := range r.regions {
		if reg.ToolID == toolID {
			out = append(out, reg)
		}
	}
	return out
}

// Unbound returns the regions carrying any of the given tags that are not
// bound to a tool.
func (r *Registry) Unbound(tags ...Tag) []Region {
	var out []Region
	for _, reg := range r.ByTag(tags...) {
		if reg.ToolID == "" {
			out = append(out, reg)
		}
	}
	return out
}

// KeepBounds returns the bounds of the first keep region. The working crop
// of a run is defined by it.
func (r *Registry) KeepBounds() (image.Rectangle, bool) {
	for _, reg := range r.regions {
		if reg.Tag == TagKeep {
			return reg.Bounds(), true
		}
	}
	return image.Rectangle{}, false
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for _, reg := range r.regions {
		c.index[reg.Name] = len(c.regions)
		c.regions = append(c.regions, reg)
	}
	return c
}
