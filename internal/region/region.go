// Package region implements the region registry shared by the pipeline and
// the mask consolidation engine.
//
// A region is a named rectangle or circle carrying a tag that tells the
// pipeline what to do with it: keep or delete mask pixels, apply a
// morphology operation locally, protect nearby fragments during mask
// consolidation, or require that the final mask touches it.
//
// # Coordinate System
//
// Coordinates follow the image convention used everywhere in this module:
//   - (0,0) is the top-left pixel, X grows rightward, Y grows downward
//   - Rectangles are half-open: Min is inclusive, Max is exclusive
//   - Circles contain every pixel whose center lies within Radius of Center
package region

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// Tag tells the pipeline how a region participates in a run.
type Tag int

const (
	TagNone Tag = iota
	TagKeep
	TagDelete
	TagErode
	TagDilate
	TagOpen
	TagClose
	TagSafe
	TagEnforce
	TagCrop
	TagProcessBound
	TagHelper
)

var tagNames = [...]string{
	TagNone:         "none",
	TagKeep:         "keep",
	TagDelete:       "delete",
	TagErode:        "erode",
	TagDilate:       "dilate",
	TagOpen:         "open",
	TagClose:        "close",
	TagSafe:         "safe",
	TagEnforce:      "enforce",
	TagCrop:         "crop",
	TagProcessBound: "process_bound",
	TagHelper:       "helper",
}

func (t Tag) String() string {
	if t < 0 || int(t) >= len(tagNames) {
		return fmt.Sprintf("tag(%d)", int(t))
	}
	return tagNames[t]
}

// ParseTag converts a configuration string into a Tag.
// Hyphens and underscores are interchangeable.
func ParseTag(s string) (Tag, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if key == "" {
		return TagNone, nil
	}
	for i, name := range tagNames {
		if name == key {
			return Tag(i), nil
		}
	}
	return TagNone, fmt.Errorf("unknown region tag: %s", s)
}

// IsMorphology reports whether the tag requests a local morphology operation.
func (t Tag) IsMorphology() bool {
	switch t {
	case TagErode, TagDilate, TagOpen, TagClose:
		return true
	}
	return false
}

// Shape is the geometric kind of a region.
type Shape int

const (
	Rectangle Shape = iota
	Circle
)

func (s Shape) String() string {
	if s == Circle {
		return "circle"
	}
	return "rectangle"
}

// ParseShape converts "rectangle"/"rect" or "circle" into a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rectangle", "rect":
		return Rectangle, nil
	case "circle":
		return Circle, nil
	}
	return Rectangle, fmt.Errorf("unknown region shape: %s", s)
}

// Region is a named, tagged geometric area of an image.
type Region struct {
	// Name is unique within a Registry.
	Name string `json:"name"`

	// Tag selects the region's role in the pipeline.
	Tag Tag `json:"tag"`

	// Shape selects which of Rect or Center/Radius is meaningful.
	Shape Shape `json:"shape"`

	// Rect holds rectangle geometry (half-open).
	Rect image.Rectangle `json:"rect"`

	// Center and Radius hold circle geometry.
	Center image.Point `json:"center"`
	Radius int         `json:"radius"`

	// ToolID binds the region to a single stage tool. Bound regions are
	// ignored by the generic region application step.
	ToolID string `json:"tool_id,omitempty"`

	// KernelSize overrides the pipeline's default kernel for morphology tags.
	KernelSize int `json:"kernel_size,omitempty"`
}

// NewRect creates a rectangular region.
func NewRect(name string, tag Tag, r image.Rectangle) Region {
	return Region{Name: name, Tag: tag, Shape: Rectangle, Rect: r.Canon()}
}

// NewCircle creates a circular region.
func NewCircle(name string, tag Tag, center image.Point, radius int) Region {
	return Region{Name: name, Tag: tag, Shape: Circle, Center: center, Radius: radius}
}

// Bounds returns the smallest rectangle containing the region.
func (r Region) Bounds() image.Rectangle {
	if r.Shape == Circle {
		return image.Rect(r.Center.X-r.Radius, r.Center.Y-r.Radius,
			r.Center.X+r.Radius+1, r.Center.Y+r.Radius+1)
	}
	return r.Rect
}

// Contains reports whether the pixel at p belongs to the region.
func (r Region) Contains(p image.Point) bool {
	if r.Shape == Circle {
		dx := p.X - r.Center.X
		dy := p.Y - r.Center.Y
		return dx*dx+dy*dy <= r.Radius*r.Radius
	}
	return p.In(r.Rect)
}

// ContainsF is Contains for sub-pixel coordinates.
func (r Region) ContainsF(x, y float64) bool {
	if r.Shape == Circle {
		dx := x - float64(r.Center.X)
		dy := y - float64(r.Center.Y)
		rad := float64(r.Radius)
		return dx*dx+dy*dy <= rad*rad
	}
	return x >= float64(r.Rect.Min.X) && x < float64(r.Rect.Max.X) &&
		y >= float64(r.Rect.Min.Y) && y < float64(r.Rect.Max.Y)
}

// Diagonal returns the length of the bounds diagonal.
func (r Region) Diagonal() float64 {
	b := r.Bounds()
	return math.Hypot(float64(b.Dx()), float64(b.Dy()))
}

// Anchor returns the point of the region selected by pos.
//
// For circles, middle-center is the circle's center; every other position is
// taken on the bounding box, matching the rectangle behavior.
func (r Region) Anchor(pos Position) (float64, float64) {
	if r.Shape == Circle && pos == MiddleCenter {
		return float64(r.Center.X), float64(r.Center.Y)
	}
	b := r.Bounds()
	x1, y1 := float64(b.Min.X), float64(b.Min.Y)
	x2, y2 := float64(b.Max.X), float64(b.Max.Y)
	mx, my := (x1+x2)/2, (y1+y2)/2

	switch pos {
	case TopLeft:
		return x1, y1
	case TopCenter:
		return mx, y1
	case TopRight:
		return x2, y1
	case MiddleLeft:
		return x1, my
	case MiddleRight:
		return x2, my
	case BottomLeft:
		return x1, y2
	case BottomCenter:
		return mx, y2
	case BottomRight:
		return x2, y2
	default:
		return mx, my
	}
}

// Position names one of nine anchor points of a region.
type Position int

const (
	MiddleCenter Position = iota
	TopLeft
	TopCenter
	TopRight
	MiddleLeft
	MiddleRight
	BottomLeft
	BottomCenter
	BottomRight
)

var positionNames = [...]string{
	MiddleCenter: "middle_center",
	TopLeft:      "top_left",
	TopCenter:    "top_center",
	TopRight:     "top_right",
	MiddleLeft:   "middle_left",
	MiddleRight:  "middle_right",
	BottomLeft:   "bottom_left",
	BottomCenter: "bottom_center",
	BottomRight:  "bottom_right",
}

func (p Position) String() string {
	if p < 0 || int(p) >= len(positionNames) {
		return fmt.Sprintf("position(%d)", int(p))
	}
	return positionNames[p]
}

// ParsePosition converts names such as "bottom_center" or "bottom-center".
// An empty string yields MiddleCenter.
func ParsePosition(s string) (Position, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if key == "" || key == "center" {
		return MiddleCenter, nil
	}
	for i, name := range positionNames {
		if name == key {
			return Position(i), nil
		}
	}
	return MiddleCenter, fmt.Errorf("unknown position: %s", s)
}

// ErrDuplicateName is returned when a region name is already registered.
var ErrDuplicateName = errors.New("duplicate region name")
