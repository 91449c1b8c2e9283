// Package features measures the final object mask.
//
// Shape features come from the mask alone; colour features sample the
// source image under the mask. Both return ErrNoObject when the mask holds
// nothing worth measuring, which the pipeline reports as a tool failure.
package features

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/leafmask/internal/geometry"
	"github.com/ironsheep/leafmask/internal/imaging"
)

// ErrNoObject reports a mask without a measurable object.
var ErrNoObject = errors.New("no measurable object in mask")

// MinContourPoints is the number of boundary points the largest component
// needs before shape features are computed.
const MinContourPoints = 5

// Shape holds the geometric features of a mask.
type Shape struct {
	// Area is the foreground pixel count.
	Area int `json:"area"`

	// Perimeter is the summed length of every outer contour.
	Perimeter float64 `json:"perimeter"`

	// HullArea is the pixel count of the convex hull of all components.
	HullArea int `json:"hull_area"`

	// Solidity is Area / HullArea.
	Solidity float64 `json:"solidity"`

	Width  int `json:"width"`
	Height int `json:"height"`

	CentroidX float64 `json:"centroid_x"`
	CentroidY float64 `json:"centroid_y"`

	Components int `json:"components"`
	Holes      int `json:"holes"`
}

// Color holds the mean colour of the masked pixels.
type Color struct {
	// MeanHue is in degrees, averaged on the circle.
	MeanHue        float64 `json:"mean_hue"`
	MeanSaturation float64 `json:"mean_saturation"`
	MeanValue      float64 `json:"mean_value"`
}

// ShapeFeatures measures mask.
func ShapeFeatures(mask *image.Gray) (*Shape, error) {
	cs := geometry.FindContours(mask)
	outer := cs.Outer()

	largest := -1
	for i, c := range outer {
		if largest < 0 || c.PixelCount > outer[largest].PixelCount {
			largest = i
		}
	}
	if largest < 0 || len(outer[largest].Points) < MinContourPoints {
		return nil, ErrNoObject
	}

	s := &Shape{Components: len(outer), Holes: len(cs.Contours) - len(outer)}

	var all geometry.Polygon
	var sx, sy float64
	for _, c := range outer {
		s.Area += c.PixelCount
		s.Perimeter += geometry.Perimeter(c.Points)
		all = append(all, c.Points...)
	}

	w := cs.Bounds.Dx()
	for i, l := range cs.Labels {
		if l != 0 {
			sx += float64(i%w + cs.Bounds.Min.X)
			sy += float64(i/w + cs.Bounds.Min.Y)
		}
	}
	s.CentroidX = sx / float64(s.Area)
	s.CentroidY = sy / float64(s.Area)

	bb := geometry.BoundingRect(all)
	s.Width, s.Height = bb.Dx(), bb.Dy()

	hull := geometry.ConvexHull(all)
	s.HullArea = imaging.CountNonZero(geometry.Fill(hull, bb))
	if s.HullArea > 0 {
		s.Solidity = math.Min(1, float64(s.Area)/float64(s.HullArea))
	}
	return s, nil
}

// ColorFeatures averages the colour of img under mask.
func ColorFeatures(img image.Image, mask *image.Gray) (*Color, error) {
	h, sat, v, ok := imaging.MeanHSV(img, mask)
	if !ok {
		return nil, ErrNoObject
	}
	return &Color{MeanHue: h, MeanSaturation: sat, MeanValue: v}, nil
}

// Values flattens s into named values.
func (s *Shape) Values() map[string]float64 {
	return map[string]float64{
		"area":       float64(s.Area),
		"perimeter":  s.Perimeter,
		"hull_area":  float64(s.HullArea),
		"solidity":   s.Solidity,
		"width":      float64(s.Width),
		"height":     float64(s.Height),
		"centroid_x": s.CentroidX,
		"centroid_y": s.CentroidY,
		"components": float64(s.Components),
		"holes":      float64(s.Holes),
	}
}

// Values flattens c into named values.
func (c *Color) Values() map[string]float64 {
	return map[string]float64{
		"mean_hue":        c.MeanHue,
		"mean_saturation": c.MeanSaturation,
		"mean_value":      c.MeanValue,
	}
}

// Names returns the keys of values in sorted order.
func Names(values map[string]float64) []string {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
