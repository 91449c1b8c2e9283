// Package geometry extracts and measures polygons from binary masks.
//
// A mask is an *image.Gray where any non-zero pixel is foreground. The
// package provides:
//   - Component labelling and boundary tracing (FindContours), including
//     holes and their parent contours
//   - Closed-polygon simplification (Simplify, SimplifyRelative)
//   - Signed point-in-polygon distance (PointPolygonTest)
//   - Area, perimeter, centroid, bounding rectangle and convex hull
//   - Rasterisation of a polygon back into a mask (Fill)
//
// # Coordinate System
//
// Polygon vertices are pixel coordinates in the mask's own coordinate space
// (bounds are honoured, so a mask whose Min is not (0,0) yields vertices
// offset accordingly). A vertex denotes the center of a pixel.
package geometry
