// Package geometry provides the planar geometry used by marker detection and
// rectification.
//
// All coordinates are real-valued pixel positions using the image convention:
// origin at the top-left corner, X increasing rightward, Y increasing
// downward. Because Y points down, increasing atan2 angles around a centroid
// run clockwise on screen.
//
// # Polygons
//
// A Polygon is an ordered, implicitly closed sequence of points. Area and
// Perimeter treat the last point as connected to the first. Simplify reduces
// a closed polygon with the Douglas-Peucker algorithm using an absolute
// tolerance; callers usually derive the tolerance from the perimeter.
//
// # Corner Ordering
//
// OrderCorners imposes the canonical sequence top-left, top-right,
// bottom-right, bottom-left on any four points. Sorting by angle fixes the
// winding and rotating to the minimal x+y point fixes the start corner; the
// rectifier depends on both.
//
// # Homographies
//
// NewHomography solves the eight-unknown direct linear transform for four
// point correspondences with gonum. Degenerate inputs (coincident or
// collinear corners, self-intersecting quadrilaterals) produce a
// *DegenerateGeometryError instead of a transform.
package geometry
