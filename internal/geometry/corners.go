package geometry

import (
	"fmt"
	"math"
	"sort"
)

// Quad holds four corners in canonical order: top-left, top-right,
// bottom-right, bottom-left.
type Quad [4]Point2D

// Polygon returns the corners as a Polygon.
func (q Quad) Polygon() Polygon {
	return Polygon{q[0], q[1], q[2], q[3]}
}

// Sides returns the mean lengths of the top/bottom and left/right side
// pairs.
func (q Quad) Sides() (width, height float64) {
	width = (q[0].Dist(q[1]) + q[3].Dist(q[2])) / 2
	height = (q[0].Dist(q[3]) + q[1].Dist(q[2])) / 2
	return width, height
}

// OrderCorners returns the four points in canonical order.
//
// The points are sorted by their angle around the centroid, which fixes a
// single clockwise (on screen) winding, then the sequence is rotated so the
// point with the smallest x+y comes first. The result does not depend on the
// order of the input.
func OrderCorners(pts [4]Point2D) Quad {
	c := Polygon(pts[:]).Centroid()

	sorted := pts
	sort.SliceStable(sorted[:], func(i, j int) bool {
		ai := math.Atan2(sorted[i].Y-c.Y, sorted[i].X-c.X)
		aj := math.Atan2(sorted[j].Y-c.Y, sorted[j].X-c.X)
		if ai != aj {
			return ai < aj
		}
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	start := 0
	for i := 1; i < 4; i++ {
		if sorted[i].X+sorted[i].Y < sorted[start].X+sorted[start].Y {
			start = i
		}
	}

	var q Quad
	for i := 0; i < 4; i++ {
		q[i] = sorted[(start+i)%4]
	}
	return q
}

// QuadFromSlice orders an arbitrary slice of exactly four points.
func QuadFromSlice(pts []Point2D) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("need exactly 4 corners, got %d", len(pts))
	}
	return OrderCorners([4]Point2D{pts[0], pts[1], pts[2], pts[3]}), nil
}
