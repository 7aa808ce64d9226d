package geometry

import (
	"math"
	"sort"
)

// Simplify reduces a closed polygon with the Douglas-Peucker algorithm.
//
// The polygon is split at two far-apart vertices: a, the vertex farthest
// from pg[0], and b, the vertex farthest from a. Each arc between them is
// simplified independently, so the result always keeps a and b but keeps
// pg[0] only on its own merit. Vertices whose distance to the current chord
// is at most epsilon are dropped. The output follows the input's winding,
// starting at a. Polygons with fewer than three points are returned as a
// copy.
func Simplify(pg Polygon, epsilon float64) Polygon {
	n := len(pg)
	if n < 3 {
		return append(Polygon(nil), pg...)
	}

	a := farthestFrom(pg, pg[0])
	rot := make(Polygon, 0, n)
	rot = append(rot, pg[a:]...)
	rot = append(rot, pg[:a]...)

	far := farthestFrom(rot, rot[0])
	if far == 0 || rot[0].Dist(rot[far]) <= 0 {
		return Polygon{rot[0]}
	}

	keep := make([]bool, n)
	keep[0], keep[far] = true, true
	douglasPeucker(rot, 0, far, epsilon, keep)

	// Second arc wraps back to a.
	tail := make(Polygon, 0, n-far+1)
	tail = append(tail, rot[far:]...)
	tail = append(tail, rot[0])
	tailKeep := make([]bool, len(tail))
	tailKeep[0], tailKeep[len(tail)-1] = true, true
	douglasPeucker(tail, 0, len(tail)-1, epsilon, tailKeep)
	for i := 1; i < len(tail)-1; i++ {
		keep[far+i] = tailKeep[i]
	}

	out := make(Polygon, 0, 8)
	for i, k := range keep {
		if k {
			out = append(out, rot[i])
		}
	}
	return out
}

// farthestFrom returns the index of the vertex of pg farthest from p, the
// lowest index on ties.
func farthestFrom(pg Polygon, p Point2D) int {
	idx, best := 0, -1.0
	for i, q := range pg {
		if d := p.Dist(q); d > best {
			idx, best = i, d
		}
	}
	return idx
}

// douglasPeucker marks the vertices of pg[first..last] that survive.
// Iterative to keep deep contours off the goroutine stack.
func douglasPeucker(pg Polygon, first, last int, epsilon float64, keep []bool) {
	type span struct{ a, b int }
	stack := []span{{first, last}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.b-s.a < 2 {
			continue
		}
		idx, maxDist := -1, epsilon
		for i := s.a + 1; i < s.b; i++ {
			if d := segmentDistance(pg[i], pg[s.a], pg[s.b]); d > maxDist {
				idx, maxDist = i, d
			}
		}
		if idx < 0 {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.a, idx}, span{idx, s.b})
	}
}

// segmentDistance is the distance from p to the segment ab.
func segmentDistance(p, a, b Point2D) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(Point2D{X: a.X + t*dx, Y: a.Y + t*dy})
}

// ConvexHull returns the hull of the points using Andrew's monotone chain,
// starting from the lowest-x (then lowest-y) point. Collinear points on
// hull edges are dropped.
func ConvexHull(points []Point2D) Polygon {
	pts := append([]Point2D(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	if len(pts) < 3 {
		return pts
	}

	hull := make(Polygon, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// SampleQuad reduces a polygon with more than four points to exactly four by
// sampling its convex hull at indices 0, n/4, n/2 and 3n/4. It returns nil
// when the hull has fewer than four points.
func SampleQuad(pg Polygon) Polygon {
	hull := ConvexHull(pg)
	n := len(hull)
	if n < 4 {
		return nil
	}
	return Polygon{hull[0], hull[n/4], hull[n/2], hull[3*n/4]}
}
