package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DegenerateGeometryError reports corners that cannot define a projective
// transform.
type DegenerateGeometryError struct {
	Reason string
}

func (e *DegenerateGeometryError) Error() string {
	return "degenerate geometry: " + e.Reason
}

// Homography is a 3x3 projective transform in row-major order.
type Homography struct {
	M [3][3]float64 `json:"matrix"`
}

// Apply maps p through the transform.
func (h Homography) Apply(p Point2D) Point2D {
	m := h.M
	w := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	return Point2D{
		X: (m[0][0]*p.X + m[0][1]*p.Y + m[0][2]) / w,
		Y: (m[1][0]*p.X + m[1][1]*p.Y + m[1][2]) / w,
	}
}

// Inverse returns the inverse transform, normalised so M[2][2] == 1.
func (h Homography) Inverse() (Homography, error) {
	a := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			a.Set(r, c, h.M[r][c])
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Homography{}, &DegenerateGeometryError{Reason: fmt.Sprintf("transform is not invertible: %v", err)}
	}
	return normalise(&inv), nil
}

// Rows returns the matrix as nested slices, the shape JSON clients expect.
func (h Homography) Rows() [][]float64 {
	out := make([][]float64, 3)
	for r := range out {
		out[r] = []float64{h.M[r][0], h.M[r][1], h.M[r][2]}
	}
	return out
}

// NewHomography computes the transform mapping src[i] onto dst[i].
//
// Both quadrilaterals are validated first: coincident corners, any three
// collinear corners, or crossing opposite sides yield a
// *DegenerateGeometryError. Coordinates are normalised (centroid at the
// origin, mean distance sqrt(2)) before the 8x8 solve to keep the system
// well conditioned for multi-megapixel inputs.
func NewHomography(src, dst [4]Point2D) (Homography, error) {
	if err := ValidateQuad(src); err != nil {
		return Homography{}, err
	}
	if err := ValidateQuad(dst); err != nil {
		return Homography{}, err
	}

	ns, ts := normalisePoints(src)
	nd, td := normalisePoints(dst)

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Homography{}, &DegenerateGeometryError{Reason: fmt.Sprintf("linear system is singular: %v", err)}
	}

	hn := mat.NewDense(3, 3, []float64{
		sol.AtVec(0), sol.AtVec(1), sol.AtVec(2),
		sol.AtVec(3), sol.AtVec(4), sol.AtVec(5),
		sol.AtVec(6), sol.AtVec(7), 1,
	})

	// Denormalise: H = Td^-1 * Hn * Ts
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return Homography{}, &DegenerateGeometryError{Reason: "destination normalisation failed"}
	}
	var tmp, full mat.Dense
	tmp.Mul(hn, ts)
	full.Mul(&tdInv, &tmp)

	h := normalise(&full)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.IsNaN(h.M[r][c]) || math.IsInf(h.M[r][c], 0) {
				return Homography{}, &DegenerateGeometryError{Reason: "transform has non-finite coefficients"}
			}
		}
	}
	return h, nil
}

// ValidateQuad checks that four ordered corners form a simple,
// non-degenerate quadrilateral.
func ValidateQuad(q [4]Point2D) error {
	scale := 0.0
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			d := q[i].Dist(q[j])
			if d < 1e-9 {
				return &DegenerateGeometryError{Reason: fmt.Sprintf("corners %d and %d coincide", i, j)}
			}
			scale = math.Max(scale, d)
		}
	}

	// Triangle area relative to the squared extent catches near-collinear
	// triples independent of image resolution.
	minArea := 1e-6 * scale * scale
	for skip := 0; skip < 4; skip++ {
		var tri []Point2D
		for i := 0; i < 4; i++ {
			if i != skip {
				tri = append(tri, q[i])
			}
		}
		if math.Abs(cross(tri[0], tri[1], tri[2]))/2 < minArea {
			return &DegenerateGeometryError{Reason: "three corners are collinear"}
		}
	}

	if segmentsCross(q[0], q[1], q[2], q[3]) || segmentsCross(q[1], q[2], q[3], q[0]) {
		return &DegenerateGeometryError{Reason: "quadrilateral is self-intersecting"}
	}
	return nil
}

// segmentsCross reports a proper intersection of segments ab and cd.
func segmentsCross(a, b, c, d Point2D) bool {
	d1 := cross(a, b, c)
	d2 := cross(a, b, d)
	d3 := cross(c, d, a)
	d4 := cross(c, d, b)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// normalisePoints applies Hartley normalisation and returns the transformed
// points with the 3x3 similarity that produced them.
func normalisePoints(pts [4]Point2D) ([4]Point2D, *mat.Dense) {
	c := Polygon(pts[:]).Centroid()
	var mean float64
	for _, p := range pts {
		mean += p.Dist(c)
	}
	mean /= 4
	s := math.Sqrt2 / mean

	var out [4]Point2D
	for i, p := range pts {
		out[i] = Point2D{X: (p.X - c.X) * s, Y: (p.Y - c.Y) * s}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	})
	return out, t
}

func normalise(m *mat.Dense) Homography {
	var h Homography
	w := m.At(2, 2)
	if w == 0 {
		w = 1
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h.M[r][c] = m.At(r, c) / w
		}
	}
	return h
}
