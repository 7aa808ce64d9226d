package detection

import (
	"math"

	"github.com/ironsheep/marker-measure/internal/geometry"
)

// Reference describes the physical rectangle used as the scale marker.
type Reference struct {
	// ShortMM and LongMM are the side lengths in millimetres.
	ShortMM float64 `json:"short_mm"`
	LongMM  float64 `json:"long_mm"`
}

// A4 is the ISO 216 A4 sheet, 210 x 297 mm.
var A4 = Reference{ShortMM: 210, LongMM: 297}

// Ratio returns the short/long side ratio (about 0.7071 for A4).
func (r Reference) Ratio() float64 {
	return r.ShortMM / r.LongMM
}

// Valid reports whether both sides are positive.
func (r Reference) Valid() bool {
	return r.ShortMM > 0 && r.LongMM >= r.ShortMM
}

// idealCompactness is the compactness of a perfect reference rectangle.
func (r Reference) idealCompactness() float64 {
	return geometry.Compactness(r.ShortMM*r.LongMM, 2*(r.ShortMM+r.LongMM))
}

// Orientation of a detected marker in the photograph.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// ReferenceMarker is an accepted reference rectangle.
type ReferenceMarker struct {
	// Corners are ordered top-left, top-right, bottom-right, bottom-left.
	Corners geometry.Quad `json:"corners"`

	// PixelsPerMM is the mean of the short-side and long-side scale
	// estimates.
	PixelsPerMM float64 `json:"pixels_per_mm"`

	// Confidence is the quad's compactness relative to an ideal
	// reference rectangle, in [0,1].
	Confidence float64 `json:"confidence"`

	// AspectRatio is min(width,height)/max(width,height) of the quad.
	AspectRatio float64 `json:"aspect_ratio"`

	Orientation Orientation `json:"orientation"`

	// WidthPx and HeightPx are the mean lengths of the top/bottom and
	// left/right side pairs.
	WidthPx  float64 `json:"width_px"`
	HeightPx float64 `json:"height_px"`
}

// QuadParams tunes candidate evaluation.
type QuadParams struct {
	AspectTolerance float64
	MinArea         float64

	// Epsilons are simplification strengths as fractions of the contour
	// perimeter, tried in order.
	Epsilons []float64
}

// DefaultEpsilons are the simplification strengths tried per candidate.
var DefaultEpsilons = []float64{0.02, 0.03, 0.04, 0.05}

// EvaluateCandidate tries to read c as the reference rectangle.
//
// rank is the candidate's 1-based position by area and is copied into every
// rejection. On success it returns the marker and the epsilon that produced
// it; every failed check along the way is recorded, so a success can still
// carry rejections from coarser epsilons.
func EvaluateCandidate(c Contour, rank int, ref Reference, p QuadParams) (*ReferenceMarker, float64, []Rejection) {
	var rejections []Rejection

	if c.Area < p.MinArea {
		return nil, 0, append(rejections, Rejection{
			Kind: RejectAreaTooSmall, Contour: rank, Value: c.Area, Limit: p.MinArea,
		})
	}

	epsilons := p.Epsilons
	if len(epsilons) == 0 {
		epsilons = DefaultEpsilons
	}
	perimeter := c.Points.Perimeter()

	for _, eps := range epsilons {
		approx := geometry.Simplify(c.Points, eps*perimeter)
		n := len(approx)
		if n < 4 || n > 6 {
			rejections = append(rejections, Rejection{
				Kind: RejectPointCount, Contour: rank, Epsilon: eps, Value: float64(n),
			})
			continue
		}
		if n > 4 {
			approx = geometry.SampleQuad(approx)
			if approx == nil {
				rejections = append(rejections, Rejection{
					Kind: RejectNotQuadrilateral, Contour: rank, Epsilon: eps, Value: float64(n),
				})
				continue
			}
		}

		quad := geometry.OrderCorners([4]geometry.Point2D{approx[0], approx[1], approx[2], approx[3]})
		if err := geometry.ValidateQuad(quad); err != nil {
			rejections = append(rejections, Rejection{
				Kind: RejectDegenerate, Contour: rank, Epsilon: eps,
			})
			continue
		}

		marker := measureQuad(quad, ref)
		if math.Abs(marker.AspectRatio-ref.Ratio()) >= p.AspectTolerance {
			rejections = append(rejections, Rejection{
				Kind: RejectAspectRatio, Contour: rank, Epsilon: eps,
				Value: marker.AspectRatio, Limit: p.AspectTolerance,
			})
			continue
		}
		return marker, eps, rejections
	}

	return nil, 0, rejections
}

// measureQuad derives size, scale and confidence from ordered corners.
func measureQuad(q geometry.Quad, ref Reference) *ReferenceMarker {
	width, height := q.Sides()
	short, long := math.Min(width, height), math.Max(width, height)

	m := &ReferenceMarker{
		Corners:     q,
		WidthPx:     width,
		HeightPx:    height,
		Orientation: Portrait,
	}
	if width > height {
		m.Orientation = Landscape
	}
	if long > 0 {
		m.AspectRatio = short / long
	}
	m.PixelsPerMM = (short/ref.ShortMM + long/ref.LongMM) / 2

	pg := q.Polygon()
	if ideal := ref.idealCompactness(); ideal > 0 {
		m.Confidence = math.Min(1, geometry.Compactness(pg.Area(), pg.Perimeter())/ideal)
	}
	return m
}

// ScaleMarker maps a marker found on a copy shrunk by 1/f back onto the
// full-size image. Shape measures are unchanged; lengths and the scale grow
// by f.
func ScaleMarker(m *ReferenceMarker, f float64, ref Reference) *ReferenceMarker {
	if m == nil || f == 1 {
		return m
	}
	var q geometry.Quad
	for i, c := range m.Corners {
		q[i] = c.Rescale(f)
	}
	out := measureQuad(q, ref)
	out.Confidence = m.Confidence
	return out
}
