package detection

import (
	"image"
	"sort"

	"github.com/ironsheep/marker-measure/internal/geometry"
	"github.com/ironsheep/marker-measure/internal/imaging"
)

// SuggestionKind says what should be measured on a suggested region.
type SuggestionKind string

const (
	KindLength SuggestionKind = "length"
	KindArea   SuggestionKind = "area"
)

// RegionSuggestion is a region the user will probably want measured.
type RegionSuggestion struct {
	// Boundary is the simplified outline: two points for a length, three
	// or more for an area.
	Boundary geometry.Polygon `json:"boundary"`

	Kind SuggestionKind `json:"kind"`

	// Confidence is the isoperimetric compactness of the raw contour.
	Confidence float64 `json:"confidence"`

	// LengthMM is set for KindLength, AreaMM2 for KindArea.
	LengthMM float64 `json:"length_mm,omitempty"`
	AreaMM2  float64 `json:"area_mm2,omitempty"`
}

// Suggester finds dark, well-formed regions worth measuring.
type Suggester struct {
	Block          int
	C              float64
	MorphRadius    float64
	MinArea        float64
	Epsilon        float64
	MaxSuggestions int
}

// DefaultMaxSuggestions caps the suggestion list.
const DefaultMaxSuggestions = 5

// NewSuggester returns a suggester with the standard parameters.
func NewSuggester() *Suggester {
	return &Suggester{
		Block:          11,
		C:              2,
		MorphRadius:    1,
		MinArea:        1000,
		Epsilon:        0.02,
		MaxSuggestions: DefaultMaxSuggestions,
	}
}

// Suggest returns up to MaxSuggestions regions, most regular first.
//
// Pixel geometry is converted with pixelsPerMM; a non-positive scale leaves
// the physical sizes at zero. An image without qualifying contours yields an
// empty, non-nil slice.
func (s *Suggester) Suggest(gray *image.Gray, pixelsPerMM float64, sink SnapshotSink) []RegionSuggestion {
	binary := imaging.AdaptiveThreshold(gray, s.Block, s.C, true)
	cleaned := imaging.Binarize(imaging.MorphOpen(imaging.MorphClose(binary, s.MorphRadius), s.MorphRadius))
	save(sink, "suggest_mask", cleaned)

	suggestions := make([]RegionSuggestion, 0)
	for _, c := range FindExternalContours(cleaned) {
		if c.Area < s.MinArea {
			continue
		}
		perimeter := c.Points.Perimeter()
		boundary := geometry.Simplify(c.Points, s.Epsilon*perimeter)

		rs := RegionSuggestion{
			Boundary:   boundary,
			Kind:       KindArea,
			Confidence: geometry.Compactness(c.Area, perimeter),
		}
		if len(boundary) == 2 {
			rs.Kind = KindLength
		}
		if pixelsPerMM > 0 {
			if rs.Kind == KindLength {
				rs.LengthMM = boundary.PathLength() / pixelsPerMM
			} else {
				rs.AreaMM2 = c.Area / (pixelsPerMM * pixelsPerMM)
			}
		}
		suggestions = append(suggestions, rs)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	limit := s.MaxSuggestions
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// ScaleSuggestions maps suggestions found on a copy shrunk by 1/f back onto
// the full-size image. Physical sizes are left alone.
func ScaleSuggestions(in []RegionSuggestion, f float64) []RegionSuggestion {
	if f == 1 {
		return in
	}
	out := make([]RegionSuggestion, len(in))
	for i, rs := range in {
		b := make(geometry.Polygon, len(rs.Boundary))
		for j, p := range rs.Boundary {
			b[j] = p.Rescale(f)
		}
		rs.Boundary = b
		out[i] = rs
	}
	return out
}
