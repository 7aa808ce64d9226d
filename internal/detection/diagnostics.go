package detection

import (
	"fmt"
	"strings"
)

// RejectionKind categorises why a candidate contour was not accepted.
type RejectionKind int

const (
	// RejectNoContours means the strategy's binary map had no external
	// contours at all.
	RejectNoContours RejectionKind = iota + 1
	// RejectAreaTooSmall means the contour encloses less than the
	// strategy's minimum area. Value is the area, Limit the minimum.
	RejectAreaTooSmall
	// RejectPointCount means simplification left fewer than 4 or more
	// than 6 points. Value is the point count.
	RejectPointCount
	// RejectNotQuadrilateral means a 5 or 6 point polygon could not be
	// reduced to 4 hull points.
	RejectNotQuadrilateral
	// RejectAspectRatio means the short/long side ratio was too far from
	// the reference ratio. Value is the ratio, Limit the tolerance.
	RejectAspectRatio
	// RejectDegenerate means the 4 corners are coincident, collinear or
	// self-intersecting.
	RejectDegenerate
)

var rejectionNames = map[RejectionKind]string{
	RejectNoContours:       "no_contours",
	RejectAreaTooSmall:     "area_too_small",
	RejectPointCount:       "point_count_out_of_range",
	RejectNotQuadrilateral: "not_quadrilateral",
	RejectAspectRatio:      "aspect_ratio_out_of_tolerance",
	RejectDegenerate:       "degenerate_quadrilateral",
}

func (k RejectionKind) String() string {
	if s, ok := rejectionNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RejectionKind(%d)", int(k))
}

// MarshalText encodes the kind by name so JSON diagnostics stay readable.
func (k RejectionKind) MarshalText() ([]byte, error) {
	if _, ok := rejectionNames[k]; !ok {
		return nil, fmt.Errorf("unknown rejection kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *RejectionKind) UnmarshalText(text []byte) error {
	for kind, name := range rejectionNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown rejection kind %q", text)
}

// Rejection records one failed check while evaluating a candidate.
type Rejection struct {
	Kind RejectionKind `json:"kind"`

	// Contour is the 1-based rank of the candidate by area; 0 when the
	// rejection concerns the whole strategy.
	Contour int `json:"contour,omitempty"`

	// Epsilon is the simplification strength (fraction of perimeter) in
	// effect, or 0 for checks made before simplification.
	Epsilon float64 `json:"epsilon,omitempty"`

	// Value is the measured quantity and Limit the bound it violated.
	Value float64 `json:"value"`
	Limit float64 `json:"limit,omitempty"`
}

func (r Rejection) String() string {
	var sb strings.Builder
	if r.Contour > 0 {
		fmt.Fprintf(&sb, "contour %d", r.Contour)
		if r.Epsilon > 0 {
			fmt.Fprintf(&sb, " (eps=%.2f)", r.Epsilon)
		}
		sb.WriteString(": ")
	}
	switch r.Kind {
	case RejectNoContours:
		sb.WriteString("no contours found")
	case RejectAreaTooSmall:
		fmt.Fprintf(&sb, "area too small (%.0f < %.0f)", r.Value, r.Limit)
	case RejectPointCount:
		fmt.Fprintf(&sb, "wrong point count after simplification (%.0f)", r.Value)
	case RejectNotQuadrilateral:
		fmt.Fprintf(&sb, "not reducible to 4 points (%.0f hull points)", r.Value)
	case RejectAspectRatio:
		fmt.Fprintf(&sb, "aspect ratio %.3f outside tolerance %.2f", r.Value, r.Limit)
	case RejectDegenerate:
		sb.WriteString("degenerate corners")
	default:
		sb.WriteString(r.Kind.String())
	}
	return sb.String()
}

// StrategyParams are the tunables a strategy reports in its attempt.
type StrategyParams struct {
	AspectTolerance float64 `json:"aspect_tolerance"`
	MinArea         float64 `json:"min_area"`
	CannyLow        int     `json:"canny_low"`
	CannyHigh       int     `json:"canny_high"`
}

// Attempt is the diagnostic record of running one strategy.
type Attempt struct {
	// Strategy is the strategy name and Index its 1-based position in the
	// chain.
	Strategy string `json:"strategy"`
	Index    int    `json:"index"`

	Params StrategyParams `json:"params"`

	// ContoursFound counts all external contours; CandidatesAnalyzed
	// counts those the evaluator looked at.
	ContoursFound      int `json:"contours_found"`
	CandidatesAnalyzed int `json:"candidates_analyzed"`

	Rejections []Rejection `json:"rejections"`

	// Marker is set when this strategy succeeded.
	Marker *ReferenceMarker `json:"marker,omitempty"`

	// Epsilon is the simplification strength that produced Marker.
	Epsilon float64 `json:"epsilon,omitempty"`
}

// Succeeded reports whether the attempt produced a marker.
func (a *Attempt) Succeeded() bool {
	return a.Marker != nil
}

// Count returns how many rejections of kind the attempt recorded.
func (a *Attempt) Count(kind RejectionKind) int {
	n := 0
	for _, r := range a.Rejections {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// Summary renders a one-line human readable description of the attempt.
func (a *Attempt) Summary() string {
	if a.Marker != nil {
		return fmt.Sprintf("%s: marker found (%.2f px/mm, eps=%.2f)", a.Strategy, a.Marker.PixelsPerMM, a.Epsilon)
	}
	return fmt.Sprintf("%s: %d contours, %d analysed, %d rejections",
		a.Strategy, a.ContoursFound, a.CandidatesAnalyzed, len(a.Rejections))
}
