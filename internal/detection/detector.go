package detection

import (
	"image"
	"log"
	"sort"
)

// State is the position of a detection run in the strategy chain.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// DefaultMaxCandidates is how many of the largest contours each strategy
// evaluates.
const DefaultMaxCandidates = 15

// Detector runs the strategy chain over a photograph.
//
// A Detector holds only configuration and is safe for concurrent use; each
// call to Detect builds its own Run.
type Detector struct {
	Reference     Reference
	Strategies    []Strategy
	MaxCandidates int
	Epsilons      []float64

	// Debug enables per-candidate log lines.
	Debug bool
}

// NewDetector returns a detector for ref using the default strategy chain.
func NewDetector(ref Reference) *Detector {
	return &Detector{
		Reference:     ref,
		Strategies:    DefaultStrategies(),
		MaxCandidates: DefaultMaxCandidates,
		Epsilons:      DefaultEpsilons,
	}
}

// Run is the outcome of one pass through the chain.
type Run struct {
	State State `json:"-"`

	// Current is the 1-based index of the running or successful strategy.
	Current int `json:"-"`

	Marker   *ReferenceMarker `json:"marker,omitempty"`
	Attempts []Attempt        `json:"attempts"`
}

// Successful returns the attempt that produced the marker, or nil.
func (r *Run) Successful() *Attempt {
	if r.State != StateSucceeded || r.Current < 1 || r.Current > len(r.Attempts) {
		return nil
	}
	return &r.Attempts[r.Current-1]
}

// Detect tries every strategy in order until one accepts a candidate.
//
// gray must be anchored at the origin. Each strategy runs at most once, an
// Attempt is recorded for every strategy that ran, and the run ends either
// succeeded or exhausted. sink may be nil.
func (d *Detector) Detect(gray *image.Gray, sink SnapshotSink) *Run {
	run := &Run{State: StatePending}
	save(sink, "gray", gray)

	for i, s := range d.Strategies {
		run.State, run.Current = StateRunning, i+1

		attempt := d.attempt(s, i+1, gray, sink)
		run.Attempts = append(run.Attempts, attempt)

		if attempt.Marker != nil {
			run.State = StateSucceeded
			run.Marker = attempt.Marker
			if d.Debug {
				log.Printf("Marker found by strategy %d (%s): %.3f px/mm, confidence %.2f",
					i+1, s.Name(), attempt.Marker.PixelsPerMM, attempt.Marker.Confidence)
			}
			return run
		}
		if d.Debug {
			log.Printf("Strategy %d failed: %s", i+1, attempt.Summary())
		}
	}

	run.State, run.Current = StateExhausted, 0
	return run
}

func (d *Detector) attempt(s Strategy, index int, gray *image.Gray, sink SnapshotSink) Attempt {
	params := s.Params()
	a := Attempt{
		Strategy:   s.Name(),
		Index:      index,
		Params:     params,
		Rejections: make([]Rejection, 0),
	}

	contours := FindExternalContours(s.Preprocess(gray, sink))
	a.ContoursFound = len(contours)
	if len(contours) == 0 {
		a.Rejections = append(a.Rejections, Rejection{Kind: RejectNoContours})
		return a
	}

	sort.SliceStable(contours, func(i, j int) bool {
		return contours[i].Area > contours[j].Area
	})
	limit := d.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}
	if len(contours) > limit {
		contours = contours[:limit]
	}

	qp := QuadParams{
		AspectTolerance: params.AspectTolerance,
		MinArea:         params.MinArea,
		Epsilons:        d.Epsilons,
	}
	for i, c := range contours {
		a.CandidatesAnalyzed = i + 1
		marker, eps, rejections := EvaluateCandidate(c, i+1, d.Reference, qp)
		a.Rejections = append(a.Rejections, rejections...)
		if d.Debug {
			for _, r := range rejections {
				log.Printf("  %s: %s", s.Name(), r)
			}
		}
		if marker != nil {
			a.Marker, a.Epsilon = marker, eps
			return a
		}
	}
	return a
}
