package detection

import (
	"image"

	"github.com/ironsheep/marker-measure/internal/imaging"
)

// SnapshotSink receives intermediate maps for offline inspection. Save must
// not fail the caller; implementations log their own errors.
type SnapshotSink interface {
	Save(name string, img image.Image)
}

// Strategy is one preprocessing recipe in the detection chain.
//
// Preprocess turns a grayscale photograph into the binary map whose
// external contours are evaluated. Params reports the evaluation limits the
// detector applies to those contours.
type Strategy interface {
	Name() string
	Params() StrategyParams
	Preprocess(gray *image.Gray, sink SnapshotSink) *image.Gray
}

// CannyStrategy blurs, runs Canny and thickens the edges.
type CannyStrategy struct {
	Limits       StrategyParams
	BlurRadius   float64
	DilateRadius float64
}

func (s CannyStrategy) Name() string           { return "canny" }
func (s CannyStrategy) Params() StrategyParams { return s.Limits }

func (s CannyStrategy) Preprocess(gray *image.Gray, sink SnapshotSink) *image.Gray {
	blurred := imaging.Blur(gray, s.BlurRadius)
	save(sink, "canny_blurred", blurred)
	edges := imaging.Canny(blurred, s.Limits.CannyLow, s.Limits.CannyHigh)
	if s.DilateRadius > 0 {
		edges = imaging.Binarize(imaging.Dilate(edges, s.DilateRadius))
	}
	save(sink, "canny_edges", edges)
	return edges
}

// CLAHEStrategy equalises local contrast before the Canny recipe, which
// rescues sheets photographed against pale backgrounds.
type CLAHEStrategy struct {
	Limits       StrategyParams
	ClipLimit    float64
	Tiles        int
	BlurRadius   float64
	DilateRadius float64
}

func (s CLAHEStrategy) Name() string           { return "clahe-canny" }
func (s CLAHEStrategy) Params() StrategyParams { return s.Limits }

func (s CLAHEStrategy) Preprocess(gray *image.Gray, sink SnapshotSink) *image.Gray {
	enhanced := imaging.CLAHE(gray, s.ClipLimit, s.Tiles)
	save(sink, "clahe_enhanced", enhanced)
	blurred := imaging.Blur(enhanced, s.BlurRadius)
	edges := imaging.Canny(blurred, s.Limits.CannyLow, s.Limits.CannyHigh)
	if s.DilateRadius > 0 {
		edges = imaging.Binarize(imaging.Dilate(edges, s.DilateRadius))
	}
	save(sink, "clahe_edges", edges)
	return edges
}

// AdaptiveStrategy thresholds against the local mean, cleans the result
// with a morphological close and open, then takes Canny edges of the binary
// map. The local threshold leaves a dark halo around a bright sheet, so the
// traced outline is slightly larger than the sheet itself.
type AdaptiveStrategy struct {
	Limits       StrategyParams
	Block        int
	C            float64
	MorphRadius  float64
	DilateRadius float64
}

func (s AdaptiveStrategy) Name() string           { return "adaptive-morph-canny" }
func (s AdaptiveStrategy) Params() StrategyParams { return s.Limits }

func (s AdaptiveStrategy) Preprocess(gray *image.Gray, sink SnapshotSink) *image.Gray {
	binary := imaging.AdaptiveThreshold(gray, s.Block, s.C, false)
	save(sink, "adaptive_threshold", binary)
	cleaned := imaging.Binarize(imaging.MorphOpen(imaging.MorphClose(binary, s.MorphRadius), s.MorphRadius))
	save(sink, "adaptive_morph", cleaned)
	edges := imaging.Canny(cleaned, s.Limits.CannyLow, s.Limits.CannyHigh)
	if s.DilateRadius > 0 {
		edges = imaging.Binarize(imaging.Dilate(edges, s.DilateRadius))
	}
	save(sink, "adaptive_edges", edges)
	return edges
}

// DefaultStrategies returns the fallback chain in the order it is tried.
func DefaultStrategies() []Strategy {
	return []Strategy{
		CannyStrategy{
			Limits:       StrategyParams{AspectTolerance: 0.15, MinArea: 5000, CannyLow: 30, CannyHigh: 100},
			BlurRadius:   imaging.DefaultBlurRadius,
			DilateRadius: 1,
		},
		CLAHEStrategy{
			Limits:       StrategyParams{AspectTolerance: 0.12, MinArea: 4000, CannyLow: 40, CannyHigh: 120},
			ClipLimit:    3,
			Tiles:        8,
			BlurRadius:   imaging.DefaultBlurRadius,
			DilateRadius: 1,
		},
		AdaptiveStrategy{
			Limits:       StrategyParams{AspectTolerance: 0.18, MinArea: 3000, CannyLow: 30, CannyHigh: 80},
			Block:        11,
			C:            2,
			MorphRadius:  1,
			DilateRadius: 1,
		},
	}
}

func save(sink SnapshotSink, name string, img image.Image) {
	if sink != nil {
		sink.Save(name, img)
	}
}
