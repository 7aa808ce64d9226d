// Package engine is the entry point for analysing and rectifying
// photographs that contain a reference sheet.
//
// An Engine holds configuration only. Analyze and Rectify take fully
// decoded input, never touch persistent storage, and may be called from
// any number of goroutines at once. Diagnostic snapshots go to a
// caller-supplied sink.
package engine

import (
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/marker-measure/internal/annotate"
	"github.com/ironsheep/marker-measure/internal/config"
	"github.com/ironsheep/marker-measure/internal/detection"
	"github.com/ironsheep/marker-measure/internal/geometry"
	"github.com/ironsheep/marker-measure/internal/imaging"
	"github.com/ironsheep/marker-measure/internal/rectify"
	"github.com/ironsheep/marker-measure/internal/snapshot"
)

// ErrInvalidImage is wrapped by every error for undecodable input.
var ErrInvalidImage = imaging.ErrInvalidImage

// Messages shown to end users.
const (
	MessageNotFound = "No reference sheet detected. Make sure the whole A4 sheet is visible, flat and well lit."
	messageFound    = "Reference sheet detected by strategy %d (%s)"
)

// Options configures an Engine.
type Options struct {
	Reference         detection.Reference
	Canvas            rectify.Canvas
	MaxCandidates     int
	MaxSuggestions    int
	MinSuggestionArea float64
	// AnalysisMaxSide bounds the long side of the copy Analyze works on;
	// zero analyses at full resolution.
	AnalysisMaxSide int
	Style           annotate.Style
	Debug           bool
}

// DefaultOptions returns options for an A4 reference rectified at 300 DPI.
func DefaultOptions() Options {
	return Options{
		Reference:         detection.A4,
		Canvas:            rectify.A4At300DPI,
		MaxCandidates:     detection.DefaultMaxCandidates,
		MaxSuggestions:    detection.DefaultMaxSuggestions,
		MinSuggestionArea: 1000,
		AnalysisMaxSide:   config.DefaultAnalysisMaxSide,
		Style:             annotate.DefaultStyle(),
	}
}

// OptionsFromConfig maps a loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Reference = detection.Reference{ShortMM: cfg.ReferenceShortMM, LongMM: cfg.ReferenceLongMM}
	opts.Canvas = cfg.Canvas()
	opts.MaxCandidates = cfg.MaxCandidates
	opts.MaxSuggestions = cfg.MaxSuggestions
	opts.MinSuggestionArea = cfg.MinSuggestionArea
	opts.AnalysisMaxSide = cfg.AnalysisMaxSide
	opts.Debug = cfg.Debug
	return opts
}

// Engine runs detection, suggestion and rectification.
type Engine struct {
	detector  *detection.Detector
	suggester *detection.Suggester
	rectifier *rectify.Rectifier
	style     annotate.Style
	maxSide   int
	debug     bool
}

// New builds an Engine. An invalid reference falls back to A4.
func New(opts Options) *Engine {
	ref := opts.Reference
	if !ref.Valid() {
		log.Printf("Invalid reference %gx%g mm, using A4", ref.ShortMM, ref.LongMM)
		ref = detection.A4
	}

	det := detection.NewDetector(ref)
	det.MaxCandidates = opts.MaxCandidates
	det.Debug = opts.Debug

	sug := detection.NewSuggester()
	if opts.MaxSuggestions > 0 {
		sug.MaxSuggestions = opts.MaxSuggestions
	}
	if opts.MinSuggestionArea > 0 {
		sug.MinArea = opts.MinSuggestionArea
	}

	rect := rectify.New()
	if opts.Canvas.Width > 0 && opts.Canvas.Height > 0 {
		rect.Canvas = opts.Canvas
	}
	rect.ShortMM = ref.ShortMM

	return &Engine{
		detector:  det,
		suggester: sug,
		rectifier: rect,
		style:     opts.Style,
		maxSide:   opts.AnalysisMaxSide,
		debug:     opts.Debug,
	}
}

// Reference returns the reference sheet the engine looks for.
func (e *Engine) Reference() detection.Reference {
	return e.detector.Reference
}

// Analysis is the result of Analyze.
type Analysis struct {
	// Marker is nil when no strategy accepted a candidate.
	Marker      *detection.ReferenceMarker `json:"marker"`
	PixelsPerMM float64                    `json:"pixels_per_mm,omitempty"`

	// Suggestions are only computed when a marker was found; the list is
	// never nil.
	Suggestions []detection.RegionSuggestion `json:"suggestions"`

	// Attempts holds one record per strategy that ran, in chain order.
	Attempts           []detection.Attempt `json:"attempts"`
	SuccessfulStrategy string              `json:"successful_strategy,omitempty"`
	StrategyIndex      int                 `json:"strategy_index,omitempty"`

	Success bool   `json:"success"`
	Message string `json:"message"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// WorkingScale is how many full-size pixels one pixel of the analysed
	// copy spans. Marker and suggestion geometry is already mapped back to
	// full size; rejection areas in Attempts are in working pixels.
	WorkingScale float64 `json:"working_scale"`
}

// Analyze decodes data and analyses it. sink may be nil.
func (e *Engine) Analyze(data []byte, sink snapshot.Sink) (*Analysis, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeImage(img, sink), nil
}

// AnalyzeImage runs the strategy chain over img and, when the reference is
// found, suggests regions to measure at the recovered scale.
//
// Large photographs are analysed on a copy whose long side is at most the
// configured AnalysisMaxSide; the results are reported in img's pixels.
func (e *Engine) AnalyzeImage(img image.Image, sink snapshot.Sink) *Analysis {
	work, f := imaging.Shrink(img, e.maxSide)
	gray := imaging.Grayscale(work)
	run := e.detector.Detect(gray, sink)

	a := &Analysis{
		Suggestions:  make([]detection.RegionSuggestion, 0),
		Attempts:     run.Attempts,
		Width:        img.Bounds().Dx(),
		Height:       img.Bounds().Dy(),
		WorkingScale: f,
		Message:      MessageNotFound,
	}
	ok := run.Successful()
	if ok == nil {
		if e.debug {
			log.Printf("No marker after %d strategies", len(run.Attempts))
		}
		return a
	}

	marker := detection.ScaleMarker(run.Marker, f, e.detector.Reference)
	for i := range a.Attempts {
		if a.Attempts[i].Marker != nil {
			a.Attempts[i].Marker = marker
		}
	}
	if e.debug && f != 1 {
		log.Printf("Analysed at 1/%.2f scale, marker %.3f px/mm at full size", f, marker.PixelsPerMM)
	}

	a.Marker = marker
	a.PixelsPerMM = marker.PixelsPerMM
	a.SuccessfulStrategy = ok.Strategy
	a.StrategyIndex = ok.Index
	a.Success = true
	a.Message = fmt.Sprintf(messageFound, ok.Index, ok.Strategy)
	a.Suggestions = detection.ScaleSuggestions(e.suggester.Suggest(gray, run.Marker.PixelsPerMM, sink), f)
	return a
}

// Rectify decodes data and warps it so the quad given by corners fills the
// rectified canvas. Exactly four corners are required.
func (e *Engine) Rectify(data []byte, corners []geometry.Point2D) (*rectify.Result, error) {
	if len(corners) != 4 {
		return nil, &geometry.DegenerateGeometryError{Reason: fmt.Sprintf("need exactly 4 corners, got %d", len(corners))}
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.RectifyImage(img, [4]geometry.Point2D(corners))
}

// RectifyImage warps img onto the rectified canvas. Degenerate corners
// return a *geometry.DegenerateGeometryError and no image.
func (e *Engine) RectifyImage(img image.Image, corners [4]geometry.Point2D) (*rectify.Result, error) {
	res, err := e.rectifier.Rectify(img, corners)
	if err != nil {
		return nil, fmt.Errorf("rectify: %w", err)
	}
	if e.debug {
		log.Printf("Rectified to %dx%d (%.3f px/mm)", res.Width, res.Height, res.PixelsPerMM)
	}
	return res, nil
}

// Annotate draws the analysis onto a copy of img.
func (e *Engine) Annotate(img image.Image, a *Analysis) *image.NRGBA {
	return annotate.Render(img, a.Marker, a.Suggestions, e.style)
}
