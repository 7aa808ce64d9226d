package detection

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/ironsheep/marker-measure/internal/geometry"
)

// sheetImage draws a bright sheet on a dark background.
func sheetImage(w, h int, sheet image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	fillGray(img, img.Bounds(), 40)
	fillGray(img, sheet, 230)
	return img
}

// quadImage draws a bright convex quadrilateral on a dark background.
func quadImage(w, h int, corners [4]geometry.Point2D) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	pg := geometry.Polygon(corners[:])
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(40)
			if pg.Contains(geometry.Pt(float64(x), float64(y))) {
				v = 230
			}
			img.Pix[img.PixOffset(x, y)] = v
		}
	}
	return img
}

func TestDetect_AxisAlignedSheet(t *testing.T) {
	// 420 x 594 px sheet: exactly 2 px/mm.
	gray := sheetImage(600, 800, image.Rect(90, 100, 510, 694))

	run := NewDetector(A4).Detect(gray, nil)
	if run.State != StateSucceeded {
		t.Fatalf("State: got %s, attempts: %+v", run.State, run.Attempts)
	}
	if run.Current != 1 || len(run.Attempts) != 1 {
		t.Errorf("expected the first strategy to succeed, got current=%d attempts=%d", run.Current, len(run.Attempts))
	}
	m := run.Marker
	if rel := math.Abs(m.PixelsPerMM-2) / 2; rel > 0.02 {
		t.Errorf("PixelsPerMM: got %.4f, want 2 within 2%%", m.PixelsPerMM)
	}
	if math.Abs(m.AspectRatio-A4.Ratio()) >= 0.15 {
		t.Errorf("AspectRatio: got %v", m.AspectRatio)
	}
	if m.Confidence <= 0.9 || m.Confidence > 1 {
		t.Errorf("Confidence: got %v", m.Confidence)
	}
	if got := run.Successful(); got == nil || got.Strategy != "canny" || got.Marker != m {
		t.Errorf("Successful: got %+v", got)
	}
}

func TestDetect_PerspectiveSheet(t *testing.T) {
	truth := [4]geometry.Point2D{
		geometry.Pt(120, 90), geometry.Pt(500, 120), geometry.Pt(520, 700), geometry.Pt(90, 660),
	}
	gray := quadImage(640, 800, truth)

	run := NewDetector(A4).Detect(gray, nil)
	if run.Marker == nil {
		t.Fatalf("no marker, attempts: %+v", run.Attempts)
	}
	for i, c := range run.Marker.Corners {
		if d := c.Dist(truth[i]); d > 6 {
			t.Errorf("corner %d: got %v, want near %v (off by %.1f px)", i, c, truth[i], d)
		}
	}
}

// tiltedSheet returns the corners of an exact-ratio reference whose short
// side is short px, centred at c and turned by deg degrees.
func tiltedSheet(c geometry.Point2D, short float64, landscape bool, deg float64) [4]geometry.Point2D {
	w, h := short, short/A4.Ratio()
	if landscape {
		w, h = h, w
	}
	corners := [4]geometry.Point2D{
		geometry.Pt(c.X-w/2, c.Y-h/2), geometry.Pt(c.X+w/2, c.Y-h/2),
		geometry.Pt(c.X+w/2, c.Y+h/2), geometry.Pt(c.X-w/2, c.Y+h/2),
	}
	for i := range corners {
		corners[i] = rotate(corners[i], c, deg)
	}
	return corners
}

func TestDetect_NearlyLevelSheets(t *testing.T) {
	center := geometry.Pt(400, 400)
	for _, short := range []float64{300, 350, 400} {
		for _, landscape := range []bool{false, true} {
			for _, deg := range []float64{-0.3, -0.2, -0.1, 0, 0.1, 0.2, 0.3} {
				truth := tiltedSheet(center, short, landscape, deg)
				name := fmt.Sprintf("short=%v/landscape=%v/%+.1f", short, landscape, deg)
				t.Run(name, func(t *testing.T) {
					run := NewDetector(A4).Detect(quadImage(800, 800, truth), nil)
					if run.Marker == nil {
						t.Fatalf("no marker, state %s", run.State)
					}
					want := short / A4.ShortMM
					if rel := math.Abs(run.Marker.PixelsPerMM-want) / want; rel > 0.02 {
						t.Errorf("PixelsPerMM: got %.4f, want %.4f within 2%%", run.Marker.PixelsPerMM, want)
					}
					for _, tc := range truth {
						nearest := math.Inf(1)
						for _, c := range run.Marker.Corners {
							nearest = math.Min(nearest, c.Dist(tc))
						}
						if nearest > 6 {
							t.Errorf("corner %v missing, got %v", tc, run.Marker.Corners)
						}
					}
				})
			}
		}
	}
}

func TestDetect_LogsOnlyInDebug(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	gray := sheetImage(600, 800, image.Rect(90, 100, 510, 694))
	d := NewDetector(A4)
	if run := d.Detect(gray, nil); run.Marker == nil {
		t.Fatal("no marker")
	}
	if buf.Len() != 0 {
		t.Errorf("quiet detector logged: %q", buf.String())
	}

	d.Debug = true
	d.Detect(gray, nil)
	if !strings.Contains(buf.String(), "Marker found by strategy 1") {
		t.Errorf("debug detector log: %q", buf.String())
	}
}

func TestDetect_BlankImageExhausts(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 300, 300))
	fillGray(gray, gray.Bounds(), 128)

	run := NewDetector(A4).Detect(gray, nil)
	if run.State != StateExhausted || run.Marker != nil {
		t.Fatalf("expected exhausted without marker, got %s", run.State)
	}
	if len(run.Attempts) != 3 {
		t.Fatalf("expected one attempt per strategy, got %d", len(run.Attempts))
	}
	for _, a := range run.Attempts {
		if a.ContoursFound != 0 {
			t.Errorf("%s: ContoursFound = %d", a.Strategy, a.ContoursFound)
		}
		if len(a.Rejections) != 1 || a.Rejections[0].Kind != RejectNoContours {
			t.Errorf("%s: rejections %v", a.Strategy, a.Rejections)
		}
	}
	if run.Successful() != nil {
		t.Error("Successful should be nil on exhaustion")
	}
}

func TestDetect_FallsBackToAdaptiveStrategy(t *testing.T) {
	// Traced edge outlines of this sheet enclose about 3300 px², below the
	// minimum area of the first two strategies. The adaptive threshold's
	// dark halo widens the third strategy's outline past its 3000 px² floor.
	gray := sheetImage(160, 200, image.Rect(57, 67, 103, 132))

	run := NewDetector(A4).Detect(gray, nil)
	if run.State != StateSucceeded {
		for _, a := range run.Attempts {
			t.Logf("%s", a.Summary())
			for _, r := range a.Rejections {
				t.Logf("  %s", r)
			}
		}
		t.Fatalf("State: got %s", run.State)
	}
	if run.Current != 3 {
		t.Fatalf("expected strategy 3, got %d", run.Current)
	}
	for _, a := range run.Attempts[:2] {
		if a.Succeeded() || a.Count(RejectAreaTooSmall) == 0 {
			t.Errorf("%s: expected area rejections, got %v", a.Strategy, a.Rejections)
		}
	}
	if run.Attempts[2].Strategy != "adaptive-morph-canny" {
		t.Errorf("third strategy: got %s", run.Attempts[2].Strategy)
	}
}

// fakeStrategy returns a fixed binary map and counts its invocations.
type fakeStrategy struct {
	name  string
	out   *image.Gray
	calls *int
}

func (f fakeStrategy) Name() string { return f.name }
func (f fakeStrategy) Params() StrategyParams {
	return StrategyParams{AspectTolerance: 0.1, MinArea: 1000}
}
func (f fakeStrategy) Preprocess(*image.Gray, SnapshotSink) *image.Gray {
	*f.calls++
	return f.out
}

func TestDetect_ChainOrderAndStop(t *testing.T) {
	calls := make([]int, 4)
	d := NewDetector(A4)
	d.Strategies = []Strategy{
		fakeStrategy{"blank", binaryMap(300, 300), &calls[0]},
		fakeStrategy{"square", binaryMap(300, 300, image.Rect(50, 50, 200, 200)), &calls[1]},
		fakeStrategy{"sheet", binaryMap(300, 300, image.Rect(50, 50, 156, 200)), &calls[2]},
		fakeStrategy{"unused", binaryMap(300, 300, image.Rect(50, 50, 156, 200)), &calls[3]},
	}

	run := d.Detect(image.NewGray(image.Rect(0, 0, 300, 300)), nil)
	if run.State != StateSucceeded || run.Current != 3 {
		t.Fatalf("got state %s at %d", run.State, run.Current)
	}
	if want := []int{1, 1, 1, 0}; !equalInts(calls, want) {
		t.Errorf("strategy calls: got %v, want %v", calls, want)
	}
	if run.Attempts[0].Count(RejectNoContours) != 1 {
		t.Errorf("blank: %v", run.Attempts[0].Rejections)
	}
	if run.Attempts[1].Count(RejectAspectRatio) == 0 {
		t.Errorf("square: %v", run.Attempts[1].Rejections)
	}
	if a := run.Successful(); a == nil || a.Index != 3 || a.Strategy != "sheet" {
		t.Errorf("Successful: %+v", a)
	}
}

func TestDetect_MaxCandidates(t *testing.T) {
	// 20 squares below the minimum area; only MaxCandidates are evaluated.
	var rects []image.Rectangle
	for i := 0; i < 20; i++ {
		x, y := 10+(i%5)*60, 10+(i/5)*60
		rects = append(rects, image.Rect(x, y, x+20, y+20))
	}
	calls := 0
	d := NewDetector(A4)
	d.MaxCandidates = 15
	d.Strategies = []Strategy{fakeStrategy{"grid", binaryMap(320, 260, rects...), &calls}}

	run := d.Detect(image.NewGray(image.Rect(0, 0, 320, 260)), nil)
	a := run.Attempts[0]
	if a.ContoursFound != 20 || a.CandidatesAnalyzed != 15 {
		t.Errorf("found=%d analysed=%d, want 20/15", a.ContoursFound, a.CandidatesAnalyzed)
	}
	if a.Count(RejectAreaTooSmall) != 15 {
		t.Errorf("area rejections: got %d, want 15", a.Count(RejectAreaTooSmall))
	}
}

type recordingSink struct{ names []string }

func (s *recordingSink) Save(name string, _ image.Image) { s.names = append(s.names, name) }

func TestDetect_EmitsSnapshots(t *testing.T) {
	sink := &recordingSink{}
	gray := sheetImage(600, 800, image.Rect(90, 100, 510, 694))
	NewDetector(A4).Detect(gray, sink)

	want := []string{"gray", "canny_blurred", "canny_edges"}
	if !equalStrings(sink.names, want) {
		t.Errorf("snapshots: got %v, want %v", sink.names, want)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StatePending:   "pending",
		StateRunning:   "running",
		StateSucceeded: "succeeded",
		StateExhausted: "exhausted",
		State(42):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
