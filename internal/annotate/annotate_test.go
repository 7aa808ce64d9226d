package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/marker-measure/internal/detection"
	"github.com/ironsheep/marker-measure/internal/geometry"
)

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	return d >= -tol && d <= tol
}

func isWhite(c color.NRGBA) bool {
	return c.R == 255 && c.G == 255 && c.B == 255
}

func testMarker() *detection.ReferenceMarker {
	return &detection.ReferenceMarker{
		Corners: geometry.Quad{
			geometry.Pt(20, 20), geometry.Pt(180, 20), geometry.Pt(180, 280), geometry.Pt(20, 280),
		},
		PixelsPerMM: 0.76,
		Confidence:  0.98,
	}
}

func TestRender_Marker(t *testing.T) {
	src := whiteImage(200, 300)
	out := Render(src, testMarker(), nil, DefaultStyle())

	for _, p := range []image.Point{{100, 20}, {180, 150}, {100, 280}, {20, 150}} {
		c := out.NRGBAAt(p.X, p.Y)
		if c.G < 150 || c.R > 60 {
			t.Errorf("outline pixel %v: got %v, want green", p, c)
		}
	}
	if c := out.NRGBAAt(100, 150); !isWhite(c) {
		t.Errorf("interior changed: %v", c)
	}
	if c := out.NRGBAAt(100, 5); !isWhite(c) {
		t.Errorf("banner drawn although a marker was found: %v", c)
	}
	if !isWhite(src.NRGBAAt(100, 20)) {
		t.Error("Render modified its input")
	}
}

func TestRender_NotDetected(t *testing.T) {
	out := Render(whiteImage(200, 100), nil, nil, DefaultStyle())

	c := out.NRGBAAt(199, 1)
	if c.R < 200 || c.G > 30 || c.B > 30 {
		t.Errorf("banner pixel: got %v, want red", c)
	}
	if c := out.NRGBAAt(100, 60); !isWhite(c) {
		t.Errorf("below banner: got %v", c)
	}
}

func TestRender_Suggestions(t *testing.T) {
	suggestions := []detection.RegionSuggestion{
		{
			Boundary:   geometry.Polygon{geometry.Pt(20, 100), geometry.Pt(180, 100)},
			Kind:       detection.KindLength,
			Confidence: 1,
			LengthMM:   80,
		},
		{
			Boundary: geometry.Polygon{
				geometry.Pt(40, 150), geometry.Pt(100, 150), geometry.Pt(100, 210), geometry.Pt(40, 210),
			},
			Kind:       detection.KindArea,
			Confidence: 1,
			AreaMM2:    900,
		},
		{Boundary: geometry.Polygon{geometry.Pt(5, 5)}, Kind: detection.KindArea},
	}
	out := Render(whiteImage(200, 300), nil, suggestions, DefaultStyle())

	length := out.NRGBAAt(100, 100)
	if !near(length.R, 41, 2) || !near(length.G, 121, 2) || !near(length.B, 255, 2) {
		t.Errorf("length segment: got %v, want #2979ff", length)
	}
	area := out.NRGBAAt(70, 150)
	if !near(area.R, 255, 2) || !near(area.G, 145, 2) || !near(area.B, 0, 2) {
		t.Errorf("area outline: got %v, want #ff9100", area)
	}
	if c := out.NRGBAAt(70, 180); !isWhite(c) {
		t.Errorf("area interior changed: %v", c)
	}
	// The segment is open: nothing joins its ends.
	if c := out.NRGBAAt(100, 110); !isWhite(c) {
		t.Errorf("length drawn as a closed shape: %v", c)
	}
}

func TestConfidenceColor(t *testing.T) {
	base := color.NRGBA{R: 41, G: 121, B: 255, A: 200}

	full := ConfidenceColor(base, 1)
	if !near(full.R, base.R, 1) || !near(full.G, base.G, 1) || !near(full.B, base.B, 1) || full.A != 200 {
		t.Errorf("confidence 1: got %v, want %v", full, base)
	}
	none := ConfidenceColor(base, -0.5)
	if !near(none.R, 153, 1) || !near(none.G, 153, 1) || !near(none.B, 153, 1) {
		t.Errorf("confidence 0: got %v, want grey", none)
	}
	half := ConfidenceColor(base, 0.5)
	if half.B <= none.B || half.B >= full.B {
		t.Errorf("confidence 0.5 should lie between grey and base: %v", half)
	}
}

func TestParseColorFallback(t *testing.T) {
	if got := parseColor("nope", "#010203"); got != (color.NRGBA{1, 2, 3, 255}) {
		t.Errorf("fallback: got %v", got)
	}
}
