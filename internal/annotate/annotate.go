// Package annotate draws detection results onto a copy of the photograph:
// the reference outline with numbered corners, or a banner when no
// reference was found, and the suggested measurement regions.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"

	"github.com/ironsheep/marker-measure/internal/detection"
	"github.com/ironsheep/marker-measure/internal/geometry"
	mmimaging "github.com/ironsheep/marker-measure/internal/imaging"
)

// Style holds the overlay colours as hex strings ("#RRGGBB" or
// "#RRGGBBAA") and the stroke width in pixels.
type Style struct {
	MarkerColor string  `json:"marker_color"`
	LengthColor string  `json:"length_color"`
	AreaColor   string  `json:"area_color"`
	BannerColor string  `json:"banner_color"`
	LineWidth   float64 `json:"line_width"`
}

// DefaultStyle draws the marker in green, lengths in blue and areas in
// orange.
func DefaultStyle() Style {
	return Style{
		MarkerColor: "#00c853",
		LengthColor: "#2979ff",
		AreaColor:   "#ff9100",
		BannerColor: "#d50000",
		LineWidth:   3,
	}
}

var (
	labelFG = color.White
	labelBG = color.NRGBA{A: 200}
	// faded is the colour of a zero-confidence suggestion.
	faded = colorful.Color{R: 0.6, G: 0.6, B: 0.6}
)

// Render returns an annotated copy of img. A nil marker draws the
// "not detected" banner instead of an outline.
func Render(img image.Image, marker *detection.ReferenceMarker, suggestions []detection.RegionSuggestion, st Style) *image.NRGBA {
	out := imaging.Clone(img)
	if marker != nil {
		Marker(out, marker, st)
	} else {
		NotDetected(out, st)
	}
	Suggestions(out, suggestions, st)
	return out
}

// Marker outlines the reference quad, labels its corners C1..C4 in
// canonical order and writes the scale next to the first corner.
func Marker(dst *image.NRGBA, m *detection.ReferenceMarker, st Style) {
	c := parseColor(st.MarkerColor, DefaultStyle().MarkerColor)
	stroke(dst, m.Corners.Polygon(), true, st.LineWidth, c)

	for i, p := range m.Corners {
		pt := p.Round()
		mmimaging.DrawLabel(dst, pt.X+4, pt.Y+4, fmt.Sprintf("C%d", i+1), labelFG, c)
	}
	tl := m.Corners[0].Round()
	caption := fmt.Sprintf("%.2f px/mm  conf %.2f", m.PixelsPerMM, m.Confidence)
	mmimaging.DrawLabel(dst, tl.X+4, tl.Y+22, caption, labelFG, labelBG)
}

// NotDetected paints a banner across the top of dst.
func NotDetected(dst *image.NRGBA, st Style) {
	c := parseColor(st.BannerColor, DefaultStyle().BannerColor)
	b := dst.Bounds()
	banner := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+min(24, b.Dy()))
	draw.Draw(dst, banner, image.NewUniform(c), image.Point{}, draw.Over)
	mmimaging.DrawLabel(dst, b.Min.X+6, b.Min.Y+5, "Reference marker not detected", labelFG, c)
}

// Suggestions outlines each region, numbered in list order. Lengths are
// drawn as open segments, areas as closed outlines. The colour fades
// towards grey as confidence drops.
func Suggestions(dst *image.NRGBA, list []detection.RegionSuggestion, st Style) {
	def := DefaultStyle()
	for i, s := range list {
		if len(s.Boundary) < 2 {
			continue
		}
		var base color.NRGBA
		var label string
		if s.Kind == detection.KindLength {
			base = parseColor(st.LengthColor, def.LengthColor)
			label = fmt.Sprintf("#%d %.1f mm", i+1, s.LengthMM)
		} else {
			base = parseColor(st.AreaColor, def.AreaColor)
			label = fmt.Sprintf("#%d %.1f mm2", i+1, s.AreaMM2)
		}
		c := ConfidenceColor(base, s.Confidence)
		stroke(dst, s.Boundary, s.Kind != detection.KindLength, st.LineWidth, c)

		at := s.Boundary[0].Round()
		mmimaging.DrawLabel(dst, at.X+4, at.Y-16, label, labelFG, c)
	}
}

// ConfidenceColor blends base towards grey in L*a*b* space: confidence 1
// gives base, 0 gives grey. Alpha is kept.
func ConfidenceColor(base color.NRGBA, confidence float64) color.NRGBA {
	confidence = math.Max(0, math.Min(1, confidence))
	opaque := color.NRGBA{R: base.R, G: base.G, B: base.B, A: 255}
	cb, ok := colorful.MakeColor(opaque)
	if !ok {
		return base
	}
	r, g, b := faded.BlendLab(cb, confidence).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: base.A}
}

// stroke draws the polyline pg with the given width. closed joins the last
// point back to the first. Only the polyline's bounding box is rasterised.
func stroke(dst *image.NRGBA, pg geometry.Polygon, closed bool, width float64, c color.Color) {
	if width <= 0 {
		width = 1
	}
	r := pg.Bounds().Inset(-int(math.Ceil(width)) - 1).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = draw.Over

	n := len(pg)
	segments := n - 1
	if closed {
		segments = n
	}
	origin := geometry.FromImagePoint(r.Min)
	for i := 0; i < segments; i++ {
		segment(z, pg[i].Sub(origin), pg[(i+1)%n].Sub(origin), width/2)
	}
	z.Draw(dst, r, image.NewUniform(c), image.Point{})
}

// segment adds a rectangle of half-width hw around a-b, extended by hw past
// both ends so neighbouring segments meet without notches. Pixel centres sit
// at +0.5 in rasterizer space.
func segment(z *vector.Rasterizer, a, b geometry.Point2D, hw float64) {
	d := b.Sub(a)
	l := math.Hypot(d.X, d.Y)
	if l == 0 {
		d, l = geometry.Pt(1, 0), 1
	}
	ux, uy := d.X/l*hw, d.Y/l*hw
	a = geometry.Pt(a.X-ux+0.5, a.Y-uy+0.5)
	b = geometry.Pt(b.X+ux+0.5, b.Y+uy+0.5)

	z.MoveTo(float32(a.X+uy), float32(a.Y-ux))
	z.LineTo(float32(b.X+uy), float32(b.Y-ux))
	z.LineTo(float32(b.X-uy), float32(b.Y+ux))
	z.LineTo(float32(a.X-uy), float32(a.Y+ux))
	z.ClosePath()
}

func parseColor(hex, fallback string) color.NRGBA {
	if c, err := mmimaging.ParseHexColor(hex); err == nil {
		return c
	}
	c, _ := mmimaging.ParseHexColor(fallback)
	return c
}
