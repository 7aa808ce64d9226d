// Package rectify maps the region inside a reference marker onto a
// top-down canvas of fixed physical scale.
package rectify

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/marker-measure/internal/geometry"
)

const mmPerInch = 25.4

// Canvas is the portrait size of the rectified output in pixels.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// A4At300DPI is the usual canvas for an A4 sheet.
var A4At300DPI = Canvas{Width: 2480, Height: 3508}

// CanvasFor returns the canvas that shows a shortMM x longMM reference at
// the given dots per inch.
func CanvasFor(shortMM, longMM, dpi float64) Canvas {
	return Canvas{
		Width:  int(math.Round(shortMM / mmPerInch * dpi)),
		Height: int(math.Round(longMM / mmPerInch * dpi)),
	}
}

// Rectifier warps photographs so the reference marker fills the canvas.
type Rectifier struct {
	Canvas Canvas
	// ShortMM is the physical length of the reference's short side, used to
	// report the output scale.
	ShortMM float64
	// Background fills output pixels whose source lies outside the photo.
	Background color.NRGBA
}

// New returns a Rectifier for an A4 reference at 300 DPI.
func New() *Rectifier {
	return &Rectifier{
		Canvas:     A4At300DPI,
		ShortMM:    210,
		Background: color.NRGBA{A: 255},
	}
}

// Result is a rectified image and the transform that produced it.
type Result struct {
	Image      *image.NRGBA
	Homography geometry.Homography
	Corners    geometry.Quad
	Width      int
	Height     int
	// PixelsPerMM is the scale of the rectified image.
	PixelsPerMM float64
	Landscape   bool
}

// Rectify computes the homography taking corners onto the canvas
// rectangle (0,0), (w-1,0), (w-1,h-1), (0,h-1) and resamples img through its
// inverse with bilinear interpolation.
//
// Corners may be given in any order; they are put into canonical order
// first. When the marker's top edge is longer than its left edge the canvas
// is turned to landscape so the sheet is not stretched. Collinear,
// coincident or otherwise degenerate corners return a
// *geometry.DegenerateGeometryError and no image.
func (r *Rectifier) Rectify(img image.Image, corners [4]geometry.Point2D) (*Result, error) {
	q := geometry.OrderCorners(corners)
	if err := geometry.ValidateQuad(q); err != nil {
		return nil, err
	}

	w, h := r.Canvas.Width, r.Canvas.Height
	top, left := q.Sides()
	landscape := top > left
	if landscape {
		w, h = h, w
	}
	if w < 2 || h < 2 {
		return nil, &geometry.DegenerateGeometryError{Reason: "canvas is smaller than 2x2"}
	}

	dst := [4]geometry.Point2D{
		geometry.Pt(0, 0),
		geometry.Pt(float64(w-1), 0),
		geometry.Pt(float64(w-1), float64(h-1)),
		geometry.Pt(0, float64(h-1)),
	}
	hom, err := geometry.NewHomography(q, dst)
	if err != nil {
		return nil, err
	}
	inv, err := hom.Inverse()
	if err != nil {
		return nil, err
	}

	out := Warp(img, inv, w, h, r.Background)

	ppm := 0.0
	if r.ShortMM > 0 {
		ppm = float64(min(w, h)-1) / r.ShortMM
	}
	return &Result{
		Image:       out,
		Homography:  hom,
		Corners:     q,
		Width:       w,
		Height:      h,
		PixelsPerMM: ppm,
		Landscape:   landscape,
	}, nil
}

// Warp fills a w x h image by sampling src at inv(x, y) for every output
// pixel. Samples falling outside src take bg. Rows are split across CPUs.
func Warp(src image.Image, inv geometry.Homography, w, h int, bg color.NRGBA) *image.NRGBA {
	in := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	workers := min(runtime.GOMAXPROCS(0), h)
	var wg sync.WaitGroup
	for k := 0; k < workers; k++ {
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				row := out.Pix[y*out.Stride:]
				for x := 0; x < w; x++ {
					p := inv.Apply(geometry.Pt(float64(x), float64(y)))
					c := sample(in, p.X, p.Y, bg)
					row[4*x], row[4*x+1], row[4*x+2], row[4*x+3] = c.R, c.G, c.B, c.A
				}
			}
		}(k*h/workers, (k+1)*h/workers)
	}
	wg.Wait()
	return out
}

// sample interpolates img at (x, y), where integer coordinates are pixel
// centres. Points more than half a pixel outside the image return bg.
func sample(img *image.NRGBA, x, y float64, bg color.NRGBA) color.NRGBA {
	b := img.Bounds()
	fw, fh := float64(b.Dx()), float64(b.Dy())
	if math.IsNaN(x) || math.IsNaN(y) || x < -0.5 || y < -0.5 || x > fw-0.5 || y > fh-0.5 {
		return bg
	}

	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	x0, y0 = max(x0, 0), max(y0, 0)

	p00 := img.Pix[y0*img.Stride+4*x0:]
	p10 := img.Pix[y0*img.Stride+4*x1:]
	p01 := img.Pix[y1*img.Stride+4*x0:]
	p11 := img.Pix[y1*img.Stride+4*x1:]

	var c [4]uint8
	for i := 0; i < 4; i++ {
		top := (1-fx)*float64(p00[i]) + fx*float64(p10[i])
		bottom := (1-fx)*float64(p01[i]) + fx*float64(p11[i])
		c[i] = uint8(math.Round((1-fy)*top + fy*bottom))
	}
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}
