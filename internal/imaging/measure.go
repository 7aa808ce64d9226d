package imaging

import (
	"errors"
	"image"
	"math"

	"github.com/ironsheep/marker-measure/internal/geometry"
)

// ErrNoScale is returned when a physical measurement is requested without a
// positive pixels-per-millimetre scale.
var ErrNoScale = errors.New("pixels_per_mm must be positive")

// DistanceResult contains measurement information
type DistanceResult struct {
	DistancePixels float64 `json:"distance_pixels"`
	DistanceMM     float64 `json:"distance_mm"`
	DeltaX         float64 `json:"delta_x"`
	DeltaY         float64 `json:"delta_y"`
	AngleDegrees   float64 `json:"angle_degrees"`
}

// MeasureDistance converts the distance between two pixel positions to
// millimetres at the given scale.
//
// The angle is 0 for horizontal-right and 90 for straight down. Points
// outside the image are allowed; photographs are often measured against
// a marker that was cropped at the edge.
func MeasureDistance(a, b geometry.Point2D, pixelsPerMM float64) (*DistanceResult, error) {
	if pixelsPerMM <= 0 {
		return nil, ErrNoScale
	}
	d := b.Sub(a)
	dist := a.Dist(b)
	angle := math.Atan2(d.Y, d.X) * 180 / math.Pi

	return &DistanceResult{
		DistancePixels: math.Round(dist*100) / 100,
		DistanceMM:     math.Round(dist/pixelsPerMM*10) / 10,
		DeltaX:         d.X,
		DeltaY:         d.Y,
		AngleDegrees:   math.Round(angle*10) / 10,
	}, nil
}

// RegionResult contains the physical size of a polygonal region.
type RegionResult struct {
	AreaPixels   float64 `json:"area_pixels"`
	AreaMM2      float64 `json:"area_mm2"`
	PerimeterMM  float64 `json:"perimeter_mm"`
	Compactness  float64 `json:"compactness"`
	BoundingBox  Box     `json:"bounding_box"`
	BoundingBoxW float64 `json:"bounding_box_width_mm"`
	BoundingBoxH float64 `json:"bounding_box_height_mm"`
}

// Box is an integer pixel rectangle; (X1,Y1) inclusive, (X2,Y2) exclusive.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// BoxFromRect converts an image.Rectangle.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// MeasureRegion reports the area and perimeter of a closed polygon in
// physical units. At least three points are required.
func MeasureRegion(pg geometry.Polygon, pixelsPerMM float64) (*RegionResult, error) {
	if pixelsPerMM <= 0 {
		return nil, ErrNoScale
	}
	if len(pg) < 3 {
		return nil, errors.New("region needs at least 3 points")
	}
	area, perimeter := pg.Area(), pg.Perimeter()
	bb := pg.Bounds()
	return &RegionResult{
		AreaPixels:   math.Round(area*100) / 100,
		AreaMM2:      math.Round(area/(pixelsPerMM*pixelsPerMM)*10) / 10,
		PerimeterMM:  math.Round(perimeter/pixelsPerMM*10) / 10,
		Compactness:  math.Round(geometry.Compactness(area, perimeter)*1000) / 1000,
		BoundingBox:  BoxFromRect(bb),
		BoundingBoxW: math.Round(float64(bb.Dx())/pixelsPerMM*10) / 10,
		BoundingBoxH: math.Round(float64(bb.Dy())/pixelsPerMM*10) / 10,
	}, nil
}
