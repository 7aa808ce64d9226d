package geometry

import (
	"image"
	"math"
)

// Point2D is a real-valued pixel coordinate.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for constructing a Point2D.
func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// FromImagePoint converts an integer pixel position.
func FromImagePoint(p image.Point) Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Add returns p+q.
func (p Point2D) Add(q Point2D) Point2D {
	return Point2D{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point2D) Dist(q Point2D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rescale maps a pixel position on an image resized by 1/f back onto the
// original image. Pixel centres stay pixel centres.
func (p Point2D) Rescale(f float64) Point2D {
	return Point2D{X: (p.X+0.5)*f - 0.5, Y: (p.Y+0.5)*f - 0.5}
}

// Round returns the nearest integer pixel.
func (p Point2D) Round() image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// cross returns the z component of (a-o) x (b-o).
func cross(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Polygon is an ordered, implicitly closed sequence of points.
type Polygon []Point2D

// SignedArea returns the shoelace area. It is positive for polygons wound
// clockwise on screen (Y down).
func (pg Polygon) SignedArea() float64 {
	n := len(pg)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pg[i].X*pg[j].Y - pg[j].X*pg[i].Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area in square pixels.
func (pg Polygon) Area() float64 {
	return math.Abs(pg.SignedArea())
}

// Perimeter returns the closed arc length.
func (pg Polygon) Perimeter() float64 {
	n := len(pg)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += pg[i].Dist(pg[(i+1)%n])
	}
	return sum
}

// PathLength returns the open arc length (last point not joined to first).
func (pg Polygon) PathLength() float64 {
	var sum float64
	for i := 1; i < len(pg); i++ {
		sum += pg[i-1].Dist(pg[i])
	}
	return sum
}

// Centroid returns the mean of the vertices.
func (pg Polygon) Centroid() Point2D {
	if len(pg) == 0 {
		return Point2D{}
	}
	var c Point2D
	for _, p := range pg {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(len(pg))
	c.Y /= float64(len(pg))
	return c
}

// Bounds returns the integer bounding rectangle (Max exclusive).
func (pg Polygon) Bounds() image.Rectangle {
	if len(pg) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pg {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Floor(maxX))+1, int(math.Floor(maxY))+1)
}

// Compactness returns the isoperimetric quotient 4*pi*area/perimeter^2,
// clamped to [0,1]. A circle scores 1; jagged outlines approach 0.
func Compactness(area, perimeter float64) float64 {
	if perimeter <= 0 || area <= 0 {
		return 0
	}
	c := 4 * math.Pi * area / (perimeter * perimeter)
	return math.Max(0, math.Min(1, c))
}

// Contains reports whether p lies inside the polygon (even-odd rule).
func (pg Polygon) Contains(p Point2D) bool {
	inside := false
	n := len(pg)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pg[i], pg[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}
