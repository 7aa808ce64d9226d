package detection

import (
	"image"

	"github.com/ironsheep/marker-measure/internal/geometry"
)

// Contour is the outer boundary of one connected foreground region.
type Contour struct {
	// Points is the traced boundary, one vertex per boundary pixel, wound
	// clockwise on screen and starting at the region's top-left pixel.
	Points geometry.Polygon

	// Area is the shoelace area enclosed by Points in square pixels.
	Area float64
}

// FindExternalContours returns the outer boundaries of the foreground
// (value >= 128) regions of a binary map.
//
// Foreground regions are 8-connected and background regions 4-connected.
// Only outermost regions are reported: a region qualifies when it touches
// the image border or the background that is reachable from the border.
// Regions nested inside holes of another region are skipped, as are the
// holes themselves. Contours are returned in raster order of their first
// pixel.
//
// # Algorithm
//
//  1. Flood the background from every border pixel to mark "outside"
//  2. Label foreground components with an iterative 8-connected flood fill,
//     noting whether any member pixel is 4-adjacent to the outside
//  3. Trace each qualifying component with Moore-neighbour tracing,
//     starting from its raster-first pixel
func FindExternalContours(bin *image.Gray) []Contour {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := bin.Pix[bin.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			fg[y*w+x] = row[x] >= 128
		}
	}
	outside := markOutside(fg, w, h)

	visited := make([]bool, w*h)
	stack := make([]int, 0, 1024)
	contours := make([]Contour, 0)

	for i := range fg {
		if !fg[i] || visited[i] {
			continue
		}

		// i is the raster-first pixel of a new component.
		size, external := 0, false
		visited[i] = true
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++

			x, y := j%w, j/w
			if !external && touchesOutside(outside, x, y, w, h) {
				external = true
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					k := ny*w + nx
					if fg[k] && !visited[k] {
						visited[k] = true
						stack = append(stack, k)
					}
				}
			}
		}

		if !external {
			continue
		}
		pts := traceBoundary(fg, w, h, image.Pt(i%w, i/w), 4*size+8)
		contours = append(contours, Contour{Points: pts, Area: pts.Area()})
	}

	return contours
}

// markOutside flags every background pixel 4-connected to the image border.
func markOutside(fg []bool, w, h int) []bool {
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))
	push := func(i int) {
		if !fg[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}

	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 0; y < h; y++ {
		push(y * w)
		push(y*w + w - 1)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(i - 1)
		}
		if x < w-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - w)
		}
		if y < h-1 {
			push(i + w)
		}
	}
	return outside
}

func touchesOutside(outside []bool, x, y, w, h int) bool {
	if x == 0 || y == 0 || x == w-1 || y == h-1 {
		return true
	}
	i := y*w + x
	return outside[i-1] || outside[i+1] || outside[i-w] || outside[i+w]
}

// mooreRing lists the 8 neighbours clockwise on screen, starting west.
var mooreRing = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// traceBoundary walks the outer boundary of the component containing start,
// which must be that component's raster-first pixel.
//
// The walk stops when it is about to repeat its first move, which handles
// one-pixel-wide spurs that revisit the start pixel. maxSteps bounds the
// walk.
func traceBoundary(fg []bool, w, h int, start image.Point, maxSteps int) geometry.Polygon {
	isFG := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && fg[p.Y*w+p.X]
	}

	pts := geometry.Polygon{geometry.FromImagePoint(start)}

	// West of the raster-first pixel is always background.
	p, back := start, 0
	var second image.Point
	for step := 0; step < maxSteps; step++ {
		next, nextBack, ok := mooreStep(isFG, p, back)
		if !ok {
			break // isolated pixel
		}
		if step == 0 {
			second = next
		} else if p == start && next == second {
			break
		}
		if next != start {
			pts = append(pts, geometry.FromImagePoint(next))
		}
		p, back = next, nextBack
	}
	return pts
}

// mooreStep scans p's neighbours clockwise from the backtrack direction and
// returns the first foreground neighbour together with the new backtrack
// direction, expressed relative to that neighbour.
func mooreStep(isFG func(image.Point) bool, p image.Point, back int) (image.Point, int, bool) {
	for k := 1; k <= 8; k++ {
		c := p.Add(mooreRing[(back+k)%8])
		if !isFG(c) {
			continue
		}
		prev := p.Add(mooreRing[(back+k-1)%8])
		rel := prev.Sub(c)
		for d, off := range mooreRing {
			if off == rel {
				return c, d, true
			}
		}
		return c, 0, true
	}
	return p, back, false
}
