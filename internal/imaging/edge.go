package imaging

import (
	"image"
	"math"
)

// Canny runs gradient computation, non-maximum suppression and hysteresis
// on a single-channel image and returns a binary edge map (255 = edge).
//
// The input is not smoothed here; callers blur first when the recipe calls
// for it. Thresholds are on the 0-255 intensity scale and are compared
// against the Sobel gradient magnitude of intensities normalised to [0,1],
// so 50/150 behaves like the common photograph defaults.
//
// # Algorithm
//
//  1. Sobel operators for X and Y gradients, magnitude = sqrt(Gx² + Gy²)
//  2. Non-maximum suppression: keep pixels that are local maxima along the
//     quantised gradient direction (0°, 45°, 90°, 135°)
//  3. Hysteresis: pixels above thresholdHigh seed edges; pixels above
//     thresholdLow are kept when 8-connected to a seed, transitively
//
// Border pixels are never edges.
func Canny(gray *image.Gray, thresholdLow, thresholdHigh int) *image.Gray {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width < 3 || height < 3 {
		return out
	}

	px := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(gray.Pix[y*gray.Stride+x]) / 255.0
	}

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) -
				2*px(x-1, y) + 2*px(x+1, y) -
				px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag == 0 {
				continue
			}
			angle := direction[i]

			// Neighbours along the gradient; Y grows downward, so a
			// positive angle points down-right.
			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[i-width], magnitude[i+width]
			default:
				n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Double threshold and edge tracking by hysteresis
	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0

	stack := make([]int, 0, 256)
	for i, v := range suppressed {
		if v >= highThresh && out.Pix[i] == 0 {
			out.Pix[i] = 255
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jx, jy := j%width, j/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := jx+dx, jy+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					k := ny*width + nx
					if out.Pix[k] == 0 && suppressed[k] >= lowThresh {
						out.Pix[k] = 255
						stack = append(stack, k)
					}
				}
			}
		}
	}

	return out
}

// EdgeDetectResult contains an edge map encoded for JSON clients.
type EdgeDetectResult = EncodedImage

// EdgeDetect converts img to grayscale, blurs it and runs Canny, returning
// the edge map as a base64 PNG. It is the inspection view of the same edge
// recipe the marker detector uses first.
//
// Recommended thresholds:
//   - Clean, well-lit photographs: thresholdLow=30, thresholdHigh=100
//   - Noisy images: thresholdLow=75, thresholdHigh=175
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	edges := Canny(Blur(Grayscale(img), DefaultBlurRadius), thresholdLow, thresholdHigh)
	return EncodeBase64(edges, FormatPNG)
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
