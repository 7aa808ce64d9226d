package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// DefaultBlurRadius gives bild a 5-tap Gaussian kernel.
const DefaultBlurRadius = 2.0

// Grayscale converts img to an 8-bit single-channel image anchored at the
// origin.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	return asGray(effect.Grayscale(img))
}

// Blur applies a Gaussian blur of the given bild radius.
func Blur(gray *image.Gray, radius float64) *image.Gray {
	return asGray(blur.Gaussian(gray, radius))
}

// Dilate grows foreground (bright) regions by radius pixels.
func Dilate(gray *image.Gray, radius float64) *image.Gray {
	return asGray(effect.Dilate(gray, radius))
}

// Erode shrinks foreground (bright) regions by radius pixels.
func Erode(gray *image.Gray, radius float64) *image.Gray {
	return asGray(effect.Erode(gray, radius))
}

// MorphClose fills small gaps and holes (dilate, then erode).
func MorphClose(gray *image.Gray, radius float64) *image.Gray {
	return Erode(Dilate(gray, radius), radius)
}

// MorphOpen removes small specks (erode, then dilate).
func MorphOpen(gray *image.Gray, radius float64) *image.Gray {
	return Dilate(Erode(gray, radius), radius)
}

// Binarize forces a map to {0, 255} at the midpoint.
func Binarize(gray *image.Gray) *image.Gray {
	return rebase(segment.Threshold(gray, 128))
}

// AdaptiveThreshold binarises gray against a Gaussian-weighted mean of the
// block x block window around each pixel, minus c.
//
// With inverse false, pixels brighter than the local threshold become 255;
// with inverse true they become 0 and darker pixels become 255. The border
// is extended by replication.
func AdaptiveThreshold(gray *image.Gray, block int, c float64, inverse bool) *image.Gray {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}
	gray = rebase(gray)
	mean := gaussianMean(gray, block)

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			threshold := float64(mean.Pix[y*mean.Stride+x]) - c
			bright := float64(gray.Pix[y*gray.Stride+x]) > threshold
			if bright != inverse {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// gaussianMean smooths gray with a separable block-tap Gaussian whose sigma
// follows the usual 0.3*((block-1)/2-1)+0.8 rule. bild's blur.Gaussian ties
// sigma to the tap count, so the kernel is built here and run through bild's
// convolution. A 0.5 bias rounds instead of truncating.
func gaussianMean(gray *image.Gray, block int) *image.Gray {
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	k := convolution.NewKernel(block, 1)
	half := block / 2
	for i := 0; i < block; i++ {
		x := float64(i - half)
		k.Matrix[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	norm := k.Normalized()

	opts := &convolution.Options{Bias: 0.5}
	rows := convolution.Convolve(gray, norm, opts)
	return asGray(convolution.Convolve(rows, norm.Transposed(), opts))
}

// CLAHE performs contrast-limited adaptive histogram equalisation.
//
// The image is split into tiles x tiles regions; each region's histogram is
// clipped at clipLimit times the mean bin height, the excess is spread
// evenly, and the resulting mappings are bilinearly interpolated between
// region centres.
func CLAHE(gray *image.Gray, clipLimit float64, tiles int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	if tiles < 1 {
		tiles = 1
	}
	tilesX, tilesY := min(tiles, w), min(tiles, h)
	tileW := int(math.Ceil(float64(w) / float64(tilesX)))
	tileH := int(math.Ceil(float64(h) / float64(tilesY)))

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileMapping(gray, x0, y0, x1, y1, clipLimit)
		}
	}

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clamp(int(math.Floor(fy)), 0, tilesY-1)
		ty1 := clamp(ty0+1, 0, tilesY-1)
		wy := math.Max(0, math.Min(1, fy-float64(ty0)))
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clamp(int(math.Floor(fx)), 0, tilesX-1)
			tx1 := clamp(tx0+1, 0, tilesX-1)
			wx := math.Max(0, math.Min(1, fx-float64(tx0)))

			v := gray.Pix[y*gray.Stride+x]
			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bottom := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			out.Pix[y*out.Stride+x] = uint8(math.Round((1-wy)*top + wy*bottom))
		}
	}
	return out
}

func tileMapping(gray *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[gray.Pix[y*gray.Stride+x]]++
		}
	}
	total := (x1 - x0) * (y1 - y0)

	if clipLimit > 0 {
		limit := max(1, int(clipLimit*float64(total)/256))
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		bonus, rest := excess/256, excess%256
		for i := range hist {
			hist[i] += bonus
			if i < rest {
				hist[i]++
			}
		}
	}

	var lut [256]uint8
	cdf := 0
	for i := range hist {
		cdf += hist[i]
		lut[i] = uint8(math.Round(float64(cdf) * 255 / float64(total)))
	}
	return lut
}

// asGray takes the red channel of a bild result. bild's grayscale and every
// filter fed a gray image leave R == G == B.
func asGray(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[4*x]
		}
	}
	return out
}

// rebase copies a gray image so its bounds start at the origin.
func rebase(g *image.Gray) *image.Gray {
	if g.Rect.Min == (image.Point{}) {
		return g
	}
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}
