package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultGridColor is used when no or an invalid grid colour is given.
var DefaultGridColor = color.NRGBA{R: 255, G: 0, B: 0, A: 160}

// GridOverlayResult contains the image with grid overlay
type GridOverlayResult struct {
	EncodedImage
	SpacingMM     float64 `json:"spacing_mm"`
	SpacingPixels float64 `json:"spacing_pixels"`
}

// GridOverlay draws a millimetre grid over a rectified image and returns it
// as a base64 PNG. Lines are spacingMM apart at the given scale; when
// showLabels is set every line is labelled with its offset in mm.
func GridOverlay(img image.Image, pixelsPerMM, spacingMM float64, showLabels bool, gridColorHex string) (*GridOverlayResult, error) {
	if pixelsPerMM <= 0 {
		return nil, ErrNoScale
	}
	if spacingMM <= 0 {
		return nil, errors.New("grid spacing must be positive")
	}
	step := spacingMM * pixelsPerMM
	if step < 2 {
		return nil, fmt.Errorf("grid spacing of %.1f mm is only %.2f px at this scale", spacingMM, step)
	}

	gridColor, err := ParseHexColor(gridColorHex)
	if err != nil {
		gridColor = DefaultGridColor
	}

	out := DrawGrid(img, step, spacingMM, showLabels, gridColor)
	enc, err := EncodeBase64(out, FormatPNG)
	if err != nil {
		return nil, err
	}
	return &GridOverlayResult{
		EncodedImage:  *enc,
		SpacingMM:     spacingMM,
		SpacingPixels: math.Round(step*100) / 100,
	}, nil
}

// DrawGrid returns a copy of img with lines every step pixels. Labels show
// multiples of unit.
func DrawGrid(img image.Image, step, unit float64, showLabels bool, c color.Color) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	line := image.NewUniform(c)

	for i := 1; ; i++ {
		x := int(math.Round(float64(i) * step))
		if x >= b.Dx() {
			break
		}
		draw.Draw(out, image.Rect(x, 0, x+1, b.Dy()), line, image.Point{}, draw.Over)
		if showLabels {
			DrawLabel(out, x+2, 2, fmt.Sprintf("%g", float64(i)*unit), color.White, color.NRGBA{A: 180})
		}
	}
	for i := 1; ; i++ {
		y := int(math.Round(float64(i) * step))
		if y >= b.Dy() {
			break
		}
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+1), line, image.Point{}, draw.Over)
		if showLabels {
			DrawLabel(out, 2, y+2, fmt.Sprintf("%g", float64(i)*unit), color.White, color.NRGBA{A: 180})
		}
	}
	return out
}

// ParseHexColor parses "#RRGGBB" (the leading '#' is optional) or
// "#RRGGBBAA".
func ParseHexColor(hex string) (color.NRGBA, error) {
	if hex == "" {
		return color.NRGBA{}, errors.New("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	alpha := uint8(255)
	if len(hex) == 9 {
		var a uint8
		if _, err := fmt.Sscanf(hex[7:], "%02x", &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha, hex = a, hex[:7]
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// DrawLabel writes text with its top-left corner at (x, y) on a filled
// background box, using the 7x13 bitmap face.
func DrawLabel(dst draw.Image, x, y int, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()

	box := image.Rect(x-1, y-1, x+width+1, y+height)
	draw.Draw(dst, box, image.NewUniform(bg), image.Point{}, draw.Over)

	d.Dot = fixed.P(x, y+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}
