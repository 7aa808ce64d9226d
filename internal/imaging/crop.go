package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/marker-measure/internal/geometry"
)

// CropResult contains the cropped image data
type CropResult struct {
	EncodedImage
	Region Box `json:"region"`
}

// Crop extracts a rectangular region from an image, optionally scaling it.
func Crop(img image.Image, r image.Rectangle, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region %v", r)
	}

	cropped := imaging.Crop(img, r)
	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(cropped.Bounds().Dx())*scale))
		newHeight := max(1, int(float64(cropped.Bounds().Dy())*scale))
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	enc, err := EncodeBase64(cropped, FormatPNG)
	if err != nil {
		return nil, err
	}
	return &CropResult{EncodedImage: *enc, Region: BoxFromRect(r)}, nil
}

// Shrink returns img reduced so its long side is at most maxSide, together
// with the factor that maps lengths on the copy back onto img. An image that
// already fits, or a non-positive maxSide, is returned as is with factor 1.
func Shrink(img image.Image, maxSide int) (image.Image, float64) {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	if maxSide <= 0 || long <= maxSide {
		return img, 1
	}
	small := imaging.Fit(img, maxSide, maxSide, imaging.Box)
	sb := small.Bounds()
	return small, float64(long) / float64(max(sb.Dx(), sb.Dy()))
}

// CropPolygon crops the bounding box of pg, grown by margin pixels and
// clipped to the image, and fits the result inside maxSide x maxSide.
// It is how suggested regions are shown to a user for confirmation.
func CropPolygon(img image.Image, pg geometry.Polygon, margin, maxSide int) (*CropResult, error) {
	if len(pg) == 0 {
		return nil, fmt.Errorf("empty region")
	}
	r := pg.Bounds().Inset(-margin).Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("region %v does not overlap the image", pg.Bounds())
	}

	cropped := imaging.Crop(img, r)
	if maxSide > 0 && (r.Dx() > maxSide || r.Dy() > maxSide) {
		cropped = imaging.Fit(cropped, maxSide, maxSide, imaging.Lanczos)
	}
	enc, err := EncodeBase64(cropped, FormatPNG)
	if err != nil {
		return nil, err
	}
	return &CropResult{EncodedImage: *enc, Region: BoxFromRect(r)}, nil
}
