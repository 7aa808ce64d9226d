package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Format selects the encoding used for result buffers.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Extension returns the file extension (with dot) for the format.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// MimeType returns the media type for the format.
func (f Format) MimeType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode writes img in the requested format and returns the bytes.
// JPEG output uses quality 90.
func Encode(img image.Image, f Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90))
	default:
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", f, err)
	}
	return buf.Bytes(), nil
}

// EncodedImage is an encoded image ready to hand to a JSON client.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeBase64 encodes img and wraps it for JSON transport.
func EncodeBase64(img image.Image, f Format) (*EncodedImage, error) {
	data, err := Encode(img, f)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &EncodedImage{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    f.MimeType(),
	}, nil
}
