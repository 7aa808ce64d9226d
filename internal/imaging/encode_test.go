package imaging

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestFormat(t *testing.T) {
	if FormatPNG.Extension() != ".png" || FormatPNG.MimeType() != "image/png" {
		t.Errorf("png: %s %s", FormatPNG.Extension(), FormatPNG.MimeType())
	}
	if FormatJPEG.Extension() != ".jpg" || FormatJPEG.MimeType() != "image/jpeg" {
		t.Errorf("jpeg: %s %s", FormatJPEG.Extension(), FormatJPEG.MimeType())
	}
}

func TestEncode(t *testing.T) {
	img := solidImage(16, 12, color.RGBA{10, 200, 30, 255})

	data, err := Encode(img, FormatPNG)
	if err != nil {
		t.Fatalf("Encode png failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if r, g, b, _ := decoded.At(3, 3).RGBA(); r>>8 != 10 || g>>8 != 200 || b>>8 != 30 {
		t.Errorf("png pixel: got %d,%d,%d", r>>8, g>>8, b>>8)
	}

	data, err = Encode(img, FormatJPEG)
	if err != nil {
		t.Fatalf("Encode jpeg failed: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.DecodeConfig failed: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 12 {
		t.Errorf("jpeg size: got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeBase64(t *testing.T) {
	enc, err := EncodeBase64(solidImage(8, 4, color.Black), FormatPNG)
	if err != nil {
		t.Fatalf("EncodeBase64 failed: %v", err)
	}
	if enc.Width != 8 || enc.Height != 4 || enc.MimeType != "image/png" {
		t.Errorf("got %+v", *enc)
	}
	raw, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	if _, err := Decode(raw); err != nil {
		t.Errorf("round-trip Decode failed: %v", err)
	}
}
