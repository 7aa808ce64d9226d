package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage is matched by every *InvalidImageError via errors.Is.
var ErrInvalidImage = errors.New("invalid image")

// InvalidImageError reports an input buffer that could not be decoded into a
// raster image.
type InvalidImageError struct {
	Source string // file path or "buffer"
	Err    error
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("failed to decode image from %s: %v", e.Source, e.Err)
}

func (e *InvalidImageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidImage) true for any InvalidImageError.
func (e *InvalidImageError) Is(target error) bool { return target == ErrInvalidImage }

// Decode turns an encoded image buffer into a raster image.
//
// EXIF orientation is applied so phone photographs come out upright, which
// keeps the canonical top-left corner meaningful. Empty or undecodable
// buffers yield *InvalidImageError.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &InvalidImageError{Source: "buffer", Err: errors.New("empty input")}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &InvalidImageError{Source: "buffer", Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &InvalidImageError{Source: "buffer", Err: errors.New("zero-sized image")}
	}
	return img, nil
}

// ImageCache provides thread-safe caching of decoded images keyed by path.
//
// The MCP server analyses the same photograph several times in a session
// (detect, rectify, measure), so decoded images are kept until evicted.
// ImageCache is safe for concurrent use.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load returns the cached image for path, reading and decoding it on a miss.
//
// The path string is the cache key; relative and absolute spellings of the
// same file are cached separately. Decode failures are *InvalidImageError;
// missing files keep their os error.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		var ie *InvalidImageError
		if errors.As(err, &ie) {
			ie.Source = path
		}
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes one path from the cache.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of a cached image.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &DimensionsResult{Width: b.Dx(), Height: b.Dy()}, nil
}
