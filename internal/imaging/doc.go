// Package imaging holds the pixel-level building blocks used by marker
// detection and by the measurement tools.
//
// It covers three areas:
//
//   - Loading and encoding: Decode for in-memory buffers, ImageCache for
//     files, Encode/EncodeBase64 for results.
//   - Preprocessing: grayscale, Gaussian blur, CLAHE, adaptive threshold,
//     morphology and Canny edges. All of these take and return zero-origin
//     *image.Gray values so they chain without copying bounds around.
//   - Metric overlays on rectified or scaled images: distances, polygon
//     areas, millimetre grids and crops.
//
// # Coordinate System
//
// (0,0) is the top-left pixel, X grows rightward and Y grows downward.
// Rectangles are half-open: Min is inclusive, Max exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Every other function is stateless
// and never mutates its input.
package imaging
