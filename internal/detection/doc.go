// Package detection finds a reference rectangle of known size in a
// photograph and proposes regions worth measuring.
//
// # Strategy Chain
//
// A [Detector] runs a fixed, ordered list of [Strategy] recipes. Each recipe
// turns the grayscale photograph into a binary map, the external contours
// of that map are ranked by area, and up to [DefaultMaxCandidates] of them
// are handed to [EvaluateCandidate]. The first accepted candidate ends the
// run. The built-in chain is:
//
//  1. canny: Gaussian blur, Canny 30/100, one-pixel dilation.
//     Aspect tolerance 0.15, minimum area 5000 px².
//  2. clahe-canny: CLAHE (clip 3, 8x8 tiles), blur, Canny 40/120, dilation.
//     Aspect tolerance 0.12, minimum area 4000 px².
//  3. adaptive-morph-canny: mean adaptive threshold (11 px, C=2), close and
//     open, Canny 30/80, dilation. Aspect tolerance 0.18, minimum area
//     3000 px².
//
// # Candidate Evaluation
//
// A candidate contour is simplified with Douglas-Peucker at 2%, 3%, 4% and
// 5% of its perimeter. Four to six surviving points are reduced to four by
// sampling the convex hull, ordered top-left first, and accepted when the
// short/long side ratio is within tolerance of the reference ratio. Every
// failed check is recorded as a [Rejection] on the strategy's [Attempt], so
// a caller can tell why an image failed without reading logs.
//
// # Scale and Confidence
//
// pixels_per_mm is the mean of short side / short mm and long side / long
// mm. Marker confidence is the quad's isoperimetric compactness divided by
// that of a perfect reference rectangle; suggestion confidence is the raw
// compactness 4πA/P² of the region outline. Both lie in [0,1].
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Contour vertices are pixel centres.
package detection
