// Package server implements the MCP (Model Context Protocol) server that
// exposes reference-sheet detection and measurement as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0, one request per
// line on stdin and one response per line on stdout. Supported methods are
// initialize, tools/list, tools/call and ping.
//
// # Available Tools
//
// Basic Image Information:
//   - image_dimensions: Get width and height
//
// Reference Detection:
//   - image_analyze_marker: Find the A4 sheet, its scale and regions worth measuring
//   - image_rectify: Warp the sheet to a flat top-down canvas
//
// Measurement Operations:
//   - image_measure_distance: Distance between two points in mm
//   - image_measure_region: Area and perimeter of a polygon
//   - image_grid_overlay: Millimetre grid over the image
//
// Region Operations:
//   - image_crop: Extract rectangular region
//   - image_crop_suggestion: Extract a suggested region
//
// Diagnostics:
//   - image_edge_detect: Canny edge map
//
// Measurement tools accept pixels_per_mm. When it is omitted the sheet is
// detected in the same image and its scale is used.
//
// # Image Caching
//
// Images are cached by path and reused across tool calls for the lifetime
// of the process.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors with code -32000 and the Go
// error string in data. A photograph without a detectable sheet is not an
// error for image_analyze_marker: the result carries success=false and the
// per-strategy attempts.
//
// # Usage
//
//	srv := server.New(engine.New(engine.DefaultOptions()))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
