package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/ironsheep/marker-measure/internal/engine"
	"github.com/ironsheep/marker-measure/internal/geometry"
	"github.com/ironsheep/marker-measure/internal/imaging"
	"github.com/ironsheep/marker-measure/internal/snapshot"
)

// ErrNoMarker is returned by tools that need a scale when none was given
// and the reference sheet could not be found.
var ErrNoMarker = errors.New("no reference sheet detected; pass pixels_per_mm explicitly")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_analyze_marker").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_dimensions":
		return s.handleImageDimensions(args)

	case "image_analyze_marker":
		return s.handleAnalyzeMarker(args)
	case "image_rectify":
		return s.handleRectify(args)

	case "image_measure_distance":
		return s.handleMeasureDistance(args)
	case "image_measure_region":
		return s.handleMeasureRegion(args)
	case "image_grid_overlay":
		return s.handleGridOverlay(args)

	case "image_crop":
		return s.handleImageCrop(args)
	case "image_crop_suggestion":
		return s.handleCropSuggestion(args)

	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// toPoints converts [x, y] pairs from tool arguments.
func toPoints(pairs [][2]float64) []geometry.Point2D {
	pts := make([]geometry.Point2D, len(pairs))
	for i, p := range pairs {
		pts[i] = geometry.Pt(p[0], p[1])
	}
	return pts
}

// resolveScale returns pixelsPerMM when given, otherwise the scale of the
// reference sheet detected in img.
func (s *Server) resolveScale(img image.Image, pixelsPerMM float64) (float64, error) {
	if pixelsPerMM > 0 {
		return pixelsPerMM, nil
	}
	a := s.engine.AnalyzeImage(img, nil)
	if a.Marker == nil {
		return 0, ErrNoMarker
	}
	return a.PixelsPerMM, nil
}

// === Basic Image Information ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Reference Detection ===

type analyzeMarkerArgs struct {
	Path     string `json:"path"`
	Annotate bool   `json:"annotate"`
	Debug    bool   `json:"debug"`
}

type analyzeMarkerResult struct {
	*engine.Analysis
	Annotated  *imaging.EncodedImage `json:"annotated,omitempty"`
	DebugDir   string                `json:"debug_dir,omitempty"`
	DebugFiles []string              `json:"debug_files,omitempty"`
}

func (s *Server) handleAnalyzeMarker(args json.RawMessage) (interface{}, error) {
	var a analyzeMarkerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var dir *snapshot.DirSink
	var sink snapshot.Sink
	if a.Debug && s.DebugDir != "" {
		if dir, err = snapshot.NewDirSink(s.DebugDir); err != nil {
			log.Printf("Debug snapshots disabled: %v", err)
		} else {
			sink = dir
		}
	}

	result := &analyzeMarkerResult{Analysis: s.engine.AnalyzeImage(img, sink)}
	if dir != nil {
		result.DebugDir = dir.Dir
		result.DebugFiles = dir.Files()
	}
	if a.Annotate {
		enc, err := imaging.EncodeBase64(s.engine.Annotate(img, result.Analysis), imaging.FormatJPEG)
		if err != nil {
			return nil, err
		}
		result.Annotated = enc
	}
	return result, nil
}

type rectifyArgs struct {
	Path       string       `json:"path"`
	Corners    [][2]float64 `json:"corners"`
	OutputPath string       `json:"output_path"`
}

type rectifyResult struct {
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	PixelsPerMM float64               `json:"pixels_per_mm"`
	Landscape   bool                  `json:"landscape"`
	Corners     geometry.Quad         `json:"corners"`
	Homography  [][]float64           `json:"homography"`
	OutputPath  string                `json:"output_path,omitempty"`
	Image       *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handleRectify(args json.RawMessage) (interface{}, error) {
	var a rectifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var corners [4]geometry.Point2D
	switch len(a.Corners) {
	case 0:
		analysis := s.engine.AnalyzeImage(img, nil)
		if analysis.Marker == nil {
			return nil, fmt.Errorf("%s: %w", analysis.Message, ErrNoMarker)
		}
		corners = analysis.Marker.Corners
	case 4:
		copy(corners[:], toPoints(a.Corners))
	default:
		return nil, fmt.Errorf("corners must list exactly 4 points, got %d", len(a.Corners))
	}

	res, err := s.engine.RectifyImage(img, corners)
	if err != nil {
		return nil, err
	}
	out := &rectifyResult{
		Width:       res.Width,
		Height:      res.Height,
		PixelsPerMM: res.PixelsPerMM,
		Landscape:   res.Landscape,
		Corners:     res.Corners,
		Homography:  res.Homography.Rows(),
	}

	if a.OutputPath != "" {
		data, err := imaging.Encode(res.Image, imaging.FormatPNG)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(a.OutputPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write rectified image: %w", err)
		}
		out.OutputPath = a.OutputPath
		return out, nil
	}
	if out.Image, err = imaging.EncodeBase64(res.Image, imaging.FormatPNG); err != nil {
		return nil, err
	}
	return out, nil
}

// === Measurement Operations ===

type measureDistanceArgs struct {
	Path        string  `json:"path"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	PixelsPerMM float64 `json:"pixels_per_mm"`
}

func (s *Server) handleMeasureDistance(args json.RawMessage) (interface{}, error) {
	var a measureDistanceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	ppm, err := s.resolveScale(img, a.PixelsPerMM)
	if err != nil {
		return nil, err
	}
	return imaging.MeasureDistance(geometry.Pt(a.X1, a.Y1), geometry.Pt(a.X2, a.Y2), ppm)
}

type measureRegionArgs struct {
	Path        string       `json:"path"`
	Points      [][2]float64 `json:"points"`
	PixelsPerMM float64      `json:"pixels_per_mm"`
}

func (s *Server) handleMeasureRegion(args json.RawMessage) (interface{}, error) {
	var a measureRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	ppm, err := s.resolveScale(img, a.PixelsPerMM)
	if err != nil {
		return nil, err
	}
	return imaging.MeasureRegion(toPoints(a.Points), ppm)
}

type gridOverlayArgs struct {
	Path        string  `json:"path"`
	PixelsPerMM float64 `json:"pixels_per_mm"`
	SpacingMM   float64 `json:"spacing_mm"`
	ShowLabels  *bool   `json:"show_labels"`
	Color       string  `json:"color"`
}

func (s *Server) handleGridOverlay(args json.RawMessage) (interface{}, error) {
	var a gridOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.SpacingMM == 0 {
		a.SpacingMM = 10
	}
	showLabels := a.ShowLabels == nil || *a.ShowLabels
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	ppm, err := s.resolveScale(img, a.PixelsPerMM)
	if err != nil {
		return nil, err
	}
	return imaging.GridOverlay(img, ppm, a.SpacingMM, showLabels, a.Color)
}

// === Region Operations ===

type imageCropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, image.Rect(a.X1, a.Y1, a.X2, a.Y2), a.Scale)
}

type cropSuggestionArgs struct {
	Path    string `json:"path"`
	Index   int    `json:"index"`
	Margin  *int   `json:"margin"`
	MaxSize int    `json:"max_size"`
}

func (s *Server) handleCropSuggestion(args json.RawMessage) (interface{}, error) {
	var a cropSuggestionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	margin := 10
	if a.Margin != nil {
		margin = *a.Margin
	}
	if a.MaxSize == 0 {
		a.MaxSize = 512
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	analysis := s.engine.AnalyzeImage(img, nil)
	if analysis.Marker == nil {
		return nil, ErrNoMarker
	}
	if a.Index < 1 || a.Index > len(analysis.Suggestions) {
		return nil, fmt.Errorf("suggestion %d out of range (1-%d)", a.Index, len(analysis.Suggestions))
	}
	sug := analysis.Suggestions[a.Index-1]
	crop, err := imaging.CropPolygon(img, sug.Boundary, margin, a.MaxSize)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"suggestion": sug,
		"crop":       crop,
	}, nil
}

// === Diagnostics ===

type imageEdgeDetectArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = 30
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = 100
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh)
}
