package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func propDefault(typ, description string, def interface{}) map[string]interface{} {
	p := prop(typ, description)
	p["default"] = def
	return p
}

var (
	pathProp  = prop("string", "Absolute path to the image file")
	scaleProp = prop("number", "Pixels per millimetre. When omitted the reference sheet is detected in the image")
	pointList = map[string]interface{}{
		"type":        "array",
		"description": "List of [x, y] pixel coordinates",
		"items": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "number"},
			"minItems": 2,
			"maxItems": 2,
		},
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: object(map[string]interface{}{
				"path": pathProp,
			}, "path"),
		},

		// Reference Detection
		{
			Name: "image_analyze_marker",
			Description: "Find the A4 reference sheet in a photograph and derive the pixels-per-millimetre scale. " +
				"Returns the sheet corners (top-left, top-right, bottom-right, bottom-left), the scale, up to five " +
				"suggested regions to measure and a per-strategy diagnostic trail explaining failures.",
			InputSchema: object(map[string]interface{}{
				"path":     pathProp,
				"annotate": propDefault("boolean", "Also return an annotated JPEG of the detection", false),
				"debug":    propDefault("boolean", "Write intermediate images to the server's debug directory", false),
			}, "path"),
		},
		{
			Name: "image_rectify",
			Description: "Warp the photograph so the reference sheet becomes a flat, top-down rectangle at a fixed " +
				"pixels-per-millimetre scale. Corners default to the detected sheet.",
			InputSchema: object(map[string]interface{}{
				"path":        pathProp,
				"corners":     pointList,
				"output_path": prop("string", "Write the rectified PNG here instead of returning it as base64"),
			}, "path"),
		},

		// Measurement Operations
		{
			Name:        "image_measure_distance",
			Description: "Measure the physical distance in millimetres between two pixel positions.",
			InputSchema: object(map[string]interface{}{
				"path":          pathProp,
				"x1":            prop("number", "Start X coordinate"),
				"y1":            prop("number", "Start Y coordinate"),
				"x2":            prop("number", "End X coordinate"),
				"y2":            prop("number", "End Y coordinate"),
				"pixels_per_mm": scaleProp,
			}, "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_measure_region",
			Description: "Measure the area and perimeter of a polygon in physical units.",
			InputSchema: object(map[string]interface{}{
				"path":          pathProp,
				"points":        pointList,
				"pixels_per_mm": scaleProp,
			}, "path", "points"),
		},
		{
			Name:        "image_grid_overlay",
			Description: "Draw a millimetre grid over the image at its physical scale and return it as base64 PNG.",
			InputSchema: object(map[string]interface{}{
				"path":          pathProp,
				"pixels_per_mm": scaleProp,
				"spacing_mm":    propDefault("number", "Grid spacing in millimetres", 10),
				"show_labels":   propDefault("boolean", "Label grid lines with their offset in mm", true),
				"color":         propDefault("string", "Grid color as #RRGGBB or #RRGGBBAA", "#FF0000A0"),
			}, "path"),
		},

		// Region Operations
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG.",
			InputSchema: object(map[string]interface{}{
				"path":  pathProp,
				"x1":    prop("integer", "Left edge X coordinate (0-based)"),
				"y1":    prop("integer", "Top edge Y coordinate (0-based)"),
				"x2":    prop("integer", "Right edge X coordinate (exclusive)"),
				"y2":    prop("integer", "Bottom edge Y coordinate (exclusive)"),
				"scale": propDefault("number", "Optional scale factor", 1.0),
			}, "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_crop_suggestion",
			Description: "Crop one of the regions suggested by image_analyze_marker so it can be checked visually.",
			InputSchema: object(map[string]interface{}{
				"path":     pathProp,
				"index":    prop("integer", "1-based suggestion number"),
				"margin":   propDefault("integer", "Extra pixels around the region", 10),
				"max_size": propDefault("integer", "Longest side of the returned image", 512),
			}, "path", "index"),
		},

		// Diagnostics
		{
			Name:        "image_edge_detect",
			Description: "Run the Canny edge detector used by marker detection and return the edge map as base64 PNG.",
			InputSchema: object(map[string]interface{}{
				"path":           pathProp,
				"threshold_low":  propDefault("integer", "Canny low threshold", 30),
				"threshold_high": propDefault("integer", "Canny high threshold", 100),
			}, "path"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
