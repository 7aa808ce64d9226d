package httpapi

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ironsheep/marker-measure/internal/detection"
	"github.com/ironsheep/marker-measure/internal/engine"
	"github.com/ironsheep/marker-measure/internal/geometry"
	"github.com/ironsheep/marker-measure/internal/imaging"
	"github.com/ironsheep/marker-measure/internal/snapshot"
)

// PreliminaryMeasurement is the physical size of one suggestion.
type PreliminaryMeasurement struct {
	Type       detection.SuggestionKind `json:"type"`
	ValueMM    float64                  `json:"value_mm,omitempty"`
	ValueMM2   float64                  `json:"value_mm2,omitempty"`
	Confidence float64                  `json:"confidence"`
}

type analyzeResponse struct {
	*engine.Analysis
	PreliminaryMeasurements []PreliminaryMeasurement `json:"preliminary_measurements"`
	AnnotatedImageURL       string                   `json:"annotated_image_url"`
	Metadata                map[string]interface{}   `json:"metadata,omitempty"`
	DebugFiles              []string                 `json:"debug_files,omitempty"`
}

type warpResponse struct {
	WarpedImageURL   string      `json:"warped_image_url"`
	HomographyMatrix [][]float64 `json:"homography_matrix"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	PixelsPerMM      float64     `json:"pixels_per_mm"`
	Landscape        bool        `json:"landscape"`
}

func (a *API) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "marker-measure", "version": a.Version})
}

func (a *API) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// analyzeHandler detects the reference sheet in the uploaded photo and
// writes an annotated copy to the processed directory. With debug set every
// pipeline stage is also saved under the debug directory.
func (a *API) analyzeHandler(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, ok := a.readUpload(c)
		if !ok {
			return
		}
		meta := parseMetadata(c.PostForm("metadata"))

		var dir *snapshot.DirSink
		var sink snapshot.Sink
		if debug {
			d, err := snapshot.NewDirSink(a.DebugDir)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			dir, sink = d, d
		}

		resp, err := withTimeout(c.Request.Context(), a.Timeout, func() (*analyzeResponse, error) {
			img, err := imaging.Decode(data)
			if err != nil {
				return nil, err
			}
			analysis := a.engine.AnalyzeImage(img, sink)
			resp := &analyzeResponse{
				Analysis:                analysis,
				PreliminaryMeasurements: preliminary(analysis.Suggestions),
				Metadata:                meta,
			}
			url, err := a.saveProcessed("annotated", a.engine.Annotate(img, analysis), imaging.FormatJPEG)
			if err != nil {
				log.Printf("Annotated image not saved: %v", err)
			}
			resp.AnnotatedImageURL = url
			return resp, nil
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		if dir != nil {
			for _, f := range dir.Files() {
				resp.DebugFiles = append(resp.DebugFiles, "/debug/"+f)
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// warpHandler rectifies the uploaded photo using the four corners in the
// marker_corners form field.
func (a *API) warpHandler(c *gin.Context) {
	data, ok := a.readUpload(c)
	if !ok {
		return
	}
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(c.PostForm("marker_corners")), &pairs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "marker_corners must be a JSON list of [x, y] pairs"})
		return
	}
	corners := make([]geometry.Point2D, len(pairs))
	for i, p := range pairs {
		corners[i] = geometry.Pt(p[0], p[1])
	}

	resp, err := withTimeout(c.Request.Context(), a.Timeout, func() (*warpResponse, error) {
		res, err := a.engine.Rectify(data, corners)
		if err != nil {
			return nil, err
		}
		url, err := a.saveProcessed("warped", res.Image, imaging.FormatPNG)
		if err != nil {
			return nil, err
		}
		return &warpResponse{
			WarpedImageURL:   url,
			HomographyMatrix: res.Homography.Rows(),
			Width:            res.Width,
			Height:           res.Height,
			PixelsPerMM:      res.PixelsPerMM,
			Landscape:        res.Landscape,
		}, nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readUpload returns the bytes of the "file" form field, answering the
// request itself when they cannot be read.
func (a *API) readUpload(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, false
	}
	if a.MaxUploadBytes > 0 && fh.Size > a.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", a.MaxUploadBytes)})
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot open upload"})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read upload"})
		return nil, false
	}
	return data, true
}

// saveProcessed writes img under a fresh name and returns its URL.
func (a *API) saveProcessed(prefix string, img image.Image, f imaging.Format) (string, error) {
	if err := os.MkdirAll(a.ProcessedDir, 0o755); err != nil {
		return "", err
	}
	data, err := imaging.Encode(img, f)
	if err != nil {
		return "", err
	}
	name := prefix + "_" + uuid.NewString() + f.Extension()
	if err := os.WriteFile(filepath.Join(a.ProcessedDir, name), data, 0o644); err != nil {
		return "", err
	}
	return "/processed/" + name, nil
}

// parseMetadata decodes the optional metadata field. Invalid JSON is
// logged and ignored.
func parseMetadata(s string) map[string]interface{} {
	if s == "" {
		return nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		log.Printf("Ignoring invalid metadata: %v", err)
		return nil
	}
	return meta
}

func preliminary(suggestions []detection.RegionSuggestion) []PreliminaryMeasurement {
	out := make([]PreliminaryMeasurement, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, PreliminaryMeasurement{
			Type:       s.Kind,
			ValueMM:    s.LengthMM,
			ValueMM2:   s.AreaMM2,
			Confidence: s.Confidence,
		})
	}
	return out
}
