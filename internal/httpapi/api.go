// Package httpapi serves the engine over HTTP with gin.
//
// Routes:
//
//	GET  /                 service banner
//	GET  /health           liveness probe
//	POST /analyze          multipart "file" (+ optional "metadata" JSON)
//	POST /analyze-debug    same as /analyze, also writes per-stage snapshots
//	POST /warp             multipart "file" + "marker_corners" ([[x,y] x4])
//	GET  /processed/...    annotated and rectified outputs
//	GET  /debug/...        snapshots written by /analyze-debug
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/marker-measure/internal/config"
	"github.com/ironsheep/marker-measure/internal/engine"
	"github.com/ironsheep/marker-measure/internal/geometry"
)

// ErrTimeout is returned when an engine call outlives the request timeout.
var ErrTimeout = errors.New("processing timed out")

// API holds the engine and the directories results are written to.
type API struct {
	engine *engine.Engine

	ProcessedDir   string
	DebugDir       string
	Timeout        time.Duration
	MaxUploadBytes int64
	Version        string
}

// New builds an API from cfg. The processed and debug directories are
// created on demand.
func New(eng *engine.Engine, cfg *config.Config) *API {
	return &API{
		engine:         eng,
		ProcessedDir:   cfg.ProcessedDir,
		DebugDir:       cfg.DebugDir,
		Timeout:        cfg.Timeout(),
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Version:        "dev",
	}
}

// Router returns a gin engine with every route registered.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if a.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = a.MaxUploadBytes
	}
	a.setupRoutes(r)
	return r
}

func (a *API) setupRoutes(r *gin.Engine) {
	r.GET("/", a.rootHandler)
	r.GET("/health", a.healthHandler)
	r.POST("/analyze", a.analyzeHandler(false))
	r.POST("/analyze-debug", a.analyzeHandler(true))
	r.POST("/warp", a.warpHandler)
	r.Static("/processed", a.ProcessedDir)
	r.Static("/debug", a.DebugDir)
}

// Run listens on addr until the server fails.
func (a *API) Run(addr string) error {
	for _, dir := range []string{a.ProcessedDir, a.DebugDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return a.Router().Run(addr)
}

// withTimeout runs fn and gives up after a.Timeout. The engine is not
// interruptible, so fn keeps running in the background after a timeout.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout <= 0 {
		return fn()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ErrTimeout
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var degenerate *geometry.DegenerateGeometryError
	switch {
	case errors.Is(err, engine.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.As(err, &degenerate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
