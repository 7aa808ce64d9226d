package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/marker-measure/internal/config"
	"github.com/ironsheep/marker-measure/internal/engine"
	"github.com/ironsheep/marker-measure/internal/geometry"
	"github.com/ironsheep/marker-measure/internal/httpapi"
	"github.com/ironsheep/marker-measure/internal/imaging"
	"github.com/ironsheep/marker-measure/internal/server"
	"github.com/ironsheep/marker-measure/internal/snapshot"
	"github.com/ironsheep/marker-measure/internal/watch"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `marker-measure - find an A4 reference sheet in photos and measure against it

Usage: marker-measure [command] [options]

Commands:
  mcp                          MCP server over stdin/stdout (default)
  serve                        HTTP API
  watch                        Analyse photos dropped into the inbox directory
  analyze <image>              Print the analysis as JSON
  rectify <image> <out.png>    Warp the sheet to a flat top-down image
  version                      Print version information
  help                         Print this help message

Common options:
  -config <file>               JSON configuration file

Environment variables:
  MARKER_MEASURE_LOG_LEVEL=debug    Enable debug logging
  MARKER_MEASURE_ADDR               HTTP listen address
  MARKER_MEASURE_DEBUG_DIR          Snapshot directory
  MARKER_MEASURE_PROCESSED_DIR      Output directory
  MARKER_MEASURE_WATCH_DIR          Inbox directory
`

func main() {
	cmd, args := "mcp", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("marker-measure %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		fmt.Print(usage)
		return
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "JSON configuration file")
	annotatePath := fs.String("annotate", "", "analyze: also write an annotated JPEG here")
	debug := fs.Bool("debug", false, "analyze: write per-stage snapshots to the debug directory")
	corners := fs.String("corners", "", `rectify: corners as JSON, e.g. [[10,20],[400,18],[410,590],[5,600]]`)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if cfg.Debug {
		log.Printf("marker-measure v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}
	eng := engine.New(engine.OptionsFromConfig(cfg))

	switch cmd {
	case "mcp":
		srv := server.New(eng)
		srv.Version = Version
		if cfg.Debug {
			srv.DebugDir = cfg.DebugDir
		}
		err = srv.Run()
	case "serve":
		api := httpapi.New(eng, cfg)
		api.Version = Version
		log.Printf("Listening on %s", cfg.Addr)
		err = api.Run(cfg.Addr)
	case "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = watch.New(eng, cfg).Run(ctx)
	case "analyze":
		err = runAnalyze(eng, cfg, fs.Args(), *annotatePath, *debug)
	case "rectify":
		err = runRectify(eng, fs.Args(), *corners)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// loadConfig reads the optional file, then applies MARKER_MEASURE_*
// overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnalyze(eng *engine.Engine, cfg *config.Config, args []string, annotatePath string, debug bool) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one image path, got %d", len(args))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return err
	}

	var sink snapshot.Sink
	if debug {
		dir, err := snapshot.NewDirSink(cfg.DebugDir)
		if err != nil {
			return err
		}
		sink = dir
		defer func() { log.Printf("Wrote %d snapshots to %s", len(dir.Files()), dir.Dir) }()
	}

	a := eng.AnalyzeImage(img, sink)
	if annotatePath != "" {
		out, err := imaging.Encode(eng.Annotate(img, a), imaging.FormatJPEG)
		if err != nil {
			return err
		}
		if err := os.WriteFile(annotatePath, out, 0o644); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

func runRectify(eng *engine.Engine, args []string, cornersJSON string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected <image> <out.png>, got %d arguments", len(args))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var pts []geometry.Point2D
	if cornersJSON != "" {
		var pairs [][2]float64
		if err := json.Unmarshal([]byte(cornersJSON), &pairs); err != nil {
			return fmt.Errorf("corners: %w", err)
		}
		for _, p := range pairs {
			pts = append(pts, geometry.Pt(p[0], p[1]))
		}
	} else {
		a, err := eng.Analyze(data, nil)
		if err != nil {
			return err
		}
		if a.Marker == nil {
			return fmt.Errorf("%s", a.Message)
		}
		pts = a.Marker.Corners[:]
	}

	res, err := eng.Rectify(data, pts)
	if err != nil {
		return err
	}
	out, err := imaging.Encode(res.Image, imaging.FormatPNG)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], out, 0o644); err != nil {
		return err
	}
	log.Printf("Rectified %dx%d at %.3f px/mm -> %s", res.Width, res.Height, res.PixelsPerMM, args[1])
	return nil
}
