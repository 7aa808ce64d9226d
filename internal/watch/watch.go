// Package watch analyses photographs dropped into an inbox directory and
// writes a JSON report plus an annotated copy for each one.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ironsheep/marker-measure/internal/config"
	"github.com/ironsheep/marker-measure/internal/engine"
	"github.com/ironsheep/marker-measure/internal/imaging"
)

// annotatedSuffix marks files written by the watcher so they are never
// picked up again.
const annotatedSuffix = "_annotated"

// Report is written next to the processed photo as <name>.json.
type Report struct {
	Source        string           `json:"source"`
	ProcessedAt   time.Time        `json:"processed_at"`
	Analysis      *engine.Analysis `json:"analysis,omitempty"`
	AnnotatedFile string           `json:"annotated_file,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Watcher processes inbox files with a fixed pool of workers.
type Watcher struct {
	engine *engine.Engine

	Dir      string
	OutDir   string
	Workers  int
	Debounce time.Duration

	// OnReport, when set, is called after every report is written.
	OnReport func(*Report)
}

// New returns a Watcher reading cfg.WatchDir and writing to
// cfg.ProcessedDir.
func New(eng *engine.Engine, cfg *config.Config) *Watcher {
	return &Watcher{
		engine:   eng,
		Dir:      cfg.WatchDir,
		OutDir:   cfg.ProcessedDir,
		Workers:  cfg.WatchWorkers,
		Debounce: cfg.Debounce(),
	}
}

// Run processes the files already in the inbox, then every supported file
// that appears until ctx is cancelled. A file is handed to a worker once it
// has seen no events for the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.checkDirs(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", w.Dir)

	files := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < max(w.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range files {
				w.handle(name)
			}
		}()
	}
	defer func() {
		close(files)
		wg.Wait()
	}()

	for _, name := range ListImages(w.Dir) {
		select {
		case files <- name:
		case <-ctx.Done():
			return nil
		}
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(max(w.Debounce/2, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				name := filepath.Base(ev.Name)
				if isSupportedExt(name) {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) >= w.Debounce {
					delete(pending, name)
					files <- name
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func (w *Watcher) checkDirs() error {
	for _, dir := range []string{w.Dir, w.OutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	in, err := filepath.Abs(w.Dir)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(w.OutDir)
	if err != nil {
		return err
	}
	if in == out {
		return errors.New("watch: inbox and output directory must differ")
	}
	return nil
}

func (w *Watcher) handle(name string) {
	rep, err := w.Process(name)
	if err != nil {
		log.Printf("Process %s: %v", name, err)
		return
	}
	if w.OnReport != nil {
		w.OnReport(rep)
	}
}

// Process analyses one inbox file, writes its report and annotated copy to
// the output directory and moves the original there. A photo that cannot
// be decoded still gets a report carrying the error; only I/O failures are
// returned.
func (w *Watcher) Process(name string) (*Report, error) {
	src := filepath.Join(w.Dir, name)
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.OutDir, 0o755); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	rep := &Report{Source: name, ProcessedAt: time.Now().UTC()}

	img, err := imaging.Decode(data)
	if err != nil {
		rep.Error = err.Error()
	} else {
		rep.Analysis = w.engine.AnalyzeImage(img, nil)
		annotated, err := imaging.Encode(w.engine.Annotate(img, rep.Analysis), imaging.FormatJPEG)
		if err != nil {
			return nil, err
		}
		rep.AnnotatedFile = base + annotatedSuffix + imaging.FormatJPEG.Extension()
		if err := os.WriteFile(filepath.Join(w.OutDir, rep.AnnotatedFile), annotated, 0o644); err != nil {
			return nil, err
		}
	}

	js, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(w.OutDir, base+".json"), js, 0o644); err != nil {
		return nil, err
	}
	if err := moveFile(src, filepath.Join(w.OutDir, name)); err != nil {
		return nil, err
	}
	return rep, nil
}

// ListImages returns the supported image files in dir, sorted by name.
func ListImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), annotatedSuffix) {
		return false
	}
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
