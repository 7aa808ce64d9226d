package watch

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/marker-measure/internal/config"
	"github.com/ironsheep/marker-measure/internal/engine"
)

// writeSheet saves a 600x800 photo of an A4 sheet at 2 px/mm.
func writeSheet(t *testing.T, path string) {
	t.Helper()
	img := imaging.New(600, 800, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
	img = imaging.Paste(img, imaging.New(420, 594, color.NRGBA{R: 230, G: 230, B: 230, A: 255}), image.Pt(90, 100))
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WatchDir = t.TempDir()
	cfg.ProcessedDir = t.TempDir()
	cfg.WatchDebounceMS = 20
	return New(engine.New(engine.OptionsFromConfig(cfg)), cfg)
}

func readReport(t *testing.T, path string) Report {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	return rep
}

func TestIsSupportedExt(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"scan.png", true},
		{"scan.tiff", true},
		{"notes.txt", false},
		{"report.json", false},
		{"photo_annotated.jpg", false},
		{".photo.jpg.swp", false},
		{".hidden.png", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := isSupportedExt(tt.name); got != tt.want {
			t.Errorf("isSupportedExt(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "c.txt", "a_annotated.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := ListImages(dir)
	want := []string{"a.jpg", "b.png"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d]: got %s, want %s", i, got[i], want[i])
		}
	}
	if ListImages(filepath.Join(dir, "missing")) != nil {
		t.Error("missing directory should list nothing")
	}
}

func TestProcess(t *testing.T) {
	w := newTestWatcher(t)
	writeSheet(t, filepath.Join(w.Dir, "desk.png"))

	rep, err := w.Process("desk.png")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rep.Analysis == nil || !rep.Analysis.Success {
		t.Fatalf("sheet not found: %+v", rep)
	}
	if rep.AnnotatedFile != "desk_annotated.jpg" {
		t.Errorf("AnnotatedFile: got %q", rep.AnnotatedFile)
	}

	onDisk := readReport(t, filepath.Join(w.OutDir, "desk.json"))
	if onDisk.Source != "desk.png" || onDisk.Analysis == nil || onDisk.Analysis.Marker == nil {
		t.Errorf("report on disk: %+v", onDisk)
	}
	for _, name := range []string{"desk_annotated.jpg", "desk.png"} {
		if _, err := os.Stat(filepath.Join(w.OutDir, name)); err != nil {
			t.Errorf("%s not in output dir: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(w.Dir, "desk.png")); !os.IsNotExist(err) {
		t.Error("original should be moved out of the inbox")
	}
}

func TestProcess_InvalidImage(t *testing.T) {
	w := newTestWatcher(t)
	if err := os.WriteFile(filepath.Join(w.Dir, "broken.jpg"), []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	rep, err := w.Process("broken.jpg")
	if err != nil {
		t.Fatalf("undecodable photos should still be reported, got %v", err)
	}
	if rep.Error == "" || rep.Analysis != nil {
		t.Errorf("report: %+v", rep)
	}
	if readReport(t, filepath.Join(w.OutDir, "broken.json")).Error == "" {
		t.Error("error missing from report on disk")
	}

	if _, err := w.Process("vanished.png"); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestRun(t *testing.T) {
	w := newTestWatcher(t)
	writeSheet(t, filepath.Join(w.Dir, "before.png"))

	var mu sync.Mutex
	seen := map[string]bool{}
	reported := make(chan string, 4)
	w.OnReport = func(r *Report) {
		mu.Lock()
		seen[r.Source] = true
		mu.Unlock()
		select {
		case reported <- r.Source:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor := func(name string) {
		t.Helper()
		deadline := time.After(20 * time.Second)
		for {
			mu.Lock()
			ok := seen[name]
			mu.Unlock()
			if ok {
				return
			}
			select {
			case <-reported:
			case <-deadline:
				t.Fatalf("no report for %s", name)
			}
		}
	}

	// The initial scan runs after the watch is registered.
	waitFor("before.png")
	writeSheet(t, filepath.Join(w.Dir, "after.png"))
	waitFor("after.png")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if _, err := os.Stat(filepath.Join(w.OutDir, "after.json")); err != nil {
		t.Errorf("after.json: %v", err)
	}
}

func TestRun_SameDirectories(t *testing.T) {
	w := newTestWatcher(t)
	w.OutDir = w.Dir
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected an error when inbox and output coincide")
	}
}
