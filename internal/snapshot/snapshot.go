// Package snapshot stores the intermediate images produced while analysing a
// photograph, so failed detections can be inspected afterwards.
//
// Detection code only sees the Save method. Sinks never return errors to
// their caller: a snapshot that cannot be written is logged and dropped.
package snapshot

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ironsheep/marker-measure/internal/imaging"
)

// Sink receives named intermediate images.
type Sink interface {
	Save(name string, img image.Image)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Save(string, image.Image) {}

// DirSink writes each snapshot as a file in Dir.
//
// Files are named <session>_<seq>_<name><ext>; the session token is a fresh
// uuid so concurrent analyses sharing a directory never collide, and seq
// keeps files in the order they were produced.
type DirSink struct {
	Dir     string
	Session string
	Format  imaging.Format

	mu    sync.Mutex
	seq   int
	files []string
}

// NewDirSink creates dir if needed and returns a sink with a new session
// token.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &DirSink{
		Dir:     dir,
		Session: uuid.NewString(),
		Format:  imaging.FormatPNG,
	}, nil
}

// Save encodes img and writes it. Errors are logged.
func (s *DirSink) Save(name string, img image.Image) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	data, err := imaging.Encode(img, s.Format)
	if err != nil {
		log.Printf("Snapshot %s: %v", name, err)
		return
	}
	file := fmt.Sprintf("%s_%02d_%s%s", s.Session, seq, cleanName(name), s.Format.Extension())
	path := filepath.Join(s.Dir, file)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Snapshot %s: %v", name, err)
		return
	}

	s.mu.Lock()
	s.files = append(s.files, file)
	s.mu.Unlock()
}

// Files returns the names of the files written so far, relative to Dir.
func (s *DirSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Memory keeps snapshots in memory in the order they arrive.
type Memory struct {
	mu     sync.Mutex
	names  []string
	images map[string]image.Image
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{images: make(map[string]image.Image)}
}

func (m *Memory) Save(name string, img image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[name]; !ok {
		m.names = append(m.names, name)
	}
	m.images[name] = img
}

// Names lists snapshot names in first-saved order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// Get returns the latest image saved under name.
func (m *Memory) Get(name string) (image.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[name]
	return img, ok
}

// Prefixed returns a sink that prepends prefix and an underscore to every
// name before handing it to s.
func Prefixed(s Sink, prefix string) Sink {
	if prefix == "" {
		return s
	}
	return prefixed{sink: s, prefix: prefix}
}

type prefixed struct {
	sink   Sink
	prefix string
}

func (p prefixed) Save(name string, img image.Image) {
	p.sink.Save(p.prefix+"_"+name, img)
}

// cleanName keeps letters, digits, '-' and '_' so names are safe as file
// names.
func cleanName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "snapshot"
	}
	return name
}
