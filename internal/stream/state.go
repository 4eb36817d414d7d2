package stream

import (
	"fmt"
	"path/filepath"
)

// Stream holds the per-stream paths and ring bookkeeping described in
// the data model. GenerationPath(k) is the path for generation k; a
// stream with MaxGenerations == N has slots 0..N.
type Stream struct {
	ID              int
	Base            string
	WatchDir        string
	MaxGenerations  int
	LastArchivePath string
}

// NewStream constructs a Stream for base name base within watchDir, with
// a ring depth of maxGenerations.
func NewStream(id int, base, watchDir string, maxGenerations int) *Stream {
	return &Stream{
		ID:             id,
		Base:           base,
		WatchDir:       watchDir,
		MaxGenerations: maxGenerations,
	}
}

// StemPath is "<watch_dir>/<base>".
func (s *Stream) StemPath() string {
	return filepath.Join(s.WatchDir, s.Base)
}

// ActivePath is the producer's live file, never touched by the rotator.
func (s *Stream) ActivePath() string {
	return s.StemPath() + ".log"
}

// GenerationPath returns the path of generation slot k ("<stem>.log.<k>").
func (s *Stream) GenerationPath(k int) string {
	return fmt.Sprintf("%s.log.%d", s.StemPath(), k)
}

// SegmentPath joins a sealed-segment basename onto the watch directory.
func (s *Stream) SegmentPath(basename string) string {
	return filepath.Join(s.WatchDir, basename)
}

// NewStreams builds one Stream per entry in reg, preserving registry
// order and index assignment.
func NewStreams(reg *Registry, watchDir string, maxGenerations int) []*Stream {
	streams := make([]*Stream, reg.Len())
	for i := 0; i < reg.Len(); i++ {
		streams[i] = NewStream(i, reg.Base(i), watchDir, maxGenerations)
	}
	return streams
}
