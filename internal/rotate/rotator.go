// Package rotate implements the rotator worker: per sealed-segment
// event, it ingests the segment into generation 0 of its stream (by
// rename or, while compression is active, by append), and, when no
// compression is active, then shifts the stream's ring of generations
// forward under the generation lock, signalling the compressor worker
// when a new terminal generation appears.
package rotate

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/DataDog/segrotd/internal/coordinate"
	"github.com/DataDog/segrotd/internal/metrics"
	"github.com/DataDog/segrotd/internal/stream"
)

// Rotator consumes classified sealed-segment events and drives the
// per-stream generation ring.
type Rotator struct {
	streams    []*stream.Stream
	coord      *coordinate.Coordinator
	fs         afero.Fs
	log        *zap.SugaredLogger
	dummyToken string
	metrics    *metrics.Counters
}

// New constructs a Rotator over streams, sharing coord with the
// compressor worker that will eventually drain it. dummyToken selects
// the settlement-marker token recognized by handleDummy; an empty
// string falls back to the default ("dummy"). m may be nil, in which
// case counters are skipped.
func New(streams []*stream.Stream, coord *coordinate.Coordinator, fs afero.Fs, log *zap.SugaredLogger, dummyToken string, m *metrics.Counters) *Rotator {
	if dummyToken == "" {
		dummyToken = stream.DummySuffix
	}
	return &Rotator{streams: streams, coord: coord, fs: fs, log: log, dummyToken: dummyToken, metrics: m}
}

// Run is the rotator's long-lived loop: it consumes basenames from
// names (as dispatched by the directory watcher), classifies each
// against reg, and ingests dispatched sealed segments. It returns when
// names is closed or ctx is cancelled.
func (r *Rotator) Run(ctx context.Context, reg *stream.Registry, names <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case name, ok := <-names:
			if !ok {
				return
			}
			cls, id := stream.Classify(reg, name)
			if cls != stream.Dispatched {
				continue
			}
			r.coord.FenceWatcher()
			r.Ingest(id, name)
			r.coord.UnfenceWatcher()
		}
	}
}

// Ingest handles one classified event: basename belongs to stream id.
// It never returns an error that should tear down the worker — every
// failure is logged and absorbed per the error-handling design.
func (r *Rotator) Ingest(id int, basename string) {
	st := r.streams[id]
	segPath := st.SegmentPath(basename)

	if _, err := r.fs.Stat(segPath); err != nil {
		r.log.Infow("sealed segment vanished before ingest", "op", "ingest", "stream", st.Base, "path", segPath, "err", err)
		return
	}

	if stream.IsDummyToken(st.Base, basename, r.dummyToken) {
		r.handleDummy(st, segPath)
		return
	}

	r.bump(func(m *metrics.Counters) { m.SegmentsIngested.Inc() })

	if r.coord.ZipActive.Load() {
		r.coord.Lock()
		defer r.coord.Unlock()
		g0 := st.GenerationPath(0)
		if exists(r.fs, g0) {
			if err := r.appendOnto(segPath, g0); err != nil {
				r.log.Errorw("append segment onto G0", "op", "append", "stream", st.Base, "from", segPath, "to", g0, "err", err)
				return
			}
			r.bump(func(m *metrics.Counters) { m.Appends.Inc() })
			return
		}
		if err := r.fs.Rename(segPath, g0); err != nil {
			r.log.Errorw("rename segment into G0 during compression", "op", "rename", "stream", st.Base, "from", segPath, "to", g0, "err", err)
		}
		return
	}

	g0 := st.GenerationPath(0)
	r.coord.Lock()
	err := r.fs.Rename(segPath, g0)
	r.coord.Unlock()
	if err != nil {
		r.log.Errorw("rename segment into G0", "op", "rename", "stream", st.Base, "from", segPath, "to", g0, "err", err)
		return
	}
	r.bump(func(m *metrics.Counters) { m.Rotations.Inc() })
	r.Shift(st)
}

// bump invokes incr against the configured counters; it's a no-op when
// no metrics.Counters were supplied to New.
func (r *Rotator) bump(incr func(*metrics.Counters)) {
	if r.metrics == nil {
		return
	}
	incr(r.metrics)
}

// handleDummy implements the settlement-marker path: no ingest; if G0
// exists, shift forward, then always delete the marker.
func (r *Rotator) handleDummy(st *stream.Stream, markerPath string) {
	if exists(r.fs, st.GenerationPath(0)) {
		r.Shift(st)
	}
	if err := r.fs.Remove(markerPath); err != nil {
		r.log.Errorw("remove settlement marker", "op", "remove", "stream", st.Base, "path", markerPath, "err", err)
	}
}

// appendOnto concatenates the contents of src onto the tail of dst using
// io.Copy (which, for *os.File destinations on Linux, takes the
// copy_file_range fast path via os.File.ReadFrom — the portable
// equivalent of a zero-copy transfer), then removes src.
func (r *Rotator) appendOnto(src, dst string) (err error) {
	in, err := r.fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %q for append", src)
	}
	defer in.Close()

	out, err := r.fs.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %q for append", dst)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copy %q onto %q", src, dst)
	}

	if err = r.fs.Remove(src); err != nil {
		return errors.Wrapf(err, "remove %q after append", src)
	}
	return nil
}

// Shift moves every occupied generation up one slot: under the
// generation lock, drop GN if present, rename G(N-1)..G0 up one slot
// each, and, if a new GN was created, record it as the stream's
// terminal path and signal the compressor.
func (r *Rotator) Shift(st *stream.Stream) {
	r.coord.Lock()
	newlyTerminal := ""

	gn := st.GenerationPath(st.MaxGenerations)
	if exists(r.fs, gn) {
		if err := r.fs.Remove(gn); err != nil {
			r.log.Errorw("remove terminal generation before shift", "op", "remove", "stream", st.Base, "path", gn, "err", err)
		}
	}

	for k := st.MaxGenerations - 1; k >= 0; k-- {
		src := st.GenerationPath(k)
		if !exists(r.fs, src) {
			continue
		}
		dst := st.GenerationPath(k + 1)
		if err := r.fs.Rename(src, dst); err != nil {
			r.log.Errorw("shift generation", "op", "shift", "stream", st.Base, "from", src, "to", dst, "err", err)
			continue
		}
		if k == st.MaxGenerations-1 {
			newlyTerminal = dst
		}
	}

	if newlyTerminal != "" {
		state := r.coord.State(st.ID)
		state.TerminalPath = newlyTerminal
		state.PendingCompress = true
	}
	r.coord.Unlock()

	if newlyTerminal != "" {
		r.coord.SignalCompression(st.ID)
	}
}

func exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}
