// Package compress implements the compressor worker: drained by
// the rotator's compression-ready signal, it packages generations 1..N
// of one stream into a timestamped archive, deletes the stream's prior
// archive, removes the packaged originals, and settles the ring by
// shifting away any G0 an append-during-compression may have left
// behind.
package compress

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/DataDog/segrotd/internal/archive"
	"github.com/DataDog/segrotd/internal/coordinate"
	"github.com/DataDog/segrotd/internal/metrics"
	"github.com/DataDog/segrotd/internal/stream"
)

// Flags controls two independent archive-bookkeeping behaviors: whether
// the stream's prior archive is deleted just before a new one is
// packaged (even if that packaging then fails), and whether the packaged
// generations are removed after successful packaging.
type Flags struct {
	DeletePriorArchive bool
	DeleteOriginals    bool
}

// Compressor is the single long-lived worker that turns terminal
// generations into archives.
type Compressor struct {
	streams  []*stream.Stream
	coord    *coordinate.Coordinator
	archiver archive.Archiver
	fs       afero.Fs
	flags    Flags
	log      *zap.SugaredLogger
	metrics  *metrics.Counters

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New constructs a Compressor sharing streams and coord with the
// rotator that feeds it. m may be nil, in which case counters are
// skipped.
func New(streams []*stream.Stream, coord *coordinate.Coordinator, arc archive.Archiver, fs afero.Fs, flags Flags, log *zap.SugaredLogger, m *metrics.Counters) *Compressor {
	return &Compressor{
		streams:  streams,
		coord:    coord,
		archiver: arc,
		fs:       fs,
		flags:    flags,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Run blocks waiting on the compression-ready signal, processing one
// stream per wakeup, until the signal channel is closed (shutdown).
func (c *Compressor) Run(ctx context.Context) {
	for {
		id, ok := c.coord.WaitCompression()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.processOne(id)
	}
}

// processOne runs one full packaging pass for stream id: capture the
// terminal generation, package it, retire the prior archive, and
// settle the ring.
func (c *Compressor) processOne(id int) {
	st := c.streams[id]

	c.coord.ZipActive.Store(true)
	defer c.coord.ZipActive.Store(false)

	c.coord.Lock()
	state := c.coord.State(id)
	terminalPath := state.TerminalPath
	state.PendingCompress = false
	c.coord.Unlock()

	base, maxIndex, err := parseTerminal(st.Base, terminalPath)
	if err != nil {
		c.log.Errorw("parse terminal generation path", "op", "parse", "stream", st.Base, "path", terminalPath, "err", err)
		return
	}

	ts := c.now().Format("2006-01-02_15-04-05")
	target := filepath.Join(st.WatchDir, fmt.Sprintf("%s.log_%s.tar.gz", base, ts))

	c.coord.Lock()
	members := c.collectMembers(st, maxIndex)
	c.coord.Unlock()

	// last_archive_path is owned and mutated by the compressor alone
	// (never under generation_lock, per the shared resource policy), so
	// plain field access on the Stream is safe here.
	if c.flags.DeletePriorArchive && st.LastArchivePath != "" {
		if err := c.fs.Remove(st.LastArchivePath); err != nil {
			c.log.Errorw("remove prior archive", "op", "remove", "stream", st.Base, "path", st.LastArchivePath, "err", err)
		}
	}

	req := archive.Request{Dir: st.WatchDir, Target: target, Members: members}
	if err := c.archiver.Archive(req); err != nil {
		c.log.Errorw("package archive", "op", "archive", "stream", st.Base, "path", target, "err", err)
		c.bump(func(m *metrics.Counters) { m.ArchiverFailures.Inc() })
		return
	}
	c.bump(func(m *metrics.Counters) { m.ArchivesProduced.Inc() })

	st.LastArchivePath = target

	if c.flags.DeleteOriginals {
		c.coord.Lock()
		for _, m := range members {
			path := filepath.Join(st.WatchDir, m)
			if err := c.fs.Remove(path); err != nil {
				c.log.Errorw("remove packaged generation", "op", "remove", "stream", st.Base, "path", path, "err", err)
			}
		}
		c.coord.Unlock()
	}

	c.settle()
}

// bump invokes incr against the configured counters; it's a no-op when
// no metrics.Counters were supplied to New.
func (c *Compressor) bump(incr func(*metrics.Counters)) {
	if c.metrics == nil {
		return
	}
	incr(c.metrics)
}

// collectMembers gathers the basenames of G1..Gmax that still exist, in
// order. Must be called while holding the generation lock.
func (c *Compressor) collectMembers(st *stream.Stream, maxIndex int) []string {
	members := make([]string, 0, maxIndex)
	for k := 1; k <= maxIndex; k++ {
		name := fmt.Sprintf("%s.log.%d", st.Base, k)
		if ok, _ := afero.Exists(c.fs, st.GenerationPath(k)); ok {
			members = append(members, name)
		}
	}
	return members
}

// settle performs a direct shift under fence: take the watcher gate,
// shift any present G0 to G1 for every stream, release. This runs
// after every successful packaging pass so a segment appended to G0
// while this stream was mid-compression lands back in the ring.
func (c *Compressor) settle() {
	c.coord.FenceWatcher()
	defer c.coord.UnfenceWatcher()

	c.coord.Lock()
	defer c.coord.Unlock()

	for _, st := range c.streams {
		g0 := st.GenerationPath(0)
		if ok, _ := afero.Exists(c.fs, g0); !ok {
			continue
		}
		g1 := st.GenerationPath(1)
		if ok, _ := afero.Exists(c.fs, g1); ok {
			// Another generation already occupies G1 (for instance the
			// packaged generations were kept because DeleteOriginals is
			// off); leave G0 alone rather than clobber it.
			continue
		}
		if err := c.fs.Rename(g0, g1); err != nil {
			c.log.Errorw("settle G0 after compression", "op", "settle", "stream", st.Base, "from", g0, "to", g1, "err", err)
		}
	}
}

// parseTerminal derives the base name and the numeric generation suffix
// from a terminal-generation path such as "/var/log/ipstrc.log.5".
func parseTerminal(base, terminalPath string) (string, int, error) {
	idx := strings.LastIndex(terminalPath, ".")
	if idx < 0 {
		return "", 0, fmt.Errorf("malformed terminal path %q", terminalPath)
	}
	n, err := strconv.Atoi(terminalPath[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed terminal path %q: %w", terminalPath, err)
	}
	return base, n, nil
}
