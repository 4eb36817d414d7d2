// Package daemon wires the directory watcher, rotator, and compressor
// workers into the long-lived process supervisor: it builds the shared
// registry and coordination layer, runs a startup reconciliation pass
// over segments that were already sealed before the process started,
// then drives the workers until the context is cancelled.
package daemon

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/DataDog/segrotd/internal/archive"
	"github.com/DataDog/segrotd/internal/archive/execarchiver"
	"github.com/DataDog/segrotd/internal/archive/nativegzip"
	"github.com/DataDog/segrotd/internal/archive/nativezstd"
	"github.com/DataDog/segrotd/internal/compress"
	"github.com/DataDog/segrotd/internal/config"
	"github.com/DataDog/segrotd/internal/coordinate"
	"github.com/DataDog/segrotd/internal/metrics"
	"github.com/DataDog/segrotd/internal/rotate"
	"github.com/DataDog/segrotd/internal/stream"
	"github.com/DataDog/segrotd/internal/watch"
)

// Daemon is the process supervisor: one registry, one coordination
// layer, and the three workers that share them.
type Daemon struct {
	cfg   config.Config
	log   *zap.SugaredLogger
	fs    afero.Fs
	reg   *stream.Registry
	coord *coordinate.Coordinator

	watcher    *watch.Watcher
	rotator    *rotate.Rotator
	compressor *compress.Compressor

	metrics *metrics.Counters
}

// New builds a Daemon from cfg, wiring an OS filesystem and a real
// fsnotify watcher on cfg.WatchDir. Any construction failure here is a
// fatal initialization error per the process's error-handling design.
func New(cfg config.Config, log *zap.Logger) (*Daemon, error) {
	sugar := log.Sugar()

	w, err := watch.New(cfg.WatchDir, sugar)
	if err != nil {
		return nil, errors.Wrap(err, "start directory watcher")
	}

	arc, err := buildArchiver(cfg)
	if err != nil {
		w.Close()
		return nil, err
	}

	return newDaemon(cfg, sugar, afero.NewOsFs(), w, arc), nil
}

// newDaemon is the fs/archiver-injectable constructor tests use to swap
// in an afero.NewMemMapFs() and a recording archiver.
func newDaemon(cfg config.Config, log *zap.SugaredLogger, fs afero.Fs, w *watch.Watcher, arc archive.Archiver) *Daemon {
	reg := stream.NewRegistry(cfg.Streams, cfg.StrictPrefix)
	streams := stream.NewStreams(reg, cfg.WatchDir, cfg.MaxGenerations)
	coord := coordinate.New(reg.Len())
	m := metrics.New()

	rot := rotate.New(streams, coord, fs, log, cfg.DummyToken, m)
	comp := compress.New(streams, coord, arc, fs, compress.Flags{
		DeletePriorArchive: cfg.DeletePriorArchive,
		DeleteOriginals:    cfg.DeleteOriginals,
	}, log, m)

	return &Daemon{
		cfg:        cfg,
		log:        log,
		fs:         fs,
		reg:        reg,
		coord:      coord,
		watcher:    w,
		rotator:    rot,
		compressor: comp,
		metrics:    m,
	}
}

func buildArchiver(cfg config.Config) (archive.Archiver, error) {
	switch cfg.Archiver {
	case config.ArchiverExec:
		return execarchiver.New(cfg.ArchiverPath), nil
	case config.ArchiverNativeGzip:
		return nativegzip.New(), nil
	case config.ArchiverNativeZstd:
		return nativezstd.New(), nil
	default:
		return nil, errors.Errorf("unknown archiver %q", cfg.Archiver)
	}
}

// reconcile scans the watch directory once at startup and ingests any
// sealed segment that arrived (or was left behind by a prior process)
// before the watcher subscription existed, so no segment is silently
// skipped on restart.
func (d *Daemon) reconcile() error {
	entries, err := afero.ReadDir(d.fs, d.cfg.WatchDir)
	if err != nil {
		return errors.Wrapf(err, "list watch directory %q for reconciliation", d.cfg.WatchDir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		cls, id := stream.Classify(d.reg, e.Name())
		if cls != stream.Dispatched {
			continue
		}
		d.log.Infow("reconciling pre-existing sealed segment", "op", "reconcile", "path", e.Name())
		d.rotator.Ingest(id, e.Name())
	}
	return nil
}

// Run performs startup reconciliation, starts the rotator and
// compressor behind an init barrier, then drives the directory watcher
// until ctx is cancelled or the watch loop fails. On return it closes
// the coordination layer and waits for both workers to exit.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.reconcile(); err != nil {
		return err
	}

	var barrier sync.WaitGroup
	barrier.Add(2)

	var workers sync.WaitGroup
	workers.Add(2)

	var rotatorDone sync.WaitGroup
	rotatorDone.Add(1)

	go func() {
		defer workers.Done()
		barrier.Done()
		d.compressor.Run(ctx)
	}()

	go func() {
		defer workers.Done()
		defer rotatorDone.Done()
		barrier.Done()
		d.rotator.Run(ctx, d.reg, d.watcher.Names())
	}()

	barrier.Wait()

	werr := d.watcher.Run(ctx)

	// The rotator may still be mid-Ingest (and about to call
	// SignalCompression) when the watcher returns; wait for it to
	// actually exit its loop before closing the ready channel, or a
	// send-on-closed-channel panic races Close.
	rotatorDone.Wait()
	d.coord.Close()
	workers.Wait()

	return werr
}

// Snapshot returns the daemon's current operational counters, surfaced
// by the process on SIGUSR1.
func (d *Daemon) Snapshot() metrics.Snapshot {
	return d.metrics.Snapshot()
}
