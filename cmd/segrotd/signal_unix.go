//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/DataDog/segrotd/internal/daemon"
)

// installSnapshotHandler logs the daemon's current counters every time
// the process receives SIGUSR1, for operators who want a cheap
// diagnostic dump without a metrics scrape pipeline.
func installSnapshotHandler(ctx context.Context, d *daemon.Daemon, log *zap.SugaredLogger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)

	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(sig)
				return
			case <-sig:
				snap := d.Snapshot()
				log.Infow("status snapshot",
					"segments_ingested", snap.SegmentsIngested,
					"appends", snap.Appends,
					"rotations", snap.Rotations,
					"archives_produced", snap.ArchivesProduced,
					"archiver_failures", snap.ArchiverFailures,
				)
			}
		}
	}()
}
