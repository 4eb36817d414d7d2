//go:build windows

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/DataDog/segrotd/internal/daemon"
)

// installSnapshotHandler is a no-op on Windows: SIGUSR1 has no
// equivalent there.
func installSnapshotHandler(ctx context.Context, d *daemon.Daemon, log *zap.SugaredLogger) {}
