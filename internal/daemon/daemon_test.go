package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DataDog/segrotd/internal/archive"
	"github.com/DataDog/segrotd/internal/config"
	"github.com/DataDog/segrotd/internal/watch"
)

type noopArchiver struct {
	mu       sync.Mutex
	requests []archive.Request
}

func (a *noopArchiver) Archive(req archive.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return nil
}

func (a *noopArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func testConfig() config.Config {
	return config.Config{
		WatchDir:           "/var/log",
		Streams:            []string{"ipstrc", "pdtrc"},
		MaxGenerations:     2,
		DeletePriorArchive: true,
		DeleteOriginals:    true,
		Archiver:           config.ArchiverNativeGzip,
		DummyToken:         "dummy",
	}
}

func TestReconcileIngestsPreExistingSegments(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/var/log", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/var/log/ipstrc.100.bak", []byte("seg"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/var/log/pdtrc.bak", []byte(""), 0o600)) // self-staged, ignored
	require.NoError(t, afero.WriteFile(fs, "/var/log/notes.txt", []byte(""), 0o600)) // not a segment

	arc := &noopArchiver{}
	d := newDaemon(testConfig(), zap.NewNop().Sugar(), fs, &watch.Watcher{}, arc)

	require.NoError(t, d.reconcile())

	ok, err := afero.Exists(fs, "/var/log/ipstrc.log.0")
	require.NoError(t, err)
	require.True(t, ok, "sealed segment present before startup must be rotated in")

	ok, err = afero.Exists(fs, "/var/log/ipstrc.100.bak")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = afero.Exists(fs, "/var/log/pdtrc.bak")
	require.NoError(t, err)
	require.True(t, ok, "self-staged marker must never be touched by reconciliation")
}

func TestReconcileMissingDirectoryIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	arc := &noopArchiver{}
	d := newDaemon(testConfig(), zap.NewNop().Sugar(), fs, &watch.Watcher{}, arc)

	err := d.reconcile()
	require.Error(t, err)
}

func TestSnapshotReflectsReconciliation(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/var/log", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/var/log/ipstrc.100.bak", []byte("seg"), 0o600))

	arc := &noopArchiver{}
	d := newDaemon(testConfig(), zap.NewNop().Sugar(), fs, &watch.Watcher{}, arc)

	require.NoError(t, d.reconcile())

	snap := d.Snapshot()
	require.Equal(t, int64(1), snap.SegmentsIngested)
}

func TestRunEndToEndWithRealWatcher(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.WatchDir = dir
	cfg.MaxGenerations = 1

	w, err := watch.New(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	fs := afero.NewOsFs()
	arc := &noopArchiver{}
	d := newDaemon(cfg, zap.NewNop().Sugar(), fs, w, arc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, afero.WriteFile(fs, dir+"/ipstrc.1.bak", []byte("first"), 0o600))
	require.Eventually(t, func() bool {
		return arc.count() == 1
	}, 2*time.Second, 20*time.Millisecond, "sealed segment should flow through rotate and compress end to end")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not shut down after cancel")
	}
}
