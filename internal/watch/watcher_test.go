package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherDispatchesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	log := zap.NewNop().Sugar()

	w, err := New(dir, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ipstrc.100.bak"), []byte("hello"), 0o600))

	select {
	case name := <-w.Names():
		require.Equal(t, "ipstrc.100.bak", name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not exit after cancellation")
	}
}

func TestWatcherDispatchesRenamedFile(t *testing.T) {
	dir := t.TempDir()
	log := zap.NewNop().Sugar()

	w, err := New(dir, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	staging := filepath.Join(t.TempDir(), "ipstrc.log")
	require.NoError(t, os.WriteFile(staging, []byte("hello"), 0o600))
	require.NoError(t, os.Rename(staging, filepath.Join(dir, "ipstrc.101.bak")))

	select {
	case name := <-w.Names():
		require.Equal(t, "ipstrc.101.bak", name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rename event")
	}
}

func TestNewFailsOnMissingDirectory(t *testing.T) {
	log := zap.NewNop().Sugar()
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist"), log)
	require.Error(t, err)
}
