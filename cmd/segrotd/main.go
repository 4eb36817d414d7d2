// Command segrotd runs the log rotation and archival daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DataDog/segrotd/internal/config"
	"github.com/DataDog/segrotd/internal/daemon"
	"github.com/DataDog/segrotd/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "segrotd",
		Short: "log rotation and archival daemon",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		cfgFile        string
		watchDir       string
		maxGenerations int
		debug          bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the rotator engine and block until signalled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if watchDir != "" {
				cfg.WatchDir = watchDir
			}
			if maxGenerations > 0 {
				cfg.MaxGenerations = maxGenerations
			}
			if debug {
				cfg.Debug = true
			}

			log, err := logging.New(cfg.Debug)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck

			d, err := daemon.New(cfg, log)
			if err != nil {
				return fmt.Errorf("initialize daemon: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			installSnapshotHandler(ctx, d, log.Sugar())

			return d.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file")
	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "directory to watch for sealed segments (overrides config)")
	cmd.Flags().IntVar(&maxGenerations, "max-generations", 0, "per-stream generation ring depth (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable development logging")

	return cmd
}
