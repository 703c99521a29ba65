// Package main implements the seeding commands: applying a framework seed
// file and optionally watching it for changes during corpus iteration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mizan/internal/framework"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedFile  string
	seedWatch bool
)

// seedCmd applies a framework seed file
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply a framework seed file to the store",
	Long: `Loads a YAML seed file (pillars, core values, sub-values and an
optional mechanism overlay with evidence) and writes it through the store.

With --watch the command stays running and re-applies the seed whenever
the file changes, invalidating cached loops and stats.

Example:
  mizan seed --file framework.yaml
  mizan seed --file framework.yaml --watch`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	path := seedFile
	if path == "" {
		path = eng.cfg.Framework.SeedPath
	}

	apply := func() error {
		seed, err := framework.LoadSeed(path)
		if err != nil {
			return err
		}
		if err := seed.Apply(eng.store); err != nil {
			return err
		}
		eng.service.InvalidateOnEdgeInsert()
		return nil
	}

	if err := apply(); err != nil {
		return fmt.Errorf("failed to apply seed: %w", err)
	}
	fmt.Printf("Seed applied from %s\n", path)

	if !seedWatch && !eng.cfg.Framework.WatchSeed {
		return nil
	}

	watcher, err := framework.NewSeedWatcher(path, func() error {
		if err := apply(); err != nil {
			return err
		}
		fmt.Printf("Seed re-applied from %s\n", path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create seed watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start seed watcher: %w", err)
	}
	defer watcher.Stop()

	logger.Info("watching seed file", zap.String("path", path))
	fmt.Println("Watching for seed changes (Ctrl+C to stop)...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nStopping watcher.")
	return nil
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Seed file path (defaults to config framework.seed_path)")
	seedCmd.Flags().BoolVar(&seedWatch, "watch", false, "Re-apply the seed on file changes")
}
