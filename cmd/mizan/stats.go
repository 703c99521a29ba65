package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// statsCmd shows graph statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mechanism graph statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stats := eng.service.Stats(ctx)

	fmt.Println("World model statistics")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("  Pillars:        %d\n", eng.index.PillarCount())
	fmt.Printf("  Nodes:          %d\n", stats.NodeCount)
	fmt.Printf("  Edges:          %d\n", stats.EdgeCount)
	fmt.Printf("  Evidence spans: %d\n", stats.SpanCount)
	fmt.Printf("  Detected loops: %d\n", stats.LoopCount)
	fmt.Printf("  Database:       %s\n", eng.cfg.Store.DatabasePath)
	return nil
}
