// Package main implements the loop commands: offline mining and ranked
// retrieval of feedback loops.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mizan/internal/config"
	"mizan/internal/framework"
	"mizan/internal/worldmodel"

	"github.com/spf13/cobra"
)

var (
	loopsEntities []string
	loopsPillars  []string
	loopsTopK     int

	mineMaxCycles int
	mineMaxLength int
)

// mineLoopsCmd runs bounded cycle detection and persists the result
var mineLoopsCmd = &cobra.Command{
	Use:   "mine-loops",
	Short: "Mine feedback loops from the mechanism graph and persist them",
	Long: `Runs bounded cycle detection over the evidence-bearing edges of the
mechanism graph, classifies each loop as reinforcing or balancing, and
replaces the persisted loop set. Query commands read the persisted set;
they never run live detection.`,
	RunE: runMineLoops,
}

// loopsCmd lists cached loops, optionally ranked against query entities
var loopsCmd = &cobra.Command{
	Use:   "loops",
	Short: "List detected feedback loops",
	Long: `Lists the persisted feedback loops, shortest first. With --entity or
--pillar the loops are ranked by relevance to the given anchors instead.

Examples:
  mizan loops
  mizan loops --entity sub_value:sv-patience --pillar p-spiritual --top 3`,
	RunE: runLoops,
}

func runMineLoops(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine(func(cfg *config.Config) {
		if mineMaxCycles > 0 {
			cfg.WorldModel.MaxCycles = mineMaxCycles
		}
		if mineMaxLength > 0 {
			cfg.WorldModel.MaxCycleLength = mineMaxLength
		}
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	loops, err := eng.service.MineLoops(ctx)
	if err != nil {
		return fmt.Errorf("loop mining failed: %w", err)
	}

	fmt.Printf("Mined %d loops in %s\n", len(loops), time.Since(start).Round(time.Millisecond))
	for _, loop := range loops {
		fmt.Printf("  %-12s %d edges  %s\n", loop.LoopType, loop.EdgeCount(), strings.Join(loop.NodeLabels, " -> "))
	}
	return nil
}

func runLoops(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	detected := framework.NewDetectedEntities(loopsEntities, loopsPillars)

	var loops []worldmodel.DetectedLoop
	if !detected.IsEmpty() {
		loops = eng.service.RetrieveRelevantLoops(ctx, detected.Entities, detected.Pillars, loopsTopK)
	} else {
		loops = eng.service.GetCachedLoops(ctx)
	}

	if len(loops) == 0 {
		fmt.Println("No loops detected. Run `mizan mine-loops` first.")
		return nil
	}

	fmt.Printf("Feedback loops (%d)\n", len(loops))
	fmt.Println(strings.Repeat("-", 60))
	for i, loop := range loops {
		fmt.Printf("%2d. [%s] %s\n", i+1, loop.LoopType, strings.Join(loop.NodeLabels, " -> "))
		fmt.Printf("    edges=%d spans=%d id=%s\n", loop.EdgeCount(), len(loop.EvidenceSpans), loop.LoopID)
	}
	return nil
}

func init() {
	loopsCmd.Flags().StringSliceVar(&loopsEntities, "entity", nil, "Detected entity anchors (kind:id or id)")
	loopsCmd.Flags().StringSliceVar(&loopsPillars, "pillar", nil, "Detected pillar ids")
	loopsCmd.Flags().IntVar(&loopsTopK, "top", 3, "Number of ranked loops to return")

	mineLoopsCmd.Flags().IntVar(&mineMaxCycles, "max-cycles", 0, "Override the configured cycle exploration cap")
	mineLoopsCmd.Flags().IntVar(&mineMaxLength, "max-length", 0, "Override the configured maximum cycle length")
}
