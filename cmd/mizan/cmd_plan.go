// Package main implements the planning and simulation commands.
package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"mizan/internal/framework"

	"github.com/spf13/cobra"
)

var planEntities []string

// planCmd computes an intervention plan toward a goal
var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Compute an intervention plan toward a goal",
	Long: `Resolves the goal against the mechanism graph (entity anchors first,
then label match), traces backward to leverage points, and emits an
ordered, evidence-cited plan. Steps that would carry medical claims are
dropped, never rephrased.

Example:
  mizan plan "patience" --entity sub_value:sv-patience`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

// simulateCmd propagates a hypothetical change through the graph
var simulateCmd = &cobra.Command{
	Use:   "simulate <node-id> <magnitude>",
	Short: "Simulate a hypothetical change to one mechanism node",
	Long: `Perturbs one node and propagates the change along causal edges with
damping, printing the step log and the final state. The result is an
explanatory approximation, not a forecast.

Example:
  mizan simulate n-gratitude 0.3`,
	Args: cobra.ExactArgs(2),
	RunE: runSimulate,
}

func runPlan(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	goal := args[0]
	detected := framework.NewDetectedEntities(planEntities, nil)
	plan := eng.service.ComputeInterventionPlan(ctx, goal, detected.Entities)

	fmt.Printf("Intervention plan: %s\n", plan.Goal)
	fmt.Println(strings.Repeat("-", 60))

	if len(plan.Steps) == 0 {
		fmt.Println("No steps could be derived for this goal.")
	}
	for i, step := range plan.Steps {
		fmt.Printf("%d. %s (%s:%s)\n", i+1, step.TargetLabel, step.TargetRefKind, step.TargetRefID)
		fmt.Printf("   reason: %s\n", step.MechanismReason)
		for _, impact := range step.ExpectedImpacts {
			fmt.Printf("   impact: %s\n", impact)
		}
	}

	if len(plan.LeadingIndicators) > 0 {
		fmt.Println("\nLeading indicators:")
		for _, ind := range plan.LeadingIndicators {
			fmt.Printf("  - %s (%s)\n", ind.Label, ind.Source)
		}
	}
	if len(plan.RiskOfImbalance) > 0 {
		fmt.Println("\nRisk of imbalance:")
		for _, risk := range plan.RiskOfImbalance {
			fmt.Printf("  - [%s] %s\n", risk.Pillar, risk.Statement)
		}
	}

	if issues := eng.service.ValidateInterventionPlan(plan); len(issues) > 0 {
		fmt.Println("\nValidation issues:")
		for _, issue := range issues {
			fmt.Printf("  ! %s\n", issue)
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nodeID := args[0]
	magnitude, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid magnitude %q: %w", args[1], err)
	}

	result := eng.service.SimulateChange(ctx, nodeID, magnitude)

	fmt.Printf("Simulating %+.2f on %s\n", magnitude, nodeID)
	fmt.Println(strings.Repeat("-", 60))
	for _, step := range result.PropagationSteps {
		fmt.Printf("  step %d: %-20s delta=%+.3f value=%.3f\n", step.Step, step.NodeID, step.Delta, step.Value)
	}

	if len(result.FinalState) == 0 {
		fmt.Println("No nodes moved beyond the threshold.")
	} else {
		fmt.Println("Final state:")
		nodes := make([]string, 0, len(result.FinalState))
		for id := range result.FinalState {
			nodes = append(nodes, id)
		}
		sort.Strings(nodes)
		for _, id := range nodes {
			fmt.Printf("  %-20s %.3f\n", id, result.FinalState[id])
		}
	}

	fmt.Printf("\nNote: %s\n", result.Label)
	return nil
}

func init() {
	planCmd.Flags().StringSliceVar(&planEntities, "entity", nil, "Detected entity anchors (kind:id)")
}
