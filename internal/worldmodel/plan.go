package worldmodel

import (
	"sort"

	"mizan/internal/logging"

	"github.com/google/uuid"
)

// BuildOptions sets the greedy selection targets.
type BuildOptions struct {
	TargetLoopCount         int
	TargetInterventionCount int
}

// BuildWorldModelPlan greedily selects the top ranked loops and intervention
// plans, accumulating pillar coverage, and emits the used_edges provenance
// list: one record per loop edge with up to two evidence spans. The plan is
// the sole bridge artifact handed to the answer-composition layer; everything
// it cites must appear in UsedEdges.
//
// Inputs are already ranked (loops by RetrieveRelevantLoops); selection is a
// deterministic prefix, not a re-sort.
func BuildWorldModelPlan(rankedLoops []DetectedLoop, interventions []InterventionPlan, resolver EntityResolver, opts BuildOptions) WorldModelPlan {
	timer := logging.StartTimer(logging.CategoryPlan, "BuildWorldModelPlan")
	defer timer.Stop()

	plan := WorldModelPlan{ID: uuid.NewString()}
	pillars := make(map[string]bool)

	loopCount := opts.TargetLoopCount
	if loopCount <= 0 || loopCount > len(rankedLoops) {
		loopCount = len(rankedLoops)
	}
	for _, loop := range rankedLoops[:loopCount] {
		plan.Loops = append(plan.Loops, loop)
		for _, ref := range loop.NodeRefs {
			if id, ok := resolver.PillarOf(ref.Kind, ref.ID); ok {
				pillars[id] = true
			}
		}
		plan.UsedEdges = append(plan.UsedEdges, usedEdgesForLoop(loop)...)
	}

	ivCount := opts.TargetInterventionCount
	if ivCount <= 0 || ivCount > len(interventions) {
		ivCount = len(interventions)
	}
	for _, iv := range interventions[:ivCount] {
		plan.Interventions = append(plan.Interventions, iv)
		for _, step := range iv.Steps {
			if id, ok := resolver.PillarOf(step.TargetRefKind, step.TargetRefID); ok {
				pillars[id] = true
			}
		}
	}

	plan.PillarsCovered = make([]string, 0, len(pillars))
	for id := range pillars {
		plan.PillarsCovered = append(plan.PillarsCovered, id)
	}
	sort.Strings(plan.PillarsCovered)

	logging.Plan("BuildWorldModelPlan: %d loops, %d interventions, %d pillars, %d used edges",
		len(plan.Loops), len(plan.Interventions), len(plan.PillarsCovered), len(plan.UsedEdges))
	return plan
}

// usedEdgesForLoop emits one provenance record per loop edge, carrying up to
// two of the loop's spans for that edge.
func usedEdgesForLoop(loop DetectedLoop) []UsedEdge {
	spansByEdge := make(map[string][]EvidenceSpan)
	for _, span := range loop.EvidenceSpans {
		if len(spansByEdge[span.EdgeID]) < spansPerCitation {
			spansByEdge[span.EdgeID] = append(spansByEdge[span.EdgeID], span)
		}
	}

	out := make([]UsedEdge, 0, len(loop.EdgeIDs))
	for _, edgeID := range loop.EdgeIDs {
		out = append(out, UsedEdge{
			LoopID: loop.LoopID,
			EdgeID: edgeID,
			Spans:  spansByEdge[edgeID],
		})
	}
	return out
}
