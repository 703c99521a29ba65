package worldmodel

import (
	"math"
	"sort"

	"mizan/internal/logging"
)

// SimulateOptions tunes the damped propagation. Damping and threshold are
// tuned constants surfaced as configuration, not physical facts.
type SimulateOptions struct {
	MaxSteps          int
	DampingFactor     float64 // default 0.7
	MinDeltaThreshold float64 // default 0.01
}

// normalizeSimulateOptions fills zero values with defaults.
func normalizeSimulateOptions(opts SimulateOptions) SimulateOptions {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 10
	}
	if opts.DampingFactor <= 0 || opts.DampingFactor > 1 {
		opts.DampingFactor = 0.7
	}
	if opts.MinDeltaThreshold <= 0 {
		opts.MinDeltaThreshold = 0.01
	}
	return opts
}

// neutralValue is the resting state every node starts from.
const neutralValue = 0.5

// PropagateChange perturbs one node and propagates the change through the
// graph in discrete damped steps. Deterministic: affected nodes and their
// outgoing edges are visited in sorted order, contributions to one target
// within a step are summed before thresholding, and every value is clamped to
// [0,1] after application.
//
// The result is an explanatory approximation of system response, labeled as
// such; it is never a quantitative forecast.
func PropagateChange(snap *Snapshot, changedNode string, magnitude float64, opts SimulateOptions) SimulationResult {
	timer := logging.StartTimer(logging.CategorySimulation, "PropagateChange")
	defer timer.Stop()

	opts = normalizeSimulateOptions(opts)

	result := SimulationResult{
		InitialState: make(map[string]float64, len(snap.Nodes)),
		FinalState:   make(map[string]float64),
		Label:        SimulationDisclaimer,
	}

	values := make(map[string]float64, len(snap.Nodes))
	for id := range snap.Nodes {
		values[id] = neutralValue
		result.InitialState[id] = neutralValue
	}
	if _, ok := values[changedNode]; !ok {
		logging.Simulation("PropagateChange: unknown node %q", changedNode)
		return result
	}

	values[changedNode] = clamp(neutralValue+magnitude, 0, 1)
	logging.SimulationDebug("PropagateChange: %s perturbed to %.3f (magnitude %.3f)", changedNode, values[changedNode], magnitude)

	frontier := []string{changedNode}
	for step := 1; step <= opts.MaxSteps && len(frontier) > 0; step++ {
		// Contributions to the same target within one step are summed, never
		// double-applied.
		deltas := make(map[string]float64)
		sort.Strings(frontier)
		for _, src := range frontier {
			for _, edgeID := range snap.Outgoing[src] {
				edge := snap.Edges[edgeID]
				weight := evidenceWeight(edge.SpanCount, edge.ChunkDiversity) *
					float64(edge.Polarity) * edge.Confidence
				deltas[edge.ToNode] += values[src] * weight * opts.DampingFactor
			}
		}

		targets := make([]string, 0, len(deltas))
		for id := range deltas {
			targets = append(targets, id)
		}
		sort.Strings(targets)

		var next []string
		for _, id := range targets {
			delta := deltas[id]
			if math.Abs(delta) < opts.MinDeltaThreshold {
				continue // below threshold, discarded before application
			}
			values[id] = clamp(values[id]+delta, 0, 1)
			result.PropagationSteps = append(result.PropagationSteps, PropagationStep{
				Step:   step,
				NodeID: id,
				Delta:  delta,
				Value:  values[id],
			})
			next = append(next, id)
		}
		frontier = next
	}

	for id, v := range values {
		if math.Abs(v-neutralValue) > opts.MinDeltaThreshold {
			result.FinalState[id] = v
		}
	}

	logging.Simulation("PropagateChange: %s magnitude=%.3f affected=%d steps=%d",
		changedNode, magnitude, len(result.FinalState), len(result.PropagationSteps))
	return result
}
