package worldmodel

import (
	"sort"
	"strings"

	"mizan/internal/logging"

	"github.com/google/uuid"
)

// DetectOptions caps the bounded cycle search.
type DetectOptions struct {
	MaxCycles      int // global cap on recorded cycles
	MaxCycleLength int // per-path cap in edges
	MaxLoops       int // cap on returned loops after sorting
}

// spansPerLoopEdge bounds how many evidence spans a loop carries per edge.
const spansPerLoopEdge = 2

// DetectLoops runs the bounded cycle search over a fresh topology snapshot
// and converts retained cycles into classified, evidence-hydrated loops.
//
// This is a deterministic bounded approximation, not an exhaustive cycle
// basis: start nodes are visited in sorted-id order, cycles deduplicate by
// sorted edge-id set (rotations and re-traversals count once), and the search
// halts at MaxCycles globally and MaxCycleLength per path. Live detection is
// an offline/maintenance operation; query paths read persisted loops through
// the cache instead.
func DetectLoops(loader GraphLoader, opts DetectOptions) ([]DetectedLoop, error) {
	timer := logging.StartTimer(logging.CategoryLoops, "DetectLoops")
	defer timer.Stop()

	nodes, err := loader.LoadNodes()
	if err != nil {
		return nil, loadErr("LoadNodes", err)
	}
	// Topology only. Spans are hydrated later, for retained cycles only.
	edges, err := loader.LoadEdges(false)
	if err != nil {
		return nil, loadErr("LoadEdges", err)
	}

	snap := BuildSnapshot(nodes, edges)
	cycles := detectCycles(snap, opts.MaxCycles, opts.MaxCycleLength)
	logging.Loops("DetectLoops: %d cycles from %d nodes / %d edges", len(cycles), len(snap.Nodes), len(snap.Edges))

	if len(cycles) == 0 {
		return nil, nil
	}

	// Hydrate evidence for edges inside retained cycles only.
	edgeSet := make(map[string]bool)
	var edgeIDs []string
	for _, cycle := range cycles {
		for _, id := range cycle {
			if !edgeSet[id] {
				edgeSet[id] = true
				edgeIDs = append(edgeIDs, id)
			}
		}
	}
	sort.Strings(edgeIDs)
	spans, err := loader.LoadSpans(edgeIDs)
	if err != nil {
		return nil, loadErr("LoadSpans", err)
	}

	loops := make([]DetectedLoop, 0, len(cycles))
	for _, cycle := range cycles {
		loops = append(loops, buildLoop(snap, cycle, spans))
	}

	// Shorter loops are more actionable; stable sort keeps discovery order
	// among equal lengths so two runs agree.
	sort.SliceStable(loops, func(i, j int) bool {
		return loops[i].EdgeCount() < loops[j].EdgeCount()
	})
	if opts.MaxLoops > 0 && len(loops) > opts.MaxLoops {
		loops = loops[:opts.MaxLoops]
	}
	return loops, nil
}

// detectCycles is the bounded depth-first search. It uses an explicit frame
// stack (no recursion) so path bookkeeping and the caps are visible contract,
// not an implementation accident.
func detectCycles(snap *Snapshot, maxCycles, maxCycleLength int) [][]string {
	if maxCycles <= 0 || maxCycleLength < 2 {
		return nil
	}

	type frame struct {
		node string
		next int // index into Outgoing[node]
	}

	var cycles [][]string
	seen := make(map[string]bool) // dedup key: sorted edge-id set

	for _, start := range snap.NodeOrder() {
		if len(cycles) >= maxCycles {
			break
		}

		stack := []frame{{node: start}}
		onPath := map[string]bool{start: true}
		var pathEdges []string

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			out := snap.Outgoing[top.node]

			if top.next >= len(out) {
				// Exhausted this node; backtrack.
				stack = stack[:len(stack)-1]
				delete(onPath, top.node)
				if len(pathEdges) > 0 {
					pathEdges = pathEdges[:len(pathEdges)-1]
				}
				continue
			}

			edgeID := out[top.next]
			top.next++

			edge := snap.Edges[edgeID]
			if !edge.HasEvidence() {
				// Hard gate: zero-evidence edges never participate in cycles.
				continue
			}

			target := edge.ToNode
			if target == start {
				// Closing the cycle. Single-edge self loops are not feedback.
				if len(pathEdges)+1 < 2 || len(pathEdges)+1 > maxCycleLength {
					continue
				}
				cycle := make([]string, len(pathEdges)+1)
				copy(cycle, pathEdges)
				cycle[len(cycle)-1] = edgeID

				key := cycleKey(cycle)
				if seen[key] {
					continue
				}
				seen[key] = true
				cycles = append(cycles, cycle)
				if len(cycles) >= maxCycles {
					return cycles
				}
				continue
			}

			if onPath[target] {
				continue // would close a cycle not rooted at start; found from its own start
			}
			if len(pathEdges)+1 >= maxCycleLength {
				continue // no room left for a closing edge
			}

			onPath[target] = true
			pathEdges = append(pathEdges, edgeID)
			stack = append(stack, frame{node: target})
		}
	}

	return cycles
}

// cycleKey builds the rotation-invariant dedup key.
func cycleKey(edgeIDs []string) string {
	sorted := make([]string, len(edgeIDs))
	copy(sorted, edgeIDs)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// buildLoop converts an edge cycle into a DetectedLoop. Node order is the
// from-node of each edge in traversal order; the polarity list mirrors edge
// order.
func buildLoop(snap *Snapshot, cycle []string, spans map[string][]EvidenceSpan) DetectedLoop {
	loop := DetectedLoop{
		LoopID:     uuid.NewString(),
		EdgeIDs:    make([]string, 0, len(cycle)),
		Nodes:      make([]string, 0, len(cycle)),
		NodeRefs:   make([]NodeRef, 0, len(cycle)),
		NodeLabels: make([]string, 0, len(cycle)),
		Polarities: make([]int, 0, len(cycle)),
	}

	for _, edgeID := range cycle {
		edge := snap.Edges[edgeID]
		node := snap.Nodes[edge.FromNode]

		loop.EdgeIDs = append(loop.EdgeIDs, edgeID)
		loop.Nodes = append(loop.Nodes, node.ID)
		loop.NodeRefs = append(loop.NodeRefs, NodeRef{Kind: node.RefKind, ID: node.RefID})
		loop.NodeLabels = append(loop.NodeLabels, node.Label)
		loop.Polarities = append(loop.Polarities, edge.Polarity)

		edgeSpans := spans[edgeID]
		if len(edgeSpans) > spansPerLoopEdge {
			edgeSpans = edgeSpans[:spansPerLoopEdge]
		}
		loop.EvidenceSpans = append(loop.EvidenceSpans, edgeSpans...)
	}

	loop.LoopType = ComputeLoopType(loop.Polarities)
	return loop
}
