package worldmodel

import (
	"sort"

	"mizan/internal/logging"
)

// Snapshot is an immutable in-memory view of the mechanism graph, loaded once
// per top-level operation. Concurrent callers never share one: each call
// loads its own, so nothing here needs locking.
type Snapshot struct {
	Nodes map[string]MechanismNode
	Edges map[string]MechanismEdge

	// Adjacency lists hold edge ids sorted lexicographically so every
	// traversal visits edges in a fixed order.
	Outgoing map[string][]string
	Incoming map[string][]string

	// nodeOrder is the deterministic visitation order (sorted node ids).
	nodeOrder []string
}

// BuildSnapshot indexes nodes and edges for traversal. Edges referencing
// unknown endpoints are dropped with a log line rather than poisoning the
// adjacency lists.
func BuildSnapshot(nodes []MechanismNode, edges []MechanismEdge) *Snapshot {
	snap := &Snapshot{
		Nodes:    make(map[string]MechanismNode, len(nodes)),
		Edges:    make(map[string]MechanismEdge, len(edges)),
		Outgoing: make(map[string][]string),
		Incoming: make(map[string][]string),
	}

	for _, n := range nodes {
		snap.Nodes[n.ID] = n
		snap.nodeOrder = append(snap.nodeOrder, n.ID)
	}
	sort.Strings(snap.nodeOrder)

	for _, e := range edges {
		if _, ok := snap.Nodes[e.FromNode]; !ok {
			logging.GraphDebug("Snapshot: dropping edge %s (unknown from_node %s)", e.ID, e.FromNode)
			continue
		}
		if _, ok := snap.Nodes[e.ToNode]; !ok {
			logging.GraphDebug("Snapshot: dropping edge %s (unknown to_node %s)", e.ID, e.ToNode)
			continue
		}
		snap.Edges[e.ID] = e
		snap.Outgoing[e.FromNode] = append(snap.Outgoing[e.FromNode], e.ID)
		snap.Incoming[e.ToNode] = append(snap.Incoming[e.ToNode], e.ID)
	}

	for _, adj := range []map[string][]string{snap.Outgoing, snap.Incoming} {
		for _, ids := range adj {
			sort.Strings(ids)
		}
	}

	return snap
}

// NodeOrder returns node ids in the fixed visitation order.
func (s *Snapshot) NodeOrder() []string {
	return s.nodeOrder
}

// NodeRef returns the framework anchor of a node.
func (s *Snapshot) NodeRef(nodeID string) (NodeRef, bool) {
	n, ok := s.Nodes[nodeID]
	if !ok {
		return NodeRef{}, false
	}
	return NodeRef{Kind: n.RefKind, ID: n.RefID}, true
}
