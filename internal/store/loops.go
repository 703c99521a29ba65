package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"mizan/internal/logging"
	"mizan/internal/worldmodel"
)

// SaveDetectedLoops replaces the persisted loop set with a freshly mined one.
// Only loop_id, loop_type and the ordered edge id list are stored; nodes,
// labels and polarities are re-resolved from the graph tables on load so a
// remined graph never serves stale loop membership.
func (s *Store) SaveDetectedLoops(loops []worldmodel.DetectedLoop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryStore, "SaveDetectedLoops")
	defer timer.Stop()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM detected_loops"); err != nil {
		return fmt.Errorf("failed to clear detected loops: %w", err)
	}

	for _, loop := range loops {
		edgeIDs, err := json.Marshal(loop.EdgeIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal edge ids for loop %s: %w", loop.LoopID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO detected_loops (loop_id, loop_type, edge_ids)
			VALUES (?, ?, ?)`,
			loop.LoopID, string(loop.LoopType), string(edgeIDs))
		if err != nil {
			return fmt.Errorf("failed to insert loop %s: %w", loop.LoopID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loops: %w", err)
	}
	logging.Store("Persisted %d detected loops", len(loops))
	return nil
}

// LoadPersistedLoops returns up to maxLoops stored loops, shortest first,
// with membership re-resolved against the current graph. The loop type is
// recomputed from the resolved polarities; the stored type is trusted only
// when a member edge no longer resolves. Loops shrunk below two edges by
// graph edits are dropped.
func (s *Store) LoadPersistedLoops(maxLoops int) ([]worldmodel.DetectedLoop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timer := logging.StartTimer(logging.CategoryStore, "LoadPersistedLoops")
	defer timer.Stop()

	rows, err := s.db.Query(`
		SELECT loop_id, loop_type, edge_ids
		FROM detected_loops
		ORDER BY loop_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load detected loops: %w", err)
	}
	defer rows.Close()

	type storedLoop struct {
		id       string
		loopType string
		edgeIDs  []string
	}
	var stored []storedLoop
	for rows.Next() {
		var sl storedLoop
		var rawEdges string
		if err := rows.Scan(&sl.id, &sl.loopType, &rawEdges); err != nil {
			return nil, fmt.Errorf("failed to scan loop: %w", err)
		}
		if err := json.Unmarshal([]byte(rawEdges), &sl.edgeIDs); err != nil {
			logging.Get(logging.CategoryStore).Warn("Loop %s has malformed edge_ids, skipping: %v", sl.id, err)
			continue
		}
		stored = append(stored, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	edges, nodes, err := s.graphByIDLocked()
	if err != nil {
		return nil, err
	}

	var loops []worldmodel.DetectedLoop
	for _, sl := range stored {
		loop, ok := s.resolveLoopLocked(sl.id, sl.loopType, sl.edgeIDs, edges, nodes)
		if !ok {
			continue
		}
		loops = append(loops, loop)
	}

	// Shortest loops first; they are the most actionable.
	sort.SliceStable(loops, func(i, j int) bool {
		return loops[i].EdgeCount() < loops[j].EdgeCount()
	})

	if maxLoops > 0 && len(loops) > maxLoops {
		loops = loops[:maxLoops]
	}
	return loops, nil
}

// resolveLoopLocked rebuilds one loop from the current graph. A loop whose
// member edges all resolve gets its node order, labels, polarities and spans
// rebuilt and its type recomputed. If any edge is gone the loop survives with
// the stored type and whatever members still resolve, provided at least two
// edges remain.
func (s *Store) resolveLoopLocked(id, storedType string, edgeIDs []string,
	edges map[string]worldmodel.MechanismEdge, nodes map[string]worldmodel.MechanismNode) (worldmodel.DetectedLoop, bool) {

	loop := worldmodel.DetectedLoop{LoopID: id}
	allResolved := true

	for _, edgeID := range edgeIDs {
		edge, ok := edges[edgeID]
		if !ok {
			allResolved = false
			continue
		}
		from, ok := nodes[edge.FromNode]
		if !ok {
			allResolved = false
			continue
		}
		loop.EdgeIDs = append(loop.EdgeIDs, edgeID)
		loop.Nodes = append(loop.Nodes, from.ID)
		loop.NodeRefs = append(loop.NodeRefs, worldmodel.NodeRef{Kind: from.RefKind, ID: from.RefID})
		loop.NodeLabels = append(loop.NodeLabels, from.Label)
		loop.Polarities = append(loop.Polarities, edge.Polarity)
	}

	if len(loop.EdgeIDs) < 2 {
		logging.Get(logging.CategoryStore).Warn("Loop %s no longer resolves to a cycle, dropping", id)
		return worldmodel.DetectedLoop{}, false
	}

	if allResolved {
		loop.LoopType = worldmodel.ComputeLoopType(loop.Polarities)
	} else {
		loop.LoopType = worldmodel.LoopType(storedType)
	}

	spans, err := s.loadSpansLocked(loop.EdgeIDs)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to hydrate spans for loop %s: %v", id, err)
	} else {
		for _, edgeID := range loop.EdgeIDs {
			edgeSpans := spans[edgeID]
			if len(edgeSpans) > 2 {
				edgeSpans = edgeSpans[:2]
			}
			loop.EvidenceSpans = append(loop.EvidenceSpans, edgeSpans...)
		}
	}
	return loop, true
}

// graphByIDLocked loads edges (aggregates only) and nodes into lookup maps.
func (s *Store) graphByIDLocked() (map[string]worldmodel.MechanismEdge, map[string]worldmodel.MechanismNode, error) {
	edges := make(map[string]worldmodel.MechanismEdge)
	rows, err := s.db.Query(`
		SELECT id, from_node, to_node, relation_type, polarity, confidence
		FROM mechanism_edges`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e worldmodel.MechanismEdge
		var relation string
		if err := rows.Scan(&e.ID, &e.FromNode, &e.ToNode, &relation, &e.Polarity, &e.Confidence); err != nil {
			return nil, nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Relation = worldmodel.RelationType(relation)
		edges[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	nodes := make(map[string]worldmodel.MechanismNode)
	nodeRows, err := s.db.Query(`SELECT id, ref_kind, ref_id, label FROM mechanism_nodes`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var n worldmodel.MechanismNode
		var kind string
		if err := nodeRows.Scan(&n.ID, &kind, &n.RefID, &n.Label); err != nil {
			return nil, nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.RefKind = worldmodel.RefKind(kind)
		nodes[n.ID] = n
	}
	return edges, nodes, nodeRows.Err()
}
