package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mizan/internal/logging"
	"mizan/internal/worldmodel"
)

// LoadNodes returns the full mechanism node set, ordered by id.
func (s *Store) LoadNodes() ([]worldmodel.MechanismNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, ref_kind, ref_id, label
		FROM mechanism_nodes
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	var nodes []worldmodel.MechanismNode
	for rows.Next() {
		var n worldmodel.MechanismNode
		var kind string
		if err := rows.Scan(&n.ID, &kind, &n.RefID, &n.Label); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.RefKind = worldmodel.RefKind(kind)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// LoadEdges returns the full edge set with evidence aggregates computed in
// SQL. The span slice itself is hydrated only when includeSpans is true;
// query paths keep it false and hydrate via LoadSpans after selection.
func (s *Store) LoadEdges(includeSpans bool) ([]worldmodel.MechanismEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timer := logging.StartTimer(logging.CategoryStore, "LoadEdges")
	defer timer.Stop()

	rows, err := s.db.Query(`
		SELECT e.id, e.from_node, e.to_node, e.relation_type, e.polarity, e.confidence,
		       COUNT(s.id),
		       COUNT(DISTINCT s.chunk_id),
		       COALESCE(MAX(s.is_direct), 0)
		FROM mechanism_edges e
		LEFT JOIN evidence_spans s ON s.edge_id = e.id
		GROUP BY e.id
		ORDER BY e.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	var edges []worldmodel.MechanismEdge
	for rows.Next() {
		var e worldmodel.MechanismEdge
		var relation string
		var direct int
		if err := rows.Scan(&e.ID, &e.FromNode, &e.ToNode, &relation, &e.Polarity,
			&e.Confidence, &e.SpanCount, &e.ChunkDiversity, &direct); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Relation = worldmodel.RelationType(relation)
		e.HasDirectQuote = direct != 0
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if includeSpans && len(edges) > 0 {
		ids := make([]string, len(edges))
		for i, e := range edges {
			ids[i] = e.ID
		}
		spans, err := s.loadSpansLocked(ids)
		if err != nil {
			return nil, err
		}
		for i := range edges {
			edges[i].Spans = spans[edges[i].ID]
		}
	}
	return edges, nil
}

// LoadSpans hydrates evidence spans for the given edges only.
func (s *Store) LoadSpans(edgeIDs []string) (map[string][]worldmodel.EvidenceSpan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSpansLocked(edgeIDs)
}

func (s *Store) loadSpansLocked(edgeIDs []string) (map[string][]worldmodel.EvidenceSpan, error) {
	result := make(map[string][]worldmodel.EvidenceSpan, len(edgeIDs))
	if len(edgeIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(edgeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(edgeIDs))
	for i, id := range edgeIDs {
		args[i] = id
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT id, edge_id, chunk_id, quote, is_direct
		FROM evidence_spans
		WHERE edge_id IN (%s)
		ORDER BY edge_id, id`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load spans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var span worldmodel.EvidenceSpan
		var direct int
		if err := rows.Scan(&span.ID, &span.EdgeID, &span.ChunkID, &span.Quote, &direct); err != nil {
			return nil, fmt.Errorf("failed to scan span: %w", err)
		}
		span.Direct = direct != 0
		result[span.EdgeID] = append(result[span.EdgeID], span)
	}
	return result, rows.Err()
}

// Counts returns graph statistics in a single pass.
func (s *Store) Counts() (worldmodel.GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats worldmodel.GraphStats
	err := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM mechanism_nodes),
			(SELECT COUNT(*) FROM mechanism_edges),
			(SELECT COUNT(*) FROM detected_loops),
			(SELECT COUNT(*) FROM evidence_spans)`).
		Scan(&stats.NodeCount, &stats.EdgeCount, &stats.LoopCount, &stats.SpanCount)
	if err != nil {
		return worldmodel.GraphStats{}, fmt.Errorf("failed to count graph: %w", err)
	}
	return stats, nil
}

// InsertNode validates and stores a mechanism node. Anchored kinds must
// resolve to an existing framework entity; abstract kinds (mechanism,
// outcome) must carry a non-empty label. Invalid nodes are rejected, never
// coerced.
func (s *Store) InsertNode(n worldmodel.MechanismNode) error {
	if !n.RefKind.IsValid() {
		return fmt.Errorf("node %s: invalid ref_kind %q", n.ID, n.RefKind)
	}
	if !n.RefKind.RequiresAnchor() && n.Label == "" {
		return fmt.Errorf("node %s: %s nodes require a label", n.ID, n.RefKind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.RefKind.RequiresAnchor() {
		ok, err := s.anchorExistsLocked(n.RefKind, n.RefID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("node %s: anchor %s does not resolve", n.ID, n.RefKey())
		}
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO mechanism_nodes (id, ref_kind, ref_id, label)
		VALUES (?, ?, ?, ?)`,
		n.ID, string(n.RefKind), n.RefID, n.Label)
	if err != nil {
		return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
	}
	return nil
}

// InsertEdge validates and stores an edge with its evidence spans in one
// transaction. A polarity contradicting the relation default is only
// accepted when the edge carries evidence.
func (s *Store) InsertEdge(e worldmodel.MechanismEdge, spans []worldmodel.EvidenceSpan) error {
	if !e.Relation.IsValid() {
		return fmt.Errorf("edge %s: invalid relation %q", e.ID, e.Relation)
	}
	if e.Polarity != 1 && e.Polarity != -1 {
		return fmt.Errorf("edge %s: polarity must be -1 or +1, got %d", e.ID, e.Polarity)
	}
	if e.Polarity != e.Relation.DefaultPolarity() && len(spans) == 0 {
		return fmt.Errorf("edge %s: polarity override of %s requires evidence", e.ID, e.Relation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, nodeID := range []string{e.FromNode, e.ToNode} {
		var id string
		if err := s.db.QueryRow("SELECT id FROM mechanism_nodes WHERE id = ?", nodeID).Scan(&id); err != nil {
			return fmt.Errorf("edge %s: endpoint %s does not exist", e.ID, nodeID)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO mechanism_edges (id, from_node, to_node, relation_type, polarity, confidence)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.FromNode, e.ToNode, string(e.Relation), e.Polarity, e.Confidence)
	if err != nil {
		return fmt.Errorf("failed to insert edge %s: %w", e.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM evidence_spans WHERE edge_id = ?", e.ID); err != nil {
		return fmt.Errorf("failed to clear spans for edge %s: %w", e.ID, err)
	}
	for _, span := range spans {
		direct := 0
		if span.Direct {
			direct = 1
		}
		_, err := tx.Exec(`
			INSERT INTO evidence_spans (id, edge_id, chunk_id, quote, is_direct)
			VALUES (?, ?, ?, ?, ?)`,
			span.ID, e.ID, span.ChunkID, span.Quote, direct)
		if err != nil {
			return fmt.Errorf("failed to insert span %s: %w", span.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edge %s: %w", e.ID, err)
	}
	logging.StoreDebug("Inserted edge %s with %d spans", e.ID, len(spans))
	return nil
}

func (s *Store) anchorExistsLocked(kind worldmodel.RefKind, id string) (bool, error) {
	var table string
	switch kind {
	case worldmodel.RefKindPillar:
		table = "pillars"
	case worldmodel.RefKindCoreValue:
		table = "core_values"
	case worldmodel.RefKindSubValue:
		table = "sub_values"
	default:
		return false, nil
	}

	var found string
	err := s.db.QueryRow(fmt.Sprintf("SELECT id FROM %s WHERE id = ?", table), id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("failed to resolve anchor %s:%s: %w", kind, id, err)
}
