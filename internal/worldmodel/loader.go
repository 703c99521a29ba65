package worldmodel

// GraphLoader is the narrow storage contract the engine consumes. The store
// package implements it over SQLite; tests implement it in memory.
//
// Contract: node/edge loads never include spans unless explicitly requested.
// Spans are the expensive path and are loaded only for edge sets already
// selected by a downstream filter. Any load error aborts the calling
// operation; the loader never returns a partial graph.
type GraphLoader interface {
	// LoadNodes returns the full mechanism node set.
	LoadNodes() ([]MechanismNode, error)

	// LoadEdges returns the full edge set. Evidence aggregates (SpanCount,
	// ChunkDiversity, HasDirectQuote) are always populated; the Spans slice
	// only when includeSpans is true.
	LoadEdges(includeSpans bool) ([]MechanismEdge, error)

	// LoadSpans hydrates evidence spans for the given edges only.
	LoadSpans(edgeIDs []string) (map[string][]EvidenceSpan, error)

	// LoadPersistedLoops returns loops mined offline and stored. Node order,
	// labels and polarities are re-resolved from the edge/node tables; the
	// loop type is recomputed from polarities, falling back to the stored
	// value only when the member edges can no longer be resolved.
	LoadPersistedLoops(maxLoops int) ([]DetectedLoop, error)

	// SaveDetectedLoops persists freshly mined loops (loop_id, loop_type,
	// ordered edge_ids only; nodes and evidence are never duplicated).
	SaveDetectedLoops(loops []DetectedLoop) error

	// Counts returns graph statistics.
	Counts() (GraphStats, error)
}

// EntityResolver resolves framework anchors. Implemented by framework.Index.
type EntityResolver interface {
	// Exists reports whether kind:id resolves to a framework entity.
	Exists(kind RefKind, id string) bool

	// Label returns the display label for kind:id.
	Label(kind RefKind, id string) (string, bool)

	// PillarOf walks the hierarchy (sub-value -> core value -> pillar) and
	// returns the owning pillar id.
	PillarOf(kind RefKind, id string) (string, bool)
}
