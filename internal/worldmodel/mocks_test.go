package worldmodel

import (
	"errors"
	"sort"
)

// fakeLoader is an in-memory GraphLoader for engine tests.
type fakeLoader struct {
	nodes     []MechanismNode
	edges     []MechanismEdge
	spans     map[string][]EvidenceSpan
	persisted []DetectedLoop

	failAll bool

	// call recording
	loadSpansCalls      [][]string
	loadEdgesSpanFlags  []bool
	persistedLoadsCount int
}

var errFakeStorage = errors.New("storage unavailable")

func (f *fakeLoader) LoadNodes() ([]MechanismNode, error) {
	if f.failAll {
		return nil, errFakeStorage
	}
	return f.nodes, nil
}

func (f *fakeLoader) LoadEdges(includeSpans bool) ([]MechanismEdge, error) {
	if f.failAll {
		return nil, errFakeStorage
	}
	f.loadEdgesSpanFlags = append(f.loadEdgesSpanFlags, includeSpans)
	edges := make([]MechanismEdge, len(f.edges))
	copy(edges, f.edges)
	if includeSpans {
		for i := range edges {
			edges[i].Spans = f.spans[edges[i].ID]
		}
	}
	return edges, nil
}

func (f *fakeLoader) LoadSpans(edgeIDs []string) (map[string][]EvidenceSpan, error) {
	if f.failAll {
		return nil, errFakeStorage
	}
	recorded := make([]string, len(edgeIDs))
	copy(recorded, edgeIDs)
	sort.Strings(recorded)
	f.loadSpansCalls = append(f.loadSpansCalls, recorded)

	out := make(map[string][]EvidenceSpan)
	for _, id := range edgeIDs {
		if spans, ok := f.spans[id]; ok {
			out[id] = spans
		}
	}
	return out, nil
}

func (f *fakeLoader) LoadPersistedLoops(maxLoops int) ([]DetectedLoop, error) {
	if f.failAll {
		return nil, errFakeStorage
	}
	f.persistedLoadsCount++
	loops := f.persisted
	if maxLoops > 0 && len(loops) > maxLoops {
		loops = loops[:maxLoops]
	}
	return loops, nil
}

func (f *fakeLoader) SaveDetectedLoops(loops []DetectedLoop) error {
	if f.failAll {
		return errFakeStorage
	}
	f.persisted = loops
	return nil
}

func (f *fakeLoader) Counts() (GraphStats, error) {
	if f.failAll {
		return GraphStats{}, errFakeStorage
	}
	spanCount := 0
	for _, s := range f.spans {
		spanCount += len(s)
	}
	return GraphStats{
		NodeCount: len(f.nodes),
		EdgeCount: len(f.edges),
		LoopCount: len(f.persisted),
		SpanCount: spanCount,
	}, nil
}

// fakeResolver is a map-backed EntityResolver.
type fakeResolver struct {
	labels  map[string]string // "kind:id" -> label
	pillars map[string]string // "kind:id" -> pillar id
}

func (r *fakeResolver) Exists(kind RefKind, id string) bool {
	_, ok := r.labels[string(kind)+":"+id]
	return ok
}

func (r *fakeResolver) Label(kind RefKind, id string) (string, bool) {
	label, ok := r.labels[string(kind)+":"+id]
	return label, ok
}

func (r *fakeResolver) PillarOf(kind RefKind, id string) (string, bool) {
	pillar, ok := r.pillars[string(kind)+":"+id]
	return pillar, ok
}

// evidencedEdge builds an edge that passes the evidence gate.
func evidencedEdge(id, from, to string, relation RelationType, polarity int) MechanismEdge {
	return MechanismEdge{
		ID:             id,
		FromNode:       from,
		ToNode:         to,
		Relation:       relation,
		Polarity:       polarity,
		Confidence:     ComputeEdgeConfidence(1, 1, false),
		SpanCount:      1,
		ChunkDiversity: 1,
	}
}

func subValueNode(id, refID, label string) MechanismNode {
	return MechanismNode{ID: id, RefKind: RefKindSubValue, RefID: refID, Label: label}
}
