// Package worldmodel implements the causal reasoning engine behind mizan's
// wellbeing answers: a signed mechanism graph anchored to framework entities,
// bounded feedback-loop detection, evidence-weighted confidence, relevance
// ranking, safety-gated intervention planning, and damped counterfactual
// propagation.
//
// The engine computes over immutable per-call snapshots; the only shared
// mutable state is the LoopCache. All potentially unbounded searches carry
// hard caps so worst-case latency never depends on caller cancellation.
package worldmodel

// RefKind identifies what a mechanism node is anchored to.
type RefKind string

const (
	RefKindPillar    RefKind = "pillar"
	RefKindCoreValue RefKind = "core_value"
	RefKindSubValue  RefKind = "sub_value"
	RefKindMechanism RefKind = "mechanism"
	RefKindOutcome   RefKind = "outcome"
)

// IsValid reports whether k is a known ref kind.
func (k RefKind) IsValid() bool {
	switch k {
	case RefKindPillar, RefKindCoreValue, RefKindSubValue, RefKindMechanism, RefKindOutcome:
		return true
	}
	return false
}

// RequiresAnchor reports whether nodes of this kind must resolve to an
// existing framework entity. Mechanism and outcome nodes are abstract but
// still require a stable label.
func (k RefKind) RequiresAnchor() bool {
	switch k {
	case RefKindPillar, RefKindCoreValue, RefKindSubValue:
		return true
	case RefKindMechanism, RefKindOutcome:
		return false
	}
	return false
}

// RelationType is the typed causal relation an edge carries.
type RelationType string

const (
	RelationEnables       RelationType = "ENABLES"
	RelationReinforces    RelationType = "REINFORCES"
	RelationComplements   RelationType = "COMPLEMENTS"
	RelationConditionalOn RelationType = "CONDITIONAL_ON"
	RelationInhibits      RelationType = "INHIBITS"
	RelationTensionWith   RelationType = "TENSION_WITH"
	RelationResolvesWith  RelationType = "RESOLVES_WITH"
)

// IsValid reports whether r is a known relation type.
func (r RelationType) IsValid() bool {
	switch r {
	case RelationEnables, RelationReinforces, RelationComplements,
		RelationConditionalOn, RelationInhibits, RelationTensionWith,
		RelationResolvesWith:
		return true
	}
	return false
}

// DefaultPolarity returns the semantic default sign for the relation.
// Evidence may override it at mining time; consumers trust the stored sign.
func (r RelationType) DefaultPolarity() int {
	switch r {
	case RelationInhibits, RelationTensionWith:
		return -1
	case RelationEnables, RelationReinforces, RelationComplements,
		RelationConditionalOn, RelationResolvesWith:
		return +1
	}
	return +1
}

// MechanismNode is a node in the causal overlay graph. Nodes are created by
// offline mining and are read-only at query time.
type MechanismNode struct {
	ID      string  `json:"id"`
	RefKind RefKind `json:"ref_kind"`
	RefID   string  `json:"ref_id"`
	Label   string  `json:"label"`
}

// RefKey returns the "kind:ref_id" anchor key for the node.
func (n MechanismNode) RefKey() string {
	return string(n.RefKind) + ":" + n.RefID
}

// EvidenceSpan is a cited excerpt grounding an edge's existence.
type EvidenceSpan struct {
	ID      string `json:"id"`
	EdgeID  string `json:"edge_id"`
	ChunkID string `json:"chunk_id"`
	Quote   string `json:"quote"`
	Direct  bool   `json:"direct"` // verbatim quote vs multi-span entailment
}

// MechanismEdge is a signed causal edge between two mechanism nodes.
//
// SpanCount, ChunkDiversity and HasDirectQuote are cheap aggregates always
// populated on load; Spans itself is hydrated lazily, only for edges already
// selected by a downstream filter (loops, plan steps, risks). Never hydrate
// spans for the full edge set before cycle selection.
type MechanismEdge struct {
	ID         string       `json:"id"`
	FromNode   string       `json:"from_node"`
	ToNode     string       `json:"to_node"`
	Relation   RelationType `json:"relation_type"`
	Polarity   int          `json:"polarity"` // -1 or +1
	Confidence float64      `json:"confidence"`

	SpanCount      int  `json:"span_count"`
	ChunkDiversity int  `json:"chunk_diversity"`
	HasDirectQuote bool `json:"has_direct_quote"`

	Spans []EvidenceSpan `json:"evidence_spans,omitempty"`
}

// HasEvidence reports whether the edge passes the hard evidence gate.
// Zero-evidence edges are excluded from cycle detection and citation.
func (e MechanismEdge) HasEvidence() bool {
	return e.SpanCount > 0
}

// LoopType classifies a feedback loop by its sign product.
type LoopType string

const (
	LoopReinforcing LoopType = "reinforcing"
	LoopBalancing   LoopType = "balancing"
)

// NodeRef is the framework anchor of one loop node.
type NodeRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

// Key returns the "kind:id" form used for entity matching.
func (r NodeRef) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// DetectedLoop is an ordered causal cycle with its classification and the
// evidence spans of its member edges.
//
// EdgeIDs, Polarities and Nodes share the same traversal order;
// len(EdgeIDs) == len(Polarities) >= 2. LoopType is always recomputable from
// Polarities; stored values are trusted only when recomputation is impossible.
type DetectedLoop struct {
	LoopID        string         `json:"loop_id"`
	EdgeIDs       []string       `json:"edge_ids"`
	Nodes         []string       `json:"nodes"`
	NodeRefs      []NodeRef      `json:"node_refs"`
	NodeLabels    []string       `json:"node_labels"`
	Polarities    []int          `json:"polarities"`
	LoopType      LoopType       `json:"loop_type"`
	EvidenceSpans []EvidenceSpan `json:"evidence_spans,omitempty"`
}

// EdgeCount returns the loop length in edges. Shorter loops are considered
// more actionable.
func (l DetectedLoop) EdgeCount() int {
	return len(l.EdgeIDs)
}

// SourceFramework marks data derived from framework links; SourceNotSpecified
// marks placeholders that must never be mistaken for evidence.
const (
	SourceFramework    = "framework"
	SourceNotSpecified = "not specified"
)

// InterventionStep is one actionable step in an intervention plan. Every step
// carries a framework anchor; anchorless steps are dropped, never invented.
type InterventionStep struct {
	TargetRefKind      RefKind  `json:"target_node_ref_kind"`
	TargetRefID        string   `json:"target_node_ref_id"`
	TargetLabel        string   `json:"target_node_label"`
	MechanismReason    string   `json:"mechanism_reason"` // quoted text or "not specified"
	MechanismCitations []string `json:"mechanism_citations"`
	ExpectedImpacts    []string `json:"expected_impacts"`
	ImpactCitations    []string `json:"impact_citations"`
}

// LeadingIndicator is an observable signal for tracking progress toward the
// goal. Indicators are taken from CONDITIONAL_ON edges or explicitly marked
// as unspecified; they are never fabricated.
type LeadingIndicator struct {
	Label  string `json:"label"`
	Source string `json:"source"` // SourceFramework or SourceNotSpecified
}

// RiskNote records a negative-polarity tension touching the plan.
type RiskNote struct {
	Pillar    string       `json:"pillar"`
	Relation  RelationType `json:"relation_type"`
	Statement string       `json:"statement"`
	Citations []string     `json:"citations"` // up to 2 evidence spans
}

// InterventionPlan is an ordered, evidence-cited, safety-gated plan toward a
// goal node. Steps run nearest-effect-last: the first step is the farthest
// leverage point, the last touches the goal itself.
type InterventionPlan struct {
	Goal              string             `json:"goal"`
	Steps             []InterventionStep `json:"steps"`
	LeadingIndicators []LeadingIndicator `json:"leading_indicators"`
	RiskOfImbalance   []RiskNote         `json:"risk_of_imbalance"`
}

// SimulationDisclaimer is the fixed label carried by every SimulationResult.
// The simulator is an explanatory approximation, never a quantitative
// forecast.
const SimulationDisclaimer = "approximate simulation based on framework links"

// PropagationStep is one entry in the ordered propagation log.
type PropagationStep struct {
	Step   int     `json:"step"`
	NodeID string  `json:"node_id"`
	Delta  float64 `json:"delta"`
	Value  float64 `json:"value"`
}

// SimulationResult captures a damped counterfactual propagation. All node
// values stay in [0,1] at all times; FinalState lists only nodes whose value
// moved beyond the threshold.
type SimulationResult struct {
	InitialState     map[string]float64 `json:"initial_state"`
	FinalState       map[string]float64 `json:"final_state"`
	PropagationSteps []PropagationStep  `json:"propagation_steps"`
	Label            string             `json:"label"`
}

// UsedEdge is one provenance record in a world model plan: the bridge
// artifact handed to the answer-composition layer for citation.
type UsedEdge struct {
	LoopID string         `json:"loop_id"`
	EdgeID string         `json:"edge_id"`
	Spans  []EvidenceSpan `json:"spans"` // up to 2 per edge
}

// WorldModelPlan is the greedy loop+intervention selection maximizing pillar
// coverage, with full edge provenance.
type WorldModelPlan struct {
	ID             string             `json:"id"`
	Loops          []DetectedLoop     `json:"loops"`
	Interventions  []InterventionPlan `json:"interventions"`
	PillarsCovered []string           `json:"pillars_covered"`
	UsedEdges      []UsedEdge         `json:"used_edges"`
}

// GraphStats are the cached count statistics for the mechanism graph.
type GraphStats struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
	LoopCount int `json:"loop_count"`
	SpanCount int `json:"span_count"`
}
