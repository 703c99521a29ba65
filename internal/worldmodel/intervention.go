package worldmodel

import (
	"fmt"
	"sort"
	"strings"

	"mizan/internal/logging"
)

// PlanOptions caps the backward trace and sets the backfill floor.
type PlanOptions struct {
	MaxDepth int // backward trace depth limit
	MinSteps int // backfill from known loops below this step count
}

// spansPerCitation bounds citations per step or risk record.
const spansPerCitation = 2

// Planner builds intervention plans over a per-call snapshot. Stateless apart
// from its gate and resolver; safe for concurrent use.
type Planner struct {
	gate     *ClaimsGate
	resolver EntityResolver
}

// NewPlanner wires the claims gate and framework resolver.
func NewPlanner(gate *ClaimsGate, resolver EntityResolver) *Planner {
	return &Planner{gate: gate, resolver: resolver}
}

// leverage is a node reached by the backward trace, with the edge that
// connects it toward the goal and the BFS depth it was first reached at.
type leverage struct {
	nodeID  string
	viaEdge string
	depth   int
}

// ComputePlan resolves the goal, traces backward for leverage points, and
// assembles an ordered, cited, safety-gated plan. knownLoops (previously
// detected, may be nil) only feed the backfill path.
//
// A goal that cannot be resolved is non-fatal: the result is a minimal plan
// whose single leading indicator says so. Storage failures during span
// hydration abort with a GraphLoadError.
func (p *Planner) ComputePlan(snap *Snapshot, loader GraphLoader, goal string, detectedEntities []string, knownLoops []DetectedLoop, opts PlanOptions) (InterventionPlan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "ComputePlan")
	defer timer.Stop()

	plan := InterventionPlan{Goal: goal}

	goalID, ok := resolveGoal(snap, goal, detectedEntities)
	if !ok {
		logging.Planner("ComputePlan: %v (goal=%q)", ErrGoalNotFound, goal)
		plan.LeadingIndicators = []LeadingIndicator{{
			Label:  ErrGoalNotFound.Error(),
			Source: SourceNotSpecified,
		}}
		return plan, nil
	}
	logging.PlannerDebug("ComputePlan: goal %q resolved to node %s", goal, goalID)

	candidates := backwardTrace(snap, goalID, opts.MaxDepth)

	// Hydrate spans for the connecting edges only.
	edgeIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		edgeIDs = append(edgeIDs, c.viaEdge)
	}
	spans, err := loader.LoadSpans(dedupeSorted(edgeIDs))
	if err != nil {
		return InterventionPlan{}, loadErr("LoadSpans", err)
	}

	// Farthest-first: the emitted plan reads "start here, end at the goal".
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].depth > candidates[j].depth
	})

	seen := make(map[string]bool) // dedup by kind:ref_id
	planNodes := map[string]bool{goalID: true}
	for _, c := range candidates {
		step, ok := p.buildStep(snap, c.nodeID, spans[c.viaEdge], snap.Edges[c.viaEdge])
		if !ok {
			continue
		}
		key := string(step.TargetRefKind) + ":" + step.TargetRefID
		if seen[key] {
			continue
		}
		seen[key] = true
		planNodes[c.nodeID] = true
		plan.Steps = append(plan.Steps, step)
	}

	// The goal itself is the final step when it passes the gate.
	if step, ok := p.buildStep(snap, goalID, nil, MechanismEdge{}); ok {
		key := string(step.TargetRefKind) + ":" + step.TargetRefID
		if !seen[key] {
			seen[key] = true
			plan.Steps = append(plan.Steps, step)
		}
	}

	// Thin plans backfill from previously detected loops touching the goal.
	if opts.MinSteps > 0 && len(plan.Steps) < opts.MinSteps {
		p.backfillFromLoops(snap, &plan, goalID, knownLoops, seen, planNodes, opts.MinSteps)
	}

	plan.LeadingIndicators = leadingIndicators(snap, goalID)

	risks, err := p.collectRisks(snap, loader, planNodes)
	if err != nil {
		return InterventionPlan{}, err
	}
	plan.RiskOfImbalance = risks

	logging.Planner("ComputePlan: goal=%q steps=%d indicators=%d risks=%d",
		goal, len(plan.Steps), len(plan.LeadingIndicators), len(plan.RiskOfImbalance))
	return plan, nil
}

// resolveGoal finds the goal node: exact kind:ref_id match against detected
// entities first, then substring label matching in both directions. Node ids
// are visited in fixed order so resolution is deterministic.
func resolveGoal(snap *Snapshot, goal string, detectedEntities []string) (string, bool) {
	detected := make(map[string]bool, len(detectedEntities))
	for _, e := range detectedEntities {
		detected[e] = true
	}
	if len(detected) > 0 {
		for _, id := range snap.NodeOrder() {
			if detected[snap.Nodes[id].RefKey()] {
				return id, true
			}
		}
	}

	needle := strings.ToLower(strings.TrimSpace(goal))
	if needle == "" {
		return "", false
	}
	for _, id := range snap.NodeOrder() {
		label := strings.ToLower(snap.Nodes[id].Label)
		if label == "" {
			continue
		}
		if strings.Contains(label, needle) || strings.Contains(needle, label) {
			return id, true
		}
	}
	return "", false
}

// backwardTrace walks incoming edges outward from the goal, breadth-first so
// each node is recorded at its shortest distance. A node is visited at most
// once; the first depth wins.
func backwardTrace(snap *Snapshot, goalID string, maxDepth int) []leverage {
	visited := map[string]bool{goalID: true}
	frontier := []string{goalID}
	var found []leverage

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, nodeID := range frontier {
			for _, edgeID := range snap.Incoming[nodeID] {
				edge := snap.Edges[edgeID]
				src := edge.FromNode
				if visited[src] {
					continue
				}
				visited[src] = true
				found = append(found, leverage{nodeID: src, viaEdge: edgeID, depth: depth})
				next = append(next, src)
			}
		}
		frontier = next
	}
	return found
}

// buildStep turns a leverage node into a plan step, or reports false when the
// node fails the claims gate or lacks a framework anchor. Rejections are
// silent drops; text is never sanitized and re-admitted.
func (p *Planner) buildStep(snap *Snapshot, nodeID string, edgeSpans []EvidenceSpan, via MechanismEdge) (InterventionStep, bool) {
	node, ok := snap.Nodes[nodeID]
	if !ok {
		return InterventionStep{}, false
	}
	if node.RefKind == "" || node.RefID == "" {
		logging.PlannerDebug("buildStep: dropping anchorless node %s", nodeID)
		return InterventionStep{}, false
	}
	if !p.gate.ValidateNoMedicalClaims(node.Label) {
		return InterventionStep{}, false
	}

	step := InterventionStep{
		TargetRefKind:   node.RefKind,
		TargetRefID:     node.RefID,
		TargetLabel:     node.Label,
		MechanismReason: SourceNotSpecified,
	}

	if len(edgeSpans) > 0 {
		reason := edgeSpans[0].Quote
		if !p.gate.ValidateNoMedicalClaims(reason) {
			return InterventionStep{}, false
		}
		step.MechanismReason = reason
		for _, s := range edgeSpans {
			step.MechanismCitations = append(step.MechanismCitations, s.ChunkID)
			if len(step.MechanismCitations) == spansPerCitation {
				break
			}
		}
	}

	if via.ID != "" {
		if target, ok := snap.Nodes[via.ToNode]; ok {
			impact := fmt.Sprintf("%s %s", relationPhrase(via.Relation), target.Label)
			if p.gate.ValidateNoMedicalClaims(impact) {
				step.ExpectedImpacts = append(step.ExpectedImpacts, impact)
				step.ImpactCitations = append(step.ImpactCitations, step.MechanismCitations...)
			}
		}
	}

	return step, true
}

// backfillFromLoops adds steps from loops touching the goal until the plan
// reaches minSteps, deduplicated by framework anchor.
func (p *Planner) backfillFromLoops(snap *Snapshot, plan *InterventionPlan, goalID string, loops []DetectedLoop, seen map[string]bool, planNodes map[string]bool, minSteps int) {
	for _, loop := range loops {
		if len(plan.Steps) >= minSteps {
			return
		}
		if !loopTouches(loop, goalID) {
			continue
		}
		for _, nodeID := range loop.Nodes {
			if len(plan.Steps) >= minSteps {
				return
			}
			if nodeID == goalID {
				continue
			}
			step, ok := p.buildStep(snap, nodeID, nil, MechanismEdge{})
			if !ok {
				continue
			}
			key := string(step.TargetRefKind) + ":" + step.TargetRefID
			if seen[key] {
				continue
			}
			seen[key] = true
			planNodes[nodeID] = true
			step.ExpectedImpacts = append(step.ExpectedImpacts,
				fmt.Sprintf("part of a %s feedback loop with the goal", loop.LoopType))
			plan.Steps = append(plan.Steps, step)
			logging.PlannerDebug("backfill: added %s from loop %s", nodeID, loop.LoopID)
		}
	}
}

func loopTouches(loop DetectedLoop, nodeID string) bool {
	for _, n := range loop.Nodes {
		if n == nodeID {
			return true
		}
	}
	return false
}

// leadingIndicators emits indicators only for nodes connected to the goal by
// an incoming CONDITIONAL_ON edge, tagged as framework-sourced. With none, a
// single unspecified placeholder is emitted; indicators are never fabricated.
func leadingIndicators(snap *Snapshot, goalID string) []LeadingIndicator {
	var out []LeadingIndicator
	for _, edgeID := range snap.Incoming[goalID] {
		edge := snap.Edges[edgeID]
		if edge.Relation != RelationConditionalOn {
			continue
		}
		if src, ok := snap.Nodes[edge.FromNode]; ok && src.Label != "" {
			out = append(out, LeadingIndicator{Label: src.Label, Source: SourceFramework})
		}
	}
	if len(out) == 0 {
		out = []LeadingIndicator{{Label: SourceNotSpecified, Source: SourceNotSpecified}}
	}
	return out
}

// collectRisks scans negative INHIBITS/TENSION_WITH edges touching any plan
// node, naming the affected pillar and citing up to two spans per edge.
func (p *Planner) collectRisks(snap *Snapshot, loader GraphLoader, planNodes map[string]bool) ([]RiskNote, error) {
	var riskEdges []string
	for _, edgeID := range sortedEdgeIDs(snap) {
		edge := snap.Edges[edgeID]
		if edge.Polarity >= 0 {
			continue
		}
		if edge.Relation != RelationInhibits && edge.Relation != RelationTensionWith {
			continue
		}
		if !planNodes[edge.FromNode] && !planNodes[edge.ToNode] {
			continue
		}
		riskEdges = append(riskEdges, edgeID)
	}
	if len(riskEdges) == 0 {
		return nil, nil
	}

	spans, err := loader.LoadSpans(riskEdges)
	if err != nil {
		return nil, loadErr("LoadSpans", err)
	}

	var risks []RiskNote
	for _, edgeID := range riskEdges {
		edge := snap.Edges[edgeID]
		from := snap.Nodes[edge.FromNode]
		to := snap.Nodes[edge.ToNode]

		pillar := SourceNotSpecified
		if id, ok := p.resolver.PillarOf(from.RefKind, from.RefID); ok {
			pillar = id
		} else if id, ok := p.resolver.PillarOf(to.RefKind, to.RefID); ok {
			pillar = id
		}

		note := RiskNote{
			Pillar:    pillar,
			Relation:  edge.Relation,
			Statement: fmt.Sprintf("%s %s %s", from.Label, relationPhrase(edge.Relation), to.Label),
		}
		for _, s := range spans[edgeID] {
			note.Citations = append(note.Citations, s.ChunkID)
			if len(note.Citations) == spansPerCitation {
				break
			}
		}
		risks = append(risks, note)
	}
	return risks, nil
}

// ValidateInterventionPlan re-checks every step against the claims gate and
// confirms framework anchors. The returned violations are advisory: callers
// decide whether to reject or re-plan; nothing is auto-corrected here.
func (p *Planner) ValidateInterventionPlan(plan InterventionPlan) []string {
	var issues []string
	for i, step := range plan.Steps {
		if step.TargetRefKind == "" || step.TargetRefID == "" {
			issues = append(issues, fmt.Sprintf("step %d (%q): missing framework anchor", i, step.TargetLabel))
		}
		if !p.gate.ValidateNoMedicalClaims(step.TargetLabel) {
			issues = append(issues, fmt.Sprintf("step %d (%q): label fails the medical claims gate", i, step.TargetLabel))
		}
		if step.MechanismReason != SourceNotSpecified && !p.gate.ValidateNoMedicalClaims(step.MechanismReason) {
			issues = append(issues, fmt.Sprintf("step %d (%q): mechanism reason fails the medical claims gate", i, step.TargetLabel))
		}
	}
	return issues
}

// relationPhrase renders a relation for plan text.
func relationPhrase(r RelationType) string {
	switch r {
	case RelationEnables:
		return "enables"
	case RelationReinforces:
		return "reinforces"
	case RelationComplements:
		return "complements"
	case RelationConditionalOn:
		return "is conditional on"
	case RelationInhibits:
		return "inhibits"
	case RelationTensionWith:
		return "is in tension with"
	case RelationResolvesWith:
		return "resolves with"
	}
	return strings.ToLower(string(r))
}

func sortedEdgeIDs(snap *Snapshot) []string {
	ids := make([]string, 0, len(snap.Edges))
	for id := range snap.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
