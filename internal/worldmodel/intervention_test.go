package worldmodel

import (
	"strings"
	"testing"
)

// planFixture is a small graph around a "patience" goal: a direct upstream
// with evidence, a second-hop leverage node, a node whose label carries a
// medical claim, a CONDITIONAL_ON indicator source, and a negative tension.
func planFixture() (*Snapshot, *fakeLoader, *fakeResolver) {
	nodes := []MechanismNode{
		subValueNode("n-goal", "sv-goal", "patience"),
		subValueNode("n-a", "sv-a", "gratitude practice"),
		subValueNode("n-bad", "sv-bad", "weekly therapy session"),
		subValueNode("n-c", "sv-c", "morning reflection"),
		subValueNode("n-cond", "sv-cond", "daily prayer consistency"),
		subValueNode("n-risk", "sv-risk", "overwork"),
	}
	edges := []MechanismEdge{
		evidencedEdge("e-a", "n-a", "n-goal", RelationReinforces, 1),
		evidencedEdge("e-bad", "n-bad", "n-goal", RelationEnables, 1),
		evidencedEdge("e-c", "n-c", "n-a", RelationEnables, 1),
		evidencedEdge("e-cond", "n-cond", "n-goal", RelationConditionalOn, 1),
		evidencedEdge("e-risk", "n-risk", "n-goal", RelationInhibits, -1),
	}
	loader := &fakeLoader{
		nodes: nodes,
		edges: edges,
		spans: map[string][]EvidenceSpan{
			"e-a":    {{ID: "e-a-s0", EdgeID: "e-a", ChunkID: "c-a", Quote: "gratitude builds patience"}},
			"e-c":    {{ID: "e-c-s0", EdgeID: "e-c", ChunkID: "c-c", Quote: "reflection enables gratitude"}},
			"e-risk": {{ID: "e-risk-s0", EdgeID: "e-risk", ChunkID: "c-risk", Quote: "overwork erodes patience"}},
		},
	}
	resolver := &fakeResolver{
		labels: map[string]string{
			"sub_value:sv-goal": "patience",
			"sub_value:sv-a":    "gratitude practice",
			"sub_value:sv-c":    "morning reflection",
			"sub_value:sv-cond": "daily prayer consistency",
			"sub_value:sv-risk": "overwork",
		},
		pillars: map[string]string{
			"sub_value:sv-goal": "p-spiritual",
			"sub_value:sv-a":    "p-spiritual",
			"sub_value:sv-c":    "p-spiritual",
			"sub_value:sv-cond": "p-spiritual",
			"sub_value:sv-risk": "p-body",
		},
	}
	return BuildSnapshot(nodes, loader.edges), loader, resolver
}

func stepAnchors(plan InterventionPlan) []string {
	out := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		out = append(out, s.TargetRefID)
	}
	return out
}

func TestComputePlanOrdersFarthestFirst(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan, err := planner.ComputePlan(snap, loader, "patience", nil, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}

	anchors := stepAnchors(plan)
	if len(anchors) < 3 {
		t.Fatalf("plan too thin: %v", anchors)
	}
	if anchors[0] != "sv-c" {
		t.Fatalf("first step must be the farthest leverage point, got %v", anchors)
	}
	if anchors[len(anchors)-1] != "sv-goal" {
		t.Fatalf("last step must touch the goal, got %v", anchors)
	}
}

func TestComputePlanDropsMedicalClaimSteps(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan, err := planner.ComputePlan(snap, loader, "patience", nil, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}

	for _, step := range plan.Steps {
		if step.TargetRefID == "sv-bad" {
			t.Fatal("step with a medical-claim label survived the gate")
		}
		if strings.Contains(step.TargetLabel, "therapy session") {
			t.Fatalf("forbidden text reached the plan: %q", step.TargetLabel)
		}
	}
	// The drop is silent, not an error and not a rewrite.
	if issues := planner.ValidateInterventionPlan(plan); len(issues) != 0 {
		t.Fatalf("emitted plan must validate cleanly, got %v", issues)
	}
}

func TestComputePlanCitesEvidence(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan, err := planner.ComputePlan(snap, loader, "patience", nil, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}

	var found bool
	for _, step := range plan.Steps {
		if step.TargetRefID != "sv-a" {
			continue
		}
		found = true
		if step.MechanismReason != "gratitude builds patience" {
			t.Fatalf("mechanism reason = %q, want the span quote", step.MechanismReason)
		}
		if len(step.MechanismCitations) != 1 || step.MechanismCitations[0] != "c-a" {
			t.Fatalf("citations = %v, want [c-a]", step.MechanismCitations)
		}
	}
	if !found {
		t.Fatal("direct upstream step missing from plan")
	}

	// Steps without evidence mark the reason explicitly instead of inventing one.
	for _, step := range plan.Steps {
		if step.TargetRefID == "sv-cond" && step.MechanismReason != SourceNotSpecified {
			t.Fatalf("unevidenced step reason = %q, want %q", step.MechanismReason, SourceNotSpecified)
		}
	}
}

func TestComputePlanLeadingIndicators(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan, err := planner.ComputePlan(snap, loader, "patience", nil, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}

	if len(plan.LeadingIndicators) != 1 {
		t.Fatalf("expected one indicator from the CONDITIONAL_ON edge, got %+v", plan.LeadingIndicators)
	}
	ind := plan.LeadingIndicators[0]
	if ind.Label != "daily prayer consistency" || ind.Source != SourceFramework {
		t.Fatalf("indicator = %+v, want the conditional source tagged framework", ind)
	}
}

func TestComputePlanCollectsRisks(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan, err := planner.ComputePlan(snap, loader, "patience", nil, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}

	if len(plan.RiskOfImbalance) != 1 {
		t.Fatalf("expected one risk note, got %+v", plan.RiskOfImbalance)
	}
	risk := plan.RiskOfImbalance[0]
	if risk.Pillar != "p-body" {
		t.Fatalf("risk pillar = %q, want p-body", risk.Pillar)
	}
	if risk.Relation != RelationInhibits {
		t.Fatalf("risk relation = %s, want INHIBITS", risk.Relation)
	}
	if len(risk.Citations) != 1 || risk.Citations[0] != "c-risk" {
		t.Fatalf("risk citations = %v, want [c-risk]", risk.Citations)
	}
}

func TestComputePlanGoalNotFound(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan, err := planner.ComputePlan(snap, loader, "no such goal anywhere", nil, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("unresolvable goal must be non-fatal, got %v", err)
	}
	if len(plan.Steps) != 0 {
		t.Fatalf("unresolvable goal produced steps: %+v", plan.Steps)
	}
	if len(plan.LeadingIndicators) != 1 ||
		plan.LeadingIndicators[0].Label != ErrGoalNotFound.Error() ||
		plan.LeadingIndicators[0].Source != SourceNotSpecified {
		t.Fatalf("expected the goal-not-found indicator, got %+v", plan.LeadingIndicators)
	}
}

func TestComputePlanResolvesGoalByDetectedEntity(t *testing.T) {
	snap, loader, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	// The goal text matches nothing; the detected entity anchors it.
	plan, err := planner.ComputePlan(snap, loader, "xyz", []string{"sub_value:sv-goal"}, nil, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}
	anchors := stepAnchors(plan)
	if len(anchors) == 0 || anchors[len(anchors)-1] != "sv-goal" {
		t.Fatalf("entity-anchored goal not resolved, steps: %v", anchors)
	}
}

func TestComputePlanBackfillsFromLoops(t *testing.T) {
	nodes := []MechanismNode{
		subValueNode("n-goal", "sv-goal", "patience"),
		subValueNode("n-a", "sv-a", "gratitude practice"),
		subValueNode("n-x", "sv-x", "acts of kindness"),
	}
	edges := []MechanismEdge{
		evidencedEdge("e-a", "n-a", "n-goal", RelationReinforces, 1),
	}
	loader := &fakeLoader{nodes: nodes, edges: edges, spans: map[string][]EvidenceSpan{}}
	snap := BuildSnapshot(nodes, edges)
	resolver := &fakeResolver{labels: map[string]string{}, pillars: map[string]string{}}
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	knownLoops := []DetectedLoop{{
		LoopID:   "loop-1",
		LoopType: LoopReinforcing,
		Nodes:    []string{"n-goal", "n-x"},
		EdgeIDs:  []string{"le-1", "le-2"},
	}}

	plan, err := planner.ComputePlan(snap, loader, "patience", nil, knownLoops, PlanOptions{MaxDepth: 4, MinSteps: 3})
	if err != nil {
		t.Fatalf("ComputePlan failed: %v", err)
	}

	anchors := stepAnchors(plan)
	if len(anchors) != 3 {
		t.Fatalf("backfill must reach min steps, got %v", anchors)
	}

	var backfilled *InterventionStep
	for i := range plan.Steps {
		if plan.Steps[i].TargetRefID == "sv-x" {
			backfilled = &plan.Steps[i]
		}
	}
	if backfilled == nil {
		t.Fatalf("loop member not backfilled, steps: %v", anchors)
	}
	wantImpact := "part of a reinforcing feedback loop with the goal"
	if len(backfilled.ExpectedImpacts) == 0 || backfilled.ExpectedImpacts[len(backfilled.ExpectedImpacts)-1] != wantImpact {
		t.Fatalf("backfilled step impacts = %v, want %q", backfilled.ExpectedImpacts, wantImpact)
	}
}

func TestValidateInterventionPlanFlagsViolations(t *testing.T) {
	_, _, resolver := planFixture()
	planner := NewPlanner(NewClaimsGate(nil), resolver)

	plan := InterventionPlan{
		Goal: "patience",
		Steps: []InterventionStep{
			{TargetRefKind: RefKindSubValue, TargetRefID: "sv-a", TargetLabel: "gratitude practice", MechanismReason: SourceNotSpecified},
			{TargetLabel: "anchorless", MechanismReason: SourceNotSpecified},
			{TargetRefKind: RefKindSubValue, TargetRefID: "sv-b", TargetLabel: "start medication", MechanismReason: SourceNotSpecified},
			{TargetRefKind: RefKindSubValue, TargetRefID: "sv-d", TargetLabel: "rest", MechanismReason: "take a clinical dosage"},
		},
	}

	issues := planner.ValidateInterventionPlan(plan)
	if len(issues) != 3 {
		t.Fatalf("expected 3 violations (anchor, label, reason), got %d: %v", len(issues), issues)
	}
}
