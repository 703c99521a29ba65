package worldmodel

import (
	"math"
	"testing"
)

func loopWithRefs(id string, refs []NodeRef, spanCount int) DetectedLoop {
	loop := DetectedLoop{LoopID: id}
	for i, ref := range refs {
		loop.NodeRefs = append(loop.NodeRefs, ref)
		loop.Nodes = append(loop.Nodes, ref.ID+"-node")
		loop.EdgeIDs = append(loop.EdgeIDs, id+"-e"+string(rune('0'+i)))
		loop.Polarities = append(loop.Polarities, 1)
	}
	for i := 0; i < spanCount; i++ {
		loop.EvidenceSpans = append(loop.EvidenceSpans, EvidenceSpan{ID: id + "-s"})
	}
	return loop
}

func TestScoreLoopRelevance(t *testing.T) {
	loop := loopWithRefs("X", []NodeRef{
		{Kind: RefKindSubValue, ID: "sv-patience"},
		{Kind: RefKindSubValue, ID: "sv-gratitude"},
	}, 2)

	// Bare ref_id and qualified kind:ref_id both match.
	score := ScoreLoopRelevance(loop, []string{"sv-patience"}, nil)
	if want := math.Round((0.5+0.1)*1000) / 1000; score != want {
		t.Fatalf("score = %v, want %v", score, want)
	}
	qualified := ScoreLoopRelevance(loop, []string{"sub_value:sv-patience"}, nil)
	if qualified != score {
		t.Fatalf("qualified match scored %v, bare match %v", qualified, score)
	}

	// Full match plus evidence caps at 1.0.
	full := loopWithRefs("Y", []NodeRef{{Kind: RefKindSubValue, ID: "sv-a"}}, 10)
	if got := ScoreLoopRelevance(full, []string{"sv-a"}, nil); got != 1.0 {
		t.Fatalf("capped score = %v, want 1.0", got)
	}

	// No refs scores zero.
	if got := ScoreLoopRelevance(DetectedLoop{}, []string{"sv-a"}, nil); got != 0 {
		t.Fatalf("empty loop score = %v, want 0", got)
	}
}

func TestScoreLoopRelevanceEvidenceBonusCapped(t *testing.T) {
	few := loopWithRefs("X", []NodeRef{{Kind: RefKindSubValue, ID: "sv-a"}}, 1)
	many := loopWithRefs("Y", []NodeRef{{Kind: RefKindSubValue, ID: "sv-a"}}, 100)

	fewScore := ScoreLoopRelevance(few, nil, nil)
	manyScore := ScoreLoopRelevance(many, nil, nil)
	if fewScore != 0.05 {
		t.Fatalf("one-span bonus = %v, want 0.05", fewScore)
	}
	if manyScore != 0.3 {
		t.Fatalf("evidence bonus must cap at 0.3, got %v", manyScore)
	}
}

func TestRetrieveRelevantLoopsOrdering(t *testing.T) {
	// X matches both detected entities, Y matches one, Z matches none.
	x := loopWithRefs("X", []NodeRef{
		{Kind: RefKindSubValue, ID: "sv-1"},
		{Kind: RefKindSubValue, ID: "sv-2"},
	}, 0)
	y := loopWithRefs("Y", []NodeRef{
		{Kind: RefKindSubValue, ID: "sv-1"},
		{Kind: RefKindSubValue, ID: "sv-other"},
	}, 0)
	z := loopWithRefs("Z", []NodeRef{
		{Kind: RefKindSubValue, ID: "sv-unrelated"},
	}, 0)

	got := RetrieveRelevantLoops([]DetectedLoop{z, y, x}, []string{"sv-1", "sv-2"}, nil, 2)
	if len(got) != 2 {
		t.Fatalf("topK=2 returned %d loops", len(got))
	}
	if got[0].LoopID != "X" || got[1].LoopID != "Y" {
		t.Fatalf("ranking wrong: got %s, %s; want X, Y", got[0].LoopID, got[1].LoopID)
	}
}

func TestRetrieveRelevantLoopsTiesBreakByLength(t *testing.T) {
	long := loopWithRefs("long", []NodeRef{
		{Kind: RefKindSubValue, ID: "sv-a"},
		{Kind: RefKindSubValue, ID: "sv-b"},
		{Kind: RefKindSubValue, ID: "sv-c"},
	}, 0)
	short := loopWithRefs("short", []NodeRef{
		{Kind: RefKindSubValue, ID: "sv-d"},
		{Kind: RefKindSubValue, ID: "sv-e"},
	}, 0)

	got := RetrieveRelevantLoops([]DetectedLoop{long, short}, nil, nil, 0)
	if got[0].LoopID != "short" {
		t.Fatalf("equal scores must prefer the shorter loop, got %s first", got[0].LoopID)
	}
}
