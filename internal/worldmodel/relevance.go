package worldmodel

import (
	"math"
	"sort"
)

// Relevance scoring coefficients.
const (
	evidenceSpanBonus = 0.05
	evidenceBonusCap  = 0.3
)

// ScoreLoopRelevance scores a loop against the entities and pillars detected
// in a query: the fraction of loop nodes whose ref_id or "kind:ref_id"
// appears in the detected sets, plus a small evidence bonus, capped at 1.0
// and rounded to 3 decimals.
func ScoreLoopRelevance(loop DetectedLoop, detectedEntities, detectedPillars []string) float64 {
	if len(loop.NodeRefs) == 0 {
		return 0
	}

	detected := make(map[string]bool, len(detectedEntities)+len(detectedPillars))
	for _, e := range detectedEntities {
		detected[e] = true
	}
	for _, p := range detectedPillars {
		detected[p] = true
	}

	matched := 0
	for _, ref := range loop.NodeRefs {
		if detected[ref.ID] || detected[ref.Key()] {
			matched++
		}
	}

	matchRatio := float64(matched) / float64(len(loop.NodeRefs))
	evidenceBonus := math.Min(evidenceBonusCap, float64(len(loop.EvidenceSpans))*evidenceSpanBonus)
	score := math.Min(1.0, matchRatio+evidenceBonus)
	return math.Round(score*1000) / 1000
}

// RetrieveRelevantLoops sorts loops by descending relevance, shorter loops
// breaking ties, and returns the first topK.
func RetrieveRelevantLoops(loops []DetectedLoop, detectedEntities, detectedPillars []string, topK int) []DetectedLoop {
	type scored struct {
		loop  DetectedLoop
		score float64
	}

	ranked := make([]scored, 0, len(loops))
	for _, loop := range loops {
		ranked = append(ranked, scored{loop: loop, score: ScoreLoopRelevance(loop, detectedEntities, detectedPillars)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].loop.EdgeCount() < ranked[j].loop.EdgeCount()
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	out := make([]DetectedLoop, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.loop)
	}
	return out
}
