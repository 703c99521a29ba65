package worldmodel

import "math"

// Confidence formula coefficients. Tuned values with no derivation; keep in
// sync with the seed mining pipeline if adjusted.
const (
	confidenceFloor   = 0.1
	confidenceCeiling = 0.95

	spanWeight    = 0.1
	spanBonusCap  = 0.2
	chunkWeight   = 0.05
	chunkBonusCap = 0.15
	quoteBonus    = 0.1
)

// ComputeEdgeConfidence scores an edge's evidential support into
// [0.1, 0.95]. Monotonic non-decreasing in spanCount and chunkDiversity;
// a direct quote never scores below entailment at equal inputs.
func ComputeEdgeConfidence(spanCount, chunkDiversity int, isDirectQuote bool) float64 {
	base := confidenceFloor + math.Min(spanBonusCap, float64(spanCount)*spanWeight)
	diversity := math.Min(chunkBonusCap, float64(chunkDiversity)*chunkWeight)
	quote := 0.0
	if isDirectQuote {
		quote = quoteBonus
	}
	return clamp(base+diversity+quote, confidenceFloor, confidenceCeiling)
}

// evidenceWeight is the base magnitude an edge contributes during simulated
// propagation: the same base+diversity shape as the confidence formula,
// without the quote bonus and without the ceiling clamp.
func evidenceWeight(spanCount, chunkDiversity int) float64 {
	return confidenceFloor +
		math.Min(spanBonusCap, float64(spanCount)*spanWeight) +
		math.Min(chunkBonusCap, float64(chunkDiversity)*chunkWeight)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
