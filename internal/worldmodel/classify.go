package worldmodel

// ComputeLoopType classifies a cycle by the sign product of its polarities:
// an even count of negative entries (including zero) is reinforcing, an odd
// count is balancing. Counting instead of multiplying gives the identical
// result without overflow concerns. An empty list defaults to reinforcing.
func ComputeLoopType(polarities []int) LoopType {
	negatives := 0
	for _, p := range polarities {
		if p < 0 {
			negatives++
		}
	}
	if negatives%2 == 0 {
		return LoopReinforcing
	}
	return LoopBalancing
}
