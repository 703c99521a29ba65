package worldmodel

import (
	"math"
	"testing"
)

func TestComputeEdgeConfidenceBounds(t *testing.T) {
	if got := ComputeEdgeConfidence(0, 0, false); got != 0.1 {
		t.Fatalf("zero evidence confidence = %v, want 0.1", got)
	}
	if got := ComputeEdgeConfidence(100, 100, true); got != 0.55 {
		// 0.1 + capped 0.2 + capped 0.15 + 0.1
		t.Fatalf("saturated confidence = %v, want 0.55", got)
	}
	for spans := 0; spans <= 10; spans++ {
		for chunks := 0; chunks <= 10; chunks++ {
			got := ComputeEdgeConfidence(spans, chunks, true)
			if got < 0.1 || got > 0.95 {
				t.Fatalf("confidence(%d,%d,true) = %v out of [0.1, 0.95]", spans, chunks, got)
			}
		}
	}
}

func TestComputeEdgeConfidenceMonotonic(t *testing.T) {
	for spans := 0; spans < 6; spans++ {
		for chunks := 0; chunks < 6; chunks++ {
			base := ComputeEdgeConfidence(spans, chunks, false)
			if more := ComputeEdgeConfidence(spans+1, chunks, false); more < base {
				t.Fatalf("confidence decreased with extra span: %v -> %v", base, more)
			}
			if more := ComputeEdgeConfidence(spans, chunks+1, false); more < base {
				t.Fatalf("confidence decreased with extra chunk: %v -> %v", base, more)
			}
			if quoted := ComputeEdgeConfidence(spans, chunks, true); quoted < base {
				t.Fatalf("direct quote scored below entailment: %v < %v", quoted, base)
			}
		}
	}
}

func TestComputeEdgeConfidenceKnownValues(t *testing.T) {
	tests := []struct {
		spans, chunks int
		direct        bool
		want          float64
	}{
		{1, 1, false, 0.25},
		{1, 1, true, 0.35},
		{2, 1, false, 0.35},
		{3, 3, true, 0.55}, // span bonus capped at 0.2, chunk at 0.15
	}
	for _, tt := range tests {
		got := ComputeEdgeConfidence(tt.spans, tt.chunks, tt.direct)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("confidence(%d,%d,%v) = %v, want %v", tt.spans, tt.chunks, tt.direct, got, tt.want)
		}
	}
}
