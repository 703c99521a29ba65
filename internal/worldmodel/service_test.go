package worldmodel

import (
	"context"
	"testing"
	"time"

	"mizan/internal/config"
)

func newTestService(loader *fakeLoader, resolver *fakeResolver) *Service {
	cache := NewLoopCache(time.Minute, time.Minute, time.Minute)
	return NewService(loader, resolver, cache, config.DefaultConfig())
}

func TestServiceFailEmptyOnStorageErrors(t *testing.T) {
	loader := &fakeLoader{failAll: true}
	resolver := &fakeResolver{labels: map[string]string{}, pillars: map[string]string{}}
	svc := newTestService(loader, resolver)
	ctx := context.Background()

	if loops := svc.GetCachedLoops(ctx); loops != nil {
		t.Fatalf("GetCachedLoops on failure = %v, want nil", loops)
	}
	if loops := svc.RetrieveRelevantLoops(ctx, []string{"sv-1"}, nil, 3); len(loops) != 0 {
		t.Fatalf("RetrieveRelevantLoops on failure = %v, want empty", loops)
	}

	plan := svc.ComputeInterventionPlan(ctx, "patience", nil)
	if plan.Goal != "patience" || len(plan.Steps) != 0 {
		t.Fatalf("failed plan must be empty but keep the goal, got %+v", plan)
	}

	sim := svc.SimulateChange(ctx, "n1", 0.3)
	if len(sim.FinalState) != 0 || sim.Label != SimulationDisclaimer {
		t.Fatalf("failed simulation must be empty with disclaimer, got %+v", sim)
	}

	if stats := svc.Stats(ctx); stats != (GraphStats{}) {
		t.Fatalf("failed stats = %+v, want zero value", stats)
	}
}

func TestServiceServesPersistedLoopsThroughCache(t *testing.T) {
	loader := &fakeLoader{
		persisted: []DetectedLoop{{LoopID: "l1", EdgeIDs: []string{"e1", "e2"}, Polarities: []int{1, 1}}},
	}
	resolver := &fakeResolver{labels: map[string]string{}, pillars: map[string]string{}}
	svc := newTestService(loader, resolver)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		loops := svc.GetCachedLoops(ctx)
		if len(loops) != 1 || loops[0].LoopID != "l1" {
			t.Fatalf("read %d: got %+v", i, loops)
		}
	}
	if loader.persistedLoadsCount != 1 {
		t.Fatalf("persisted loops loaded %d times, want 1 (cached)", loader.persistedLoadsCount)
	}
}

func TestServiceInvalidateOnEdgeInsert(t *testing.T) {
	loader := &fakeLoader{
		persisted: []DetectedLoop{{LoopID: "l1", EdgeIDs: []string{"e1", "e2"}, Polarities: []int{1, 1}}},
	}
	resolver := &fakeResolver{labels: map[string]string{}, pillars: map[string]string{}}
	svc := newTestService(loader, resolver)
	ctx := context.Background()

	svc.GetCachedLoops(ctx)
	svc.InvalidateOnEdgeInsert()
	svc.GetCachedLoops(ctx)

	if loader.persistedLoadsCount != 2 {
		t.Fatalf("invalidation must force a reload, loads = %d", loader.persistedLoadsCount)
	}
}

func TestServiceMineLoopsPersistsAndInvalidates(t *testing.T) {
	loader := twoNodeCycleLoader()
	resolver := &fakeResolver{labels: map[string]string{}, pillars: map[string]string{}}
	svc := newTestService(loader, resolver)
	ctx := context.Background()

	mined, err := svc.MineLoops(ctx)
	if err != nil {
		t.Fatalf("MineLoops failed: %v", err)
	}
	if len(mined) != 1 {
		t.Fatalf("expected 1 mined loop, got %d", len(mined))
	}
	if len(loader.persisted) != 1 {
		t.Fatalf("mined loops not persisted: %+v", loader.persisted)
	}

	// The next cached read serves the persisted set.
	loops := svc.GetCachedLoops(ctx)
	if len(loops) != 1 || loops[0].LoopID != mined[0].LoopID {
		t.Fatalf("cached read after mining = %+v", loops)
	}
}

func TestServiceRetrieveRelevantLoopsMemoized(t *testing.T) {
	loader := &fakeLoader{
		persisted: []DetectedLoop{
			loopWithRefs("L1", []NodeRef{{Kind: RefKindSubValue, ID: "sv-1"}}, 0),
		},
	}
	resolver := &fakeResolver{labels: map[string]string{}, pillars: map[string]string{}}
	svc := newTestService(loader, resolver)
	ctx := context.Background()

	first := svc.RetrieveRelevantLoops(ctx, []string{"sv-1"}, nil, 3)
	second := svc.RetrieveRelevantLoops(ctx, []string{"sv-1"}, nil, 3)
	if len(first) != 1 || len(second) != 1 || first[0].LoopID != second[0].LoopID {
		t.Fatalf("memoized reads disagree: %+v vs %+v", first, second)
	}
	if loader.persistedLoadsCount != 1 {
		t.Fatalf("memoized query re-hit storage, loads = %d", loader.persistedLoadsCount)
	}
}
