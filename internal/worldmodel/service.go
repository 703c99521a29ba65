package worldmodel

import (
	"context"
	"strconv"
	"strings"

	"mizan/internal/config"
	"mizan/internal/logging"
)

// Service is the top-level World Model API consumed by the answer-composition
// layer. Every method degrades storage failures to an explicit empty-but-valid
// result (fail-empty, never partial): this is the single place that policy is
// applied, so nothing below it swallows errors.
//
// Each call loads its own immutable snapshot; the LoopCache is the only state
// shared between concurrent callers.
type Service struct {
	loader   GraphLoader
	resolver EntityResolver
	cache    *LoopCache
	planner  *Planner

	detectOpts DetectOptions
	planOpts   PlanOptions
	simOpts    SimulateOptions
	buildOpts  BuildOptions
}

// NewService wires the engine from its collaborators and configuration.
func NewService(loader GraphLoader, resolver EntityResolver, cache *LoopCache, cfg *config.Config) *Service {
	wm := cfg.WorldModel
	return &Service{
		loader:   loader,
		resolver: resolver,
		cache:    cache,
		planner:  NewPlanner(NewClaimsGate(wm.ExtraForbiddenTerms), resolver),
		detectOpts: DetectOptions{
			MaxCycles:      wm.MaxCycles,
			MaxCycleLength: wm.MaxCycleLength,
			MaxLoops:       wm.MaxLoops,
		},
		planOpts: PlanOptions{
			MaxDepth: wm.MaxTraceDepth,
			MinSteps: wm.MinPlanSteps,
		},
		simOpts: SimulateOptions{
			MaxSteps:          wm.MaxPropagationSteps,
			DampingFactor:     wm.DampingFactor,
			MinDeltaThreshold: wm.MinDeltaThreshold,
		},
		buildOpts: BuildOptions{
			TargetLoopCount:         wm.TargetLoopCount,
			TargetInterventionCount: wm.TargetInterventionCount,
		},
	}
}

// GetCachedLoops returns the persisted loop set, served from cache. On a full
// miss it loads loops mined offline; it never runs live cycle detection.
func (s *Service) GetCachedLoops(ctx context.Context) []DetectedLoop {
	loops, err := s.cache.GetOrLoadLoops(ctx, func() ([]DetectedLoop, error) {
		loops, err := s.loader.LoadPersistedLoops(s.detectOpts.MaxLoops)
		if err != nil {
			return nil, loadErr("LoadPersistedLoops", err)
		}
		return loops, nil
	})
	if err != nil {
		logging.Get(logging.CategoryCache).Error("GetCachedLoops: %v", err)
		return nil
	}
	return loops
}

// RetrieveRelevantLoops ranks the cached loops against the query's detected
// entities and pillars and returns the top topK. Results are memoized in the
// short-TTL query cache.
func (s *Service) RetrieveRelevantLoops(ctx context.Context, detectedEntities, detectedPillars []string, topK int) []DetectedLoop {
	key := queryKey("relevant", detectedEntities, detectedPillars, topK)
	if cached, ok := s.cache.GetQuery(key); ok {
		if loops, ok := cached.([]DetectedLoop); ok {
			return loops
		}
	}

	loops := RetrieveRelevantLoops(s.GetCachedLoops(ctx), detectedEntities, detectedPillars, topK)
	s.cache.SetQuery(key, loops)
	return loops
}

// ComputeInterventionPlan plans toward the goal. An unresolvable goal yields
// a minimal plan (non-fatal); a storage failure yields an empty plan.
func (s *Service) ComputeInterventionPlan(ctx context.Context, goal string, detectedEntities []string) InterventionPlan {
	snap, err := s.loadSnapshot()
	if err != nil {
		logging.Get(logging.CategoryPlanner).Error("ComputeInterventionPlan: %v", err)
		return InterventionPlan{Goal: goal}
	}

	plan, err := s.planner.ComputePlan(snap, s.loader, goal, detectedEntities, s.GetCachedLoops(ctx), s.planOpts)
	if err != nil {
		logging.Get(logging.CategoryPlanner).Error("ComputeInterventionPlan: %v", err)
		return InterventionPlan{Goal: goal}
	}
	return plan
}

// ValidateInterventionPlan re-checks a plan against the safety invariants.
// Advisory: the caller decides whether to reject or re-plan.
func (s *Service) ValidateInterventionPlan(plan InterventionPlan) []string {
	return s.planner.ValidateInterventionPlan(plan)
}

// SimulateChange propagates a hypothetical perturbation of one node. On a
// storage failure the result is empty but still carries the disclaimer label.
func (s *Service) SimulateChange(ctx context.Context, nodeID string, magnitude float64) SimulationResult {
	snap, err := s.loadSnapshot()
	if err != nil {
		logging.Get(logging.CategorySimulation).Error("SimulateChange: %v", err)
		return SimulationResult{
			InitialState: map[string]float64{},
			FinalState:   map[string]float64{},
			Label:        SimulationDisclaimer,
		}
	}
	return PropagateChange(snap, nodeID, magnitude, s.simOpts)
}

// BuildWorldModelPlan assembles the loop+intervention selection for a query,
// with full used_edges provenance for downstream citation.
func (s *Service) BuildWorldModelPlan(ctx context.Context, detectedEntities, detectedPillars, goals []string) WorldModelPlan {
	loops := s.RetrieveRelevantLoops(ctx, detectedEntities, detectedPillars, s.buildOpts.TargetLoopCount)

	var interventions []InterventionPlan
	for _, goal := range goals {
		plan := s.ComputeInterventionPlan(ctx, goal, detectedEntities)
		if len(plan.Steps) > 0 {
			interventions = append(interventions, plan)
		}
	}

	return BuildWorldModelPlan(loops, interventions, s.resolver, s.buildOpts)
}

// Stats returns graph statistics, cached under the stats TTL.
func (s *Service) Stats(ctx context.Context) GraphStats {
	if stats, ok := s.cache.GetStats(); ok {
		return stats
	}
	stats, err := s.loader.Counts()
	if err != nil {
		logging.Get(logging.CategoryGraph).Error("Stats: %v", err)
		return GraphStats{}
	}
	s.cache.SetStats(stats)
	return stats
}

// InvalidateOnEdgeInsert is the hook the mining/ingestion collaborator calls
// after writing new edges. Everything derived from the edge set is stale.
func (s *Service) InvalidateOnEdgeInsert() {
	s.cache.InvalidateAll()
}

// MineLoops runs live bounded cycle detection, persists the result, and
// invalidates the loop cache. Offline/maintenance only; query paths read the
// persisted loops instead.
func (s *Service) MineLoops(ctx context.Context) ([]DetectedLoop, error) {
	loops, err := DetectLoops(s.loader, s.detectOpts)
	if err != nil {
		return nil, err
	}
	if err := s.loader.SaveDetectedLoops(loops); err != nil {
		return nil, loadErr("SaveDetectedLoops", err)
	}
	s.cache.InvalidateLoops()
	logging.Loops("MineLoops: persisted %d loops", len(loops))
	return loops, nil
}

// loadSnapshot loads a fresh topology-only snapshot for one operation.
func (s *Service) loadSnapshot() (*Snapshot, error) {
	nodes, err := s.loader.LoadNodes()
	if err != nil {
		return nil, loadErr("LoadNodes", err)
	}
	edges, err := s.loader.LoadEdges(false)
	if err != nil {
		return nil, loadErr("LoadEdges", err)
	}
	return BuildSnapshot(nodes, edges), nil
}

func queryKey(prefix string, entities, pillars []string, topK int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, e := range entities {
		b.WriteString("|e:")
		b.WriteString(e)
	}
	for _, p := range pillars {
		b.WriteString("|p:")
		b.WriteString(p)
	}
	b.WriteString("|k:")
	b.WriteString(strconv.Itoa(topK))
	return b.String()
}
