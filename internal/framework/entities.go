package framework

import "strings"

// DetectedEntities is the query-analysis handoff consumed by the loop ranker
// and planner: framework anchors ("kind:id" or bare id) plus pillar ids
// detected in the user's question. Detection itself happens upstream; this
// layer only normalizes the handoff.
type DetectedEntities struct {
	Entities []string
	Pillars  []string
}

// NewDetectedEntities trims and de-duplicates the detected anchors,
// preserving first-seen order.
func NewDetectedEntities(entities, pillars []string) DetectedEntities {
	return DetectedEntities{
		Entities: dedupe(entities),
		Pillars:  dedupe(pillars),
	}
}

// IsEmpty reports whether no anchors were detected.
func (d DetectedEntities) IsEmpty() bool {
	return len(d.Entities) == 0 && len(d.Pillars) == 0
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
