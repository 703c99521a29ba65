// Package framework holds the static wellbeing ontology the world model
// anchors to: pillars at the top, core values under them, sub-values at the
// leaves. The ontology is seeded offline from YAML and read-only at query
// time.
package framework

import (
	"mizan/internal/worldmodel"
)

// Pillar is a top-level dimension of the wellbeing framework.
type Pillar struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	NameAr string `yaml:"name_ar" json:"name_ar"`
}

// CoreValue is a value grouped under one pillar.
type CoreValue struct {
	ID       string `yaml:"id" json:"id"`
	PillarID string `yaml:"pillar_id" json:"pillar_id"`
	Name     string `yaml:"name" json:"name"`
	NameAr   string `yaml:"name_ar" json:"name_ar"`
}

// SubValue is a leaf value under one core value.
type SubValue struct {
	ID          string `yaml:"id" json:"id"`
	CoreValueID string `yaml:"core_value_id" json:"core_value_id"`
	Name        string `yaml:"name" json:"name"`
	NameAr      string `yaml:"name_ar" json:"name_ar"`
}

// Index resolves framework anchors in memory. Built once from the store (or
// a seed) per process; read-only afterwards, so it needs no locking. It
// implements worldmodel.EntityResolver.
type Index struct {
	pillars    map[string]Pillar
	coreValues map[string]CoreValue
	subValues  map[string]SubValue
}

// NewIndex builds the resolver from entity lists.
func NewIndex(pillars []Pillar, coreValues []CoreValue, subValues []SubValue) *Index {
	ix := &Index{
		pillars:    make(map[string]Pillar, len(pillars)),
		coreValues: make(map[string]CoreValue, len(coreValues)),
		subValues:  make(map[string]SubValue, len(subValues)),
	}
	for _, p := range pillars {
		ix.pillars[p.ID] = p
	}
	for _, cv := range coreValues {
		ix.coreValues[cv.ID] = cv
	}
	for _, sv := range subValues {
		ix.subValues[sv.ID] = sv
	}
	return ix
}

// Exists reports whether kind:id resolves to a framework entity. Mechanism
// and outcome nodes are abstract; they never resolve here.
func (ix *Index) Exists(kind worldmodel.RefKind, id string) bool {
	switch kind {
	case worldmodel.RefKindPillar:
		_, ok := ix.pillars[id]
		return ok
	case worldmodel.RefKindCoreValue:
		_, ok := ix.coreValues[id]
		return ok
	case worldmodel.RefKindSubValue:
		_, ok := ix.subValues[id]
		return ok
	}
	return false
}

// Label returns the display label for kind:id, preferring the Arabic name.
func (ix *Index) Label(kind worldmodel.RefKind, id string) (string, bool) {
	switch kind {
	case worldmodel.RefKindPillar:
		if p, ok := ix.pillars[id]; ok {
			return preferArabic(p.NameAr, p.Name), true
		}
	case worldmodel.RefKindCoreValue:
		if cv, ok := ix.coreValues[id]; ok {
			return preferArabic(cv.NameAr, cv.Name), true
		}
	case worldmodel.RefKindSubValue:
		if sv, ok := ix.subValues[id]; ok {
			return preferArabic(sv.NameAr, sv.Name), true
		}
	}
	return "", false
}

// PillarOf walks the hierarchy up to the owning pillar id.
func (ix *Index) PillarOf(kind worldmodel.RefKind, id string) (string, bool) {
	switch kind {
	case worldmodel.RefKindPillar:
		if _, ok := ix.pillars[id]; ok {
			return id, true
		}
	case worldmodel.RefKindCoreValue:
		if cv, ok := ix.coreValues[id]; ok {
			if _, ok := ix.pillars[cv.PillarID]; ok {
				return cv.PillarID, true
			}
		}
	case worldmodel.RefKindSubValue:
		if sv, ok := ix.subValues[id]; ok {
			if cv, ok := ix.coreValues[sv.CoreValueID]; ok {
				if _, ok := ix.pillars[cv.PillarID]; ok {
					return cv.PillarID, true
				}
			}
		}
	}
	return "", false
}

// PillarCount returns how many pillars the index holds.
func (ix *Index) PillarCount() int {
	return len(ix.pillars)
}

func preferArabic(ar, fallback string) string {
	if ar != "" {
		return ar
	}
	return fallback
}
