package framework

import (
	"fmt"
	"os"

	"mizan/internal/logging"
	"mizan/internal/worldmodel"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML document that populates the framework tables and,
// optionally, an initial mechanism graph with evidence. Written by the
// offline mining pipeline; applied here transactionally through SeedStore.
type Seed struct {
	Pillars    []SeedPillar  `yaml:"pillars"`
	Mechanisms SeedMechanism `yaml:"mechanisms"`
}

// SeedPillar nests its core values; ownership ids are derived on apply.
type SeedPillar struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	NameAr     string          `yaml:"name_ar"`
	CoreValues []SeedCoreValue `yaml:"core_values"`
}

// SeedCoreValue nests its sub-values.
type SeedCoreValue struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	NameAr    string         `yaml:"name_ar"`
	SubValues []SeedSubValue `yaml:"sub_values"`
}

// SeedSubValue is a leaf entity.
type SeedSubValue struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	NameAr string `yaml:"name_ar"`
}

// SeedMechanism carries the optional mechanism overlay.
type SeedMechanism struct {
	Nodes []SeedNode `yaml:"nodes"`
	Edges []SeedEdge `yaml:"edges"`
}

// SeedNode mirrors worldmodel.MechanismNode.
type SeedNode struct {
	ID      string `yaml:"id"`
	RefKind string `yaml:"ref_kind"`
	RefID   string `yaml:"ref_id"`
	Label   string `yaml:"label"`
}

// SeedEdge mirrors worldmodel.MechanismEdge plus inline spans.
type SeedEdge struct {
	ID       string     `yaml:"id"`
	From     string     `yaml:"from"`
	To       string     `yaml:"to"`
	Relation string     `yaml:"relation"`
	Polarity int        `yaml:"polarity"` // 0 means: use the relation default
	Spans    []SeedSpan `yaml:"spans"`
}

// SeedSpan is one evidence excerpt.
type SeedSpan struct {
	ChunkID string `yaml:"chunk_id"`
	Quote   string `yaml:"quote"`
	Direct  bool   `yaml:"direct"`
}

// SeedStore is the narrow write surface the seeder needs. Implemented by
// store.Store.
type SeedStore interface {
	InsertPillar(p Pillar) error
	InsertCoreValue(cv CoreValue) error
	InsertSubValue(sv SubValue) error
	InsertNode(n worldmodel.MechanismNode) error
	InsertEdge(e worldmodel.MechanismEdge, spans []worldmodel.EvidenceSpan) error
}

// LoadSeed reads and parses a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// Apply writes the seed through the store. Framework entities go first so
// mechanism anchors can be validated against them on insert.
func (s *Seed) Apply(store SeedStore) error {
	timer := logging.StartTimer(logging.CategoryFramework, "Seed.Apply")
	defer timer.Stop()

	for _, sp := range s.Pillars {
		if sp.ID == "" {
			return fmt.Errorf("seed pillar with empty id")
		}
		if err := store.InsertPillar(Pillar{ID: sp.ID, Name: sp.Name, NameAr: sp.NameAr}); err != nil {
			return fmt.Errorf("failed to insert pillar %s: %w", sp.ID, err)
		}
		for _, scv := range sp.CoreValues {
			cv := CoreValue{ID: scv.ID, PillarID: sp.ID, Name: scv.Name, NameAr: scv.NameAr}
			if err := store.InsertCoreValue(cv); err != nil {
				return fmt.Errorf("failed to insert core value %s: %w", scv.ID, err)
			}
			for _, ssv := range scv.SubValues {
				sv := SubValue{ID: ssv.ID, CoreValueID: scv.ID, Name: ssv.Name, NameAr: ssv.NameAr}
				if err := store.InsertSubValue(sv); err != nil {
					return fmt.Errorf("failed to insert sub value %s: %w", ssv.ID, err)
				}
			}
		}
	}

	for _, sn := range s.Mechanisms.Nodes {
		kind := worldmodel.RefKind(sn.RefKind)
		if !kind.IsValid() {
			return fmt.Errorf("seed node %s: invalid ref_kind %q", sn.ID, sn.RefKind)
		}
		node := worldmodel.MechanismNode{ID: sn.ID, RefKind: kind, RefID: sn.RefID, Label: sn.Label}
		if err := store.InsertNode(node); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", sn.ID, err)
		}
	}

	for _, se := range s.Mechanisms.Edges {
		relation := worldmodel.RelationType(se.Relation)
		if !relation.IsValid() {
			return fmt.Errorf("seed edge %s: invalid relation %q", se.ID, se.Relation)
		}
		polarity := se.Polarity
		if polarity == 0 {
			polarity = relation.DefaultPolarity()
		}

		spans := make([]worldmodel.EvidenceSpan, 0, len(se.Spans))
		chunks := make(map[string]bool)
		hasDirect := false
		for i, ss := range se.Spans {
			spans = append(spans, worldmodel.EvidenceSpan{
				ID:      fmt.Sprintf("%s-s%d", se.ID, i),
				EdgeID:  se.ID,
				ChunkID: ss.ChunkID,
				Quote:   ss.Quote,
				Direct:  ss.Direct,
			})
			chunks[ss.ChunkID] = true
			hasDirect = hasDirect || ss.Direct
		}

		edge := worldmodel.MechanismEdge{
			ID:             se.ID,
			FromNode:       se.From,
			ToNode:         se.To,
			Relation:       relation,
			Polarity:       polarity,
			Confidence:     worldmodel.ComputeEdgeConfidence(len(spans), len(chunks), hasDirect),
			SpanCount:      len(spans),
			ChunkDiversity: len(chunks),
			HasDirectQuote: hasDirect,
		}
		if err := store.InsertEdge(edge, spans); err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", se.ID, err)
		}
	}

	logging.Framework("Seed applied: %d pillars, %d nodes, %d edges",
		len(s.Pillars), len(s.Mechanisms.Nodes), len(s.Mechanisms.Edges))
	return nil
}
