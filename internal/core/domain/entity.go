package domain

import (
	"strings"
)

// EntityKind classifies the real-world system element a finding attaches to.
type EntityKind string

const (
	KindAsset         EntityKind = "asset"
	KindController    EntityKind = "controller"
	KindControlAction EntityKind = "controlAction"
	KindDataFlow      EntityKind = "dataFlow"
	KindActor         EntityKind = "actor"
	KindHazard        EntityKind = "hazard"
	KindLoss          EntityKind = "loss"
)

// IsValid checks if the kind is a recognized entity classification.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindAsset, KindController, KindControlAction, KindDataFlow,
		KindActor, KindHazard, KindLoss:
		return true
	}
	return false
}

// Attribute keys with engine-level meaning. Everything else in the
// attribute bag is framework-specific metadata (e.g. "maestroLayer").
const (
	AttrCritical = "critical" // "true" marks a control action as safety-critical
)

// Entity is a real-world system element findings attach to. Entities are
// the join point across frameworks: two findings referencing the same
// entity are trivially correlated.
type Entity struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"project_id"`
	Kind       EntityKind        `json:"kind"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	// CrossRefs lists entity IDs an adapter explicitly declared to denote
	// the same real object (strength 1.0 correlations).
	CrossRefs []string `json:"cross_refs,omitempty"`
}

// NormalizedName collapses whitespace and case so that "Flight  Controller"
// and "flight controller" share an exact-match key.
func (e Entity) NormalizedName() string {
	return strings.Join(strings.Fields(strings.ToLower(e.Name)), " ")
}

// MatchKey is the exact-correlation key: same kind plus normalized name.
func (e Entity) MatchKey() string {
	return string(e.Kind) + "|" + e.NormalizedName()
}

// IsCritical reports whether the entity is flagged safety-critical.
func (e Entity) IsCritical() bool {
	return e.Attributes[AttrCritical] == "true"
}

// IsCoverageSubject reports whether gap detection must check this entity
// for finding coverage: every hazard and loss, plus critical control actions.
func (e Entity) IsCoverageSubject() bool {
	switch e.Kind {
	case KindHazard, KindLoss:
		return true
	case KindControlAction:
		return e.IsCritical()
	}
	return false
}
