package domain

import (
	"errors"
	"fmt"
)

// EdgeKind classifies how two findings or entities relate.
type EdgeKind string

const (
	// EdgeEquivalent marks two records believed to denote the same exposure.
	EdgeEquivalent EdgeKind = "equivalent"
	// EdgeOverlapping marks records that partially cover the same exposure.
	EdgeOverlapping EdgeKind = "overlapping"
	// EdgeComplementary is directed: FromID is a prerequisite of ToID.
	EdgeComplementary EdgeKind = "complementary"
	// EdgeConflicting marks records whose assessments contradict each other.
	EdgeConflicting EdgeKind = "conflicting"
)

// IsValid checks if the kind is a recognized edge classification.
func (k EdgeKind) IsValid() bool {
	switch k {
	case EdgeEquivalent, EdgeOverlapping, EdgeComplementary, EdgeConflicting:
		return true
	}
	return false
}

// Directed reports whether edge orientation is meaningful for this kind.
func (k EdgeKind) Directed() bool {
	return k == EdgeComplementary
}

// EdgeValidation tracks the human review state of a proposed correlation.
type EdgeValidation string

const (
	ValidationAuto     EdgeValidation = "auto"
	ValidationExpert   EdgeValidation = "expert_validated"
	ValidationDisputed EdgeValidation = "disputed"
)

// Edge construction errors.
var (
	ErrSelfEdge        = errors.New("correlation edge cannot reference itself")
	ErrInvalidEdgeKind = errors.New("invalid correlation edge kind")
	ErrEdgeOutOfRange  = errors.New("edge strength and confidence must be within [0,1]")
)

// CorrelationEdge relates two findings or two entities. Undirected kinds are
// stored in canonical order (FromID < ToID) so that (a,b) and (b,a) collapse
// to one row; (FromID,ToID) pairs are unique per kind.
type CorrelationEdge struct {
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Kind       EdgeKind       `json:"kind"`
	Strength   float64        `json:"strength"`   // 0-1
	Confidence float64        `json:"confidence"` // 0-1
	Rationale  string         `json:"rationale"`
	Validation EdgeValidation `json:"validation"`
}

// NewCorrelationEdge is the designated factory for valid edges. It enforces
// the no-self-edge invariant, range checks, and canonical ordering for
// undirected kinds.
func NewCorrelationEdge(fromID, toID string, kind EdgeKind, strength, confidence float64, rationale string) (*CorrelationEdge, error) {
	if fromID == toID {
		return nil, ErrSelfEdge
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEdgeKind, kind)
	}
	if strength < 0 || strength > 1 || confidence < 0 || confidence > 1 {
		return nil, ErrEdgeOutOfRange
	}

	if !kind.Directed() && toID < fromID {
		fromID, toID = toID, fromID
	}

	return &CorrelationEdge{
		FromID:     fromID,
		ToID:       toID,
		Kind:       kind,
		Strength:   strength,
		Confidence: confidence,
		Rationale:  rationale,
		Validation: ValidationAuto,
	}, nil
}

// Key identifies the edge for uniqueness checks: one edge per (from,to,kind).
func (e CorrelationEdge) Key() string {
	return e.FromID + "|" + e.ToID + "|" + string(e.Kind)
}

// Touches reports whether the edge involves the given record ID.
func (e CorrelationEdge) Touches(id string) bool {
	return e.FromID == id || e.ToID == id
}

// Other returns the opposite endpoint, or "" if id is not an endpoint.
func (e CorrelationEdge) Other(id string) string {
	switch id {
	case e.FromID:
		return e.ToID
	case e.ToID:
		return e.FromID
	}
	return ""
}
