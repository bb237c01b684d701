package entitlement

import (
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/models"
)

// Decision outcomes, as counted by entitlement_decisions_total.
const (
	OutcomeAllowed   = "allowed"
	OutcomeDenied    = "denied"
	OutcomeUndecided = "undecided"
)

// CheckAccess fails closed: no entitlement, or an unknown feature, denies.
func CheckAccess(ent *models.Entitlement, feature models.Feature) bool {
	if ent == nil {
		return false
	}
	if ent.IsAdmin {
		return true
	}
	return ent.Features.Has(feature)
}

// SnapshotSource supplies the current entitlement, nil while undecided.
type SnapshotSource interface {
	Snapshot() *models.Entitlement
}

// Guard answers repeated access queries against a changing snapshot.
type Guard struct {
	source SnapshotSource
}

func NewGuard(source SnapshotSource) *Guard {
	return &Guard{source: source}
}

func (g *Guard) Allowed(feature models.Feature) bool {
	if g == nil || g.source == nil {
		recordDecision(nil, false)
		return false
	}
	ent := g.source.Snapshot()
	ok := CheckAccess(ent, feature)
	recordDecision(ent, ok)
	return ok
}

// Outcome classifies an access answer for metrics and job output.
func Outcome(ent *models.Entitlement, allowed bool) string {
	switch {
	case ent == nil:
		return OutcomeUndecided
	case allowed:
		return OutcomeAllowed
	default:
		return OutcomeDenied
	}
}

func recordDecision(ent *models.Entitlement, allowed bool) {
	metrics.EntitlementDecisions.WithLabelValues(Outcome(ent, allowed)).Inc()
}
