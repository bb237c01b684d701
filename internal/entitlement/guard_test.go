package entitlement

import (
	"testing"

	"settlement-engine/internal/models"

	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	ent *models.Entitlement
}

func (s staticSource) Snapshot() *models.Entitlement { return s.ent }

func TestCheckAccess_FailsClosed(t *testing.T) {
	for _, f := range append(models.AllFeatures, models.Feature("billing")) {
		assert.False(t, CheckAccess(nil, f), "feature %s", f)
	}
}

func TestCheckAccess(t *testing.T) {
	user := &models.Entitlement{Plan: models.PlanPro, Features: models.FeatureSet{Calendar: true, Tasks: true}}

	assert.True(t, CheckAccess(user, models.FeatureCalendar))
	assert.False(t, CheckAccess(user, models.FeatureStats))
	assert.False(t, CheckAccess(user, models.Feature("unknown")))

	admin := &models.Entitlement{IsAdmin: true}
	assert.True(t, CheckAccess(admin, models.FeatureInvoices))
	assert.True(t, CheckAccess(admin, models.Feature("unknown")))
}

func TestGuard(t *testing.T) {
	var nilGuard *Guard
	assert.False(t, nilGuard.Allowed(models.FeatureCalendar))
	assert.False(t, NewGuard(nil).Allowed(models.FeatureCalendar))
	assert.False(t, NewGuard(staticSource{}).Allowed(models.FeatureCalendar))
	assert.True(t, NewGuard(staticSource{ent: models.AdminEntitlement("a")}).Allowed(models.FeatureStats))
}

func TestOutcome(t *testing.T) {
	ent := &models.Entitlement{}
	assert.Equal(t, OutcomeUndecided, Outcome(nil, false))
	assert.Equal(t, OutcomeAllowed, Outcome(ent, true))
	assert.Equal(t, OutcomeDenied, Outcome(ent, false))
}
