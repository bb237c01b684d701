// Package entitlement turns a role and a subscription snapshot into the
// feature grants of an account, and joins the asynchronous inputs that
// feed it into a single decision.
package entitlement

import (
	"sync"
	"time"

	"settlement-engine/internal/entitlement/pricing"
	"settlement-engine/internal/models"
)

const secondsPerDay = 24 * 60 * 60

// Inputs is one complete set of calculator inputs.
type Inputs struct {
	AccountID    string
	AuthLoading  bool
	RoleLoading  bool
	Role         models.RoleResolution
	Subscription *models.SubscriptionSnapshot
}

// Calculator is a pure function of its inputs plus an injected clock.
type Calculator struct {
	prices *pricing.Table
	now    func() time.Time

	mu      sync.Mutex
	memoKey *memoKey
	memo    *models.Entitlement
}

type memoKey struct {
	accountID    string
	authLoading  bool
	roleLoading  bool
	role         models.Role
	rolePending  bool
	subscription *models.SubscriptionSnapshot
}

func NewCalculator(prices *pricing.Table, now func() time.Time) *Calculator {
	if prices == nil {
		prices = pricing.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{prices: prices, now: now}
}

// Compute returns nil whenever a decision cannot be made yet. Callers must
// treat nil as "deny and wait".
func (c *Calculator) Compute(in Inputs) *models.Entitlement {
	if in.AuthLoading || in.RoleLoading || in.Role.Pending {
		return nil
	}

	switch in.Role.Role {
	case models.RoleAdmin:
		return models.AdminEntitlement(in.AccountID)
	case models.RoleUser:
	default:
		return nil
	}

	sub := in.Subscription
	plan := c.prices.Plan(sub.Price())
	trial := sub.IsTrialing()
	paid := sub.IsPaidActive()

	ent := &models.Entitlement{
		AccountID:     in.AccountID,
		Plan:          plan,
		IsTrialActive: trial,
		Features: models.FeatureSet{
			Calendar:  plan != models.PlanFree || trial,
			Tasks:     plan != models.PlanFree || trial,
			Referrals: paid,
			Stats:     plan == models.PlanExcellence,
			Invoices:  plan == models.PlanExcellence,
		},
	}

	if trial && sub.CurrentPeriodEnd != nil {
		days := trialDaysRemaining(*sub.CurrentPeriodEnd, c.now())
		ent.TrialDaysRemaining = &days
	}
	return ent
}

// ComputeMemo is Compute with a single-entry memo keyed on input identity.
// Subscriptions are compared by pointer since snapshots are never mutated.
func (c *Calculator) ComputeMemo(in Inputs) *models.Entitlement {
	key := memoKey{
		accountID:    in.AccountID,
		authLoading:  in.AuthLoading,
		roleLoading:  in.RoleLoading,
		role:         in.Role.Role,
		rolePending:  in.Role.Pending,
		subscription: in.Subscription,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.memoKey != nil && *c.memoKey == key {
		return c.memo
	}
	c.memo = c.Compute(in)
	c.memoKey = &key
	return c.memo
}

func trialDaysRemaining(periodEnd int64, now time.Time) int {
	remaining := periodEnd - now.Unix()
	if remaining <= 0 {
		return 0
	}
	return int((remaining + secondsPerDay - 1) / secondsPerDay)
}
