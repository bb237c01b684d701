package models

import "time"

// Subscription status values as reported by the billing processor.
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
	SubscriptionNone     = "none"
)

// SubscriptionSnapshot is the billing state of an account at the last read.
// Snapshots are never mutated; a fresh read produces a new value.
type SubscriptionSnapshot struct {
	AccountID        string    `json:"accountId"`
	PriceID          *string   `json:"priceId,omitempty"`
	Status           string    `json:"status"`
	CurrentPeriodEnd *int64    `json:"currentPeriodEnd,omitempty"` // epoch seconds
	ProductLabel     string    `json:"productLabel,omitempty"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// IsTrialing reports whether the subscription is in a trial period.
func (s *SubscriptionSnapshot) IsTrialing() bool {
	return s != nil && s.Status == SubscriptionTrialing
}

// IsPaidActive reports whether the subscription is a paid, active one.
func (s *SubscriptionSnapshot) IsPaidActive() bool {
	return s != nil && s.Status == SubscriptionActive
}

// Price returns the price id or "" when absent.
func (s *SubscriptionSnapshot) Price() string {
	if s == nil || s.PriceID == nil {
		return ""
	}
	return *s.PriceID
}
