// Package pricing maps billing price ids to plans and display labels.
package pricing

import (
	"settlement-engine/internal/common/config"
	"settlement-engine/internal/models"
)

// Price is one entry of the billing price table.
type Price struct {
	ID     string
	Plan   models.Plan
	Period string
	Label  string
}

// Table is an immutable price id lookup. The zero value maps everything to free.
type Table struct {
	byID map[string]Price
}

func NewTable(prices []Price) *Table {
	t := &Table{byID: make(map[string]Price, len(prices))}
	for _, p := range prices {
		t.byID[p.ID] = p
	}
	return t
}

// FromConfig builds the table from entitlement.prices.
func FromConfig(prices []config.PriceConfig) *Table {
	out := make([]Price, 0, len(prices))
	for _, p := range prices {
		out = append(out, Price{
			ID:     p.ID,
			Plan:   models.Plan(p.Plan),
			Period: p.Period,
			Label:  p.Label,
		})
	}
	return NewTable(out)
}

// Default is the built-in two tiers by two billing periods table.
func Default() *Table {
	return FromConfig(config.DefaultPrices)
}

// Plan returns the plan for a price id. Unknown or empty ids are free.
func (t *Table) Plan(priceID string) models.Plan {
	if t == nil || priceID == "" {
		return models.PlanFree
	}
	if p, ok := t.byID[priceID]; ok {
		return p.Plan
	}
	return models.PlanFree
}

// Label returns the display label for a price id, or "" when unknown.
func (t *Table) Label(priceID string) string {
	if t == nil {
		return ""
	}
	return t.byID[priceID].Label
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byID)
}
