// internal/workers/payout/record-earning/models.go
package recordearning

import "time"

type Input struct {
	EarningID         string     `json:"earningId,omitempty"`
	ReferrerID        string     `json:"referrerId"`
	ReferredAccountID string     `json:"referredAccountId,omitempty"`
	Amount            string     `json:"amount"`
	OccurredAt        *time.Time `json:"occurredAt,omitempty"`
}

type Output struct {
	EarningID       string `json:"earningId"`
	EarningRecorded bool   `json:"earningRecorded"`
	Amount          string `json:"amount"`
}
