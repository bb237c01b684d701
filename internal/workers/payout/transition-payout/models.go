// internal/workers/payout/transition-payout/models.go
package transitionpayout

import (
	"time"

	"settlement-engine/internal/models"
)

type Input struct {
	PayoutRequestID string              `json:"payoutRequestId"`
	TargetStatus    models.PayoutStatus `json:"targetStatus"`
	Reason          string              `json:"reason,omitempty"`
	TransferID      string              `json:"transferId,omitempty"`
	Actor           string              `json:"actor,omitempty"`
}

type Output struct {
	PayoutRequestID string              `json:"payoutRequestId"`
	PayoutStatus    models.PayoutStatus `json:"payoutStatus"`
	AmountNet       string              `json:"amountNet"`
	ProcessedAt     *time.Time          `json:"processedAt,omitempty"`
	FailureReason   string              `json:"failureReason,omitempty"`
	TransferID      string              `json:"transferId,omitempty"`
	// Replayed is true when the request was already in the target status,
	// as happens when the engine redelivers a job whose completion was lost.
	Replayed bool `json:"transitionReplayed"`
}
