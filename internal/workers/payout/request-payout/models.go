// internal/workers/payout/request-payout/models.go
package requestpayout

import (
	"time"

	"settlement-engine/internal/models"
)

type Input struct {
	AccountID string `json:"accountId"`
	// Amount is a decimal string such as "100.00".
	Amount string `json:"amount"`
}

type Output struct {
	PayoutRequestID string              `json:"payoutRequestId"`
	PayoutStatus    models.PayoutStatus `json:"payoutStatus"`
	AmountRequested string              `json:"amountRequested"`
	FeeAmount       string              `json:"feeAmount"`
	AmountNet       string              `json:"amountNet"`
	RequestedAt     time.Time           `json:"requestedAt"`
}

func outputFrom(req *models.PayoutRequest) *Output {
	return &Output{
		PayoutRequestID: req.ID,
		PayoutStatus:    req.Status,
		AmountRequested: req.AmountRequested.String(),
		FeeAmount:       req.FeeAmount.String(),
		AmountNet:       req.AmountNet.String(),
		RequestedAt:     req.RequestedAt,
	}
}
