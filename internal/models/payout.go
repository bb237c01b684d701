package models

import "time"

// PayoutStatus is a state of the payout request state machine.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutCompleted || s == PayoutFailed || s == PayoutCancelled
}

// IsOpen reports whether the request still reserves funds and blocks a new one.
func (s PayoutStatus) IsOpen() bool {
	return s == PayoutPending || s == PayoutProcessing
}

// ReleasesFunds reports whether the requested amount is returned to the
// available balance.
func (s PayoutStatus) ReleasesFunds() bool {
	return s == PayoutFailed || s == PayoutCancelled
}

// PayoutRequest is one withdrawal drawn against accrued earnings.
// Rows are never deleted.
type PayoutRequest struct {
	ID              string       `json:"id" db:"id"`
	AccountID       string       `json:"accountId" db:"account_id"`
	AmountRequested Cents        `json:"amountRequested" db:"amount_requested"`
	FeeAmount       Cents        `json:"feeAmount" db:"fee_amount"`
	AmountNet       Cents        `json:"amountNet" db:"amount_net"`
	Status          PayoutStatus `json:"status" db:"status"`
	RequestedAt     time.Time    `json:"requestedAt" db:"requested_at"`
	ProcessedAt     *time.Time   `json:"processedAt,omitempty" db:"processed_at"`
	FailureReason   *string      `json:"failureReason,omitempty" db:"failure_reason"`
	TransferID      *string      `json:"transferId,omitempty" db:"transfer_id"`
}

// PayoutEvent is the audit record written for every payout state change.
type PayoutEvent struct {
	ID         string       `json:"id" db:"id"`
	PayoutID   string       `json:"payoutId" db:"payout_id"`
	AccountID  string       `json:"accountId" db:"account_id"`
	FromStatus PayoutStatus `json:"fromStatus,omitempty" db:"from_status"`
	ToStatus   PayoutStatus `json:"toStatus" db:"to_status"`
	Reason     string       `json:"reason,omitempty" db:"reason"`
	Actor      string       `json:"actor,omitempty" db:"actor"`
	OccurredAt time.Time    `json:"occurredAt" db:"occurred_at"`
}

// PayoutAccountDetails holds the bank-side payout setup of an account.
type PayoutAccountDetails struct {
	AccountID           string    `json:"accountId" db:"account_id"`
	PayoutEnabled       bool      `json:"payoutEnabled" db:"payout_enabled"`
	BankAccountLast4    string    `json:"bankAccountLast4,omitempty" db:"bank_account_last4"`
	BankAccountCountry  string    `json:"bankAccountCountry,omitempty" db:"bank_account_country"`
	MinimumPayoutAmount Cents     `json:"minimumPayoutAmount" db:"minimum_payout_amount"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}

// EarningsEvent is an immutable commission ledger entry.
type EarningsEvent struct {
	ID                string    `json:"id" db:"id"`
	ReferrerID        string    `json:"referrerId" db:"referrer_id"`
	ReferredAccountID string    `json:"referredAccountId,omitempty" db:"referred_account_id"`
	Amount            Cents     `json:"amount" db:"amount"`
	OccurredAt        time.Time `json:"occurredAt" db:"occurred_at"`
}

// EarningsSummary breaks the ledger balance down for display.
type EarningsSummary struct {
	AccountID   string `json:"accountId"`
	TotalEarned Cents  `json:"totalEarned"`
	Reserved    Cents  `json:"reserved"`
	PaidOut     Cents  `json:"paidOut"`
	Available   Cents  `json:"available"`
}
