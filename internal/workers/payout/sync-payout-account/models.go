// internal/workers/payout/sync-payout-account/models.go
package syncpayoutaccount

// Input starts or refreshes an account's payout setup. PayoutEnabled is set
// only when the job carries a status-check result.
type Input struct {
	AccountID          string `json:"accountId"`
	PayoutEnabled      *bool  `json:"payoutEnabled,omitempty"`
	BankAccountLast4   string `json:"bankAccountLast4,omitempty"`
	BankAccountCountry string `json:"bankAccountCountry,omitempty"`
}

type Output struct {
	AccountID           string `json:"accountId"`
	PayoutEnabled       bool   `json:"payoutEnabled"`
	BankAccountLast4    string `json:"bankAccountLast4,omitempty"`
	BankAccountCountry  string `json:"bankAccountCountry,omitempty"`
	MinimumPayoutAmount string `json:"minimumPayoutAmount"`
	AvailableBalance    string `json:"availableBalance"`
}
