// internal/workers/payout/sync-payout-account/validation.go
package syncpayoutaccount

import "settlement-engine/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"accountId"},
		Properties: map[string]validation.Property{
			"accountId": {
				Type:      "string",
				MinLength: validation.IntPtr(1),
				MaxLength: validation.IntPtr(128),
			},
			"payoutEnabled": {
				Type:        "boolean",
				Description: "Result of the processor status check",
			},
			"bankAccountLast4": {
				Type:    "string",
				Pattern: validation.StringPtr(`^[0-9A-Za-z]{4}$`),
			},
			"bankAccountCountry": {
				Type:    "string",
				Pattern: validation.StringPtr(`^[A-Za-z]{2}$`),
			},
		},
		AdditionalProperties: true,
	}
}
