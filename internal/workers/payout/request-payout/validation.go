// internal/workers/payout/request-payout/validation.go
package requestpayout

import "settlement-engine/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"accountId", "amount"},
		Properties: map[string]validation.Property{
			"accountId": {
				Type:        "string",
				Description: "Account requesting the payout",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"amount": {
				Type:        "string",
				Description: "Requested gross amount as a decimal string",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(20),
			},
		},
		AdditionalProperties: true,
	}
}
