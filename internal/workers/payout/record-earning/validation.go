// internal/workers/payout/record-earning/validation.go
package recordearning

import "settlement-engine/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"referrerId", "amount"},
		Properties: map[string]validation.Property{
			"earningId": {
				Type:        "string",
				Description: "Stable id of the commission event; derived from the job when absent",
				MaxLength:   validation.IntPtr(64),
			},
			"referrerId": {
				Type:      "string",
				MinLength: validation.IntPtr(1),
				MaxLength: validation.IntPtr(128),
			},
			"referredAccountId": {
				Type:      "string",
				MaxLength: validation.IntPtr(128),
			},
			"amount": {
				Type:        "string",
				Description: "Commission as a decimal string",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(20),
			},
			"occurredAt": {
				Type:        "string",
				Description: "RFC 3339 time of the conversion",
			},
		},
		AdditionalProperties: true,
	}
}
