// internal/workers/payout/transition-payout/validation.go
package transitionpayout

import "settlement-engine/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"payoutRequestId", "targetStatus"},
		Properties: map[string]validation.Property{
			"payoutRequestId": {
				Type:      "string",
				MinLength: validation.IntPtr(1),
				MaxLength: validation.IntPtr(64),
			},
			"targetStatus": {
				Type:        "string",
				Description: "Status to move the request to",
				Enum:        []string{"processing", "completed", "failed", "cancelled"},
			},
			"reason": {
				Type:      "string",
				MaxLength: validation.IntPtr(500),
			},
			"transferId": {
				Type:        "string",
				Description: "Processor transfer id, recorded on completion",
				MaxLength:   validation.IntPtr(128),
			},
			"actor": {
				Type:      "string",
				MaxLength: validation.IntPtr(128),
			},
		},
		AdditionalProperties: true,
	}
}
