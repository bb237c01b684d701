// internal/workers/entitlement/session-refresh/validation.go
package sessionrefresh

import "settlement-engine/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"accountId"},
		Properties: map[string]validation.Property{
			"accountId": {
				Type:        "string",
				Description: "Account whose cached role and subscription are stale",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"reason": {
				Type:        "string",
				Description: "Why the refresh was requested, for the logs",
				MaxLength:   validation.IntPtr(200),
			},
		},
		AdditionalProperties: true,
	}
}
