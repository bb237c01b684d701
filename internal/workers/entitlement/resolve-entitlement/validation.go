// internal/workers/entitlement/resolve-entitlement/validation.go
package resolveentitlement

import "settlement-engine/internal/common/validation"

// AuthStateProperties is shared with the other entitlement workers.
func AuthStateProperties() map[string]validation.Property {
	return map[string]validation.Property{
		"accountId": {
			Type:        "string",
			Description: "Account whose entitlement is resolved; empty while signed out",
			MaxLength:   validation.IntPtr(128),
		},
		"loading": {
			Type:        "boolean",
			Description: "Auth provider has not settled yet",
		},
		"roleContext": {
			Type:        "object",
			Description: "Role supplied by the caller; a null role means not yet known",
			Properties: map[string]validation.Property{
				"role": {Type: "string", Enum: []string{"admin", "user"}, Nullable: true},
			},
		},
		"metadataRole": {
			Type:      "string",
			MaxLength: validation.IntPtr(64),
		},
		"secondaryMetadataRole": {
			Type:      "string",
			MaxLength: validation.IntPtr(64),
		},
	}
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"accountId"},
		Properties:           AuthStateProperties(),
		AdditionalProperties: true,
	}
}
