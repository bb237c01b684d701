// internal/workers/entitlement/check-feature-access/validation.go
package checkfeatureaccess

import (
	"settlement-engine/internal/common/validation"
	"settlement-engine/internal/models"
	resolveentitlement "settlement-engine/internal/workers/entitlement/resolve-entitlement"
)

func GetInputSchema() validation.JSONSchema {
	features := make([]string, 0, len(models.AllFeatures))
	for _, f := range models.AllFeatures {
		features = append(features, string(f))
	}

	props := resolveentitlement.AuthStateProperties()
	props["feature"] = validation.Property{
		Type:        "string",
		Description: "Gated feature to check",
		Enum:        features,
	}

	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"accountId", "feature"},
		Properties:           props,
		AdditionalProperties: true,
	}
}
