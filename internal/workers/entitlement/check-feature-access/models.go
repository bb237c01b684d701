// internal/workers/entitlement/check-feature-access/models.go
package checkfeatureaccess

import "settlement-engine/internal/models"

type Input struct {
	models.AuthState
	Feature models.Feature `json:"feature"`
}

// Output carries the access answer. Decided is false when the entitlement
// was not available and the answer is the fail-closed default.
type Output struct {
	Feature models.Feature `json:"feature"`
	Allowed bool           `json:"accessAllowed"`
	Decided bool           `json:"accessDecided"`
	Plan    models.Plan    `json:"plan,omitempty"`
	IsAdmin bool           `json:"isAdmin"`
}
