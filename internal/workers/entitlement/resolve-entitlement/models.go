// internal/workers/entitlement/resolve-entitlement/models.go
package resolveentitlement

import "settlement-engine/internal/models"

// Input is the auth state of the account whose entitlement is requested.
type Input = models.AuthState

type Output struct {
	EntitlementReady   bool                `json:"entitlementReady"`
	RolePending        bool                `json:"rolePending"`
	Role               models.Role         `json:"role,omitempty"`
	RoleSource         models.RoleSource   `json:"roleSource,omitempty"`
	Plan               models.Plan         `json:"plan,omitempty"`
	Entitlement        *models.Entitlement `json:"entitlement,omitempty"`
	SubscriptionStatus string              `json:"subscriptionStatus,omitempty"`
}
