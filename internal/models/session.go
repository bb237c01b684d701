package models

// RoleContext is a role supplied by an outer collaborator. A non-nil context
// with a nil Role is authoritative "not yet known".
type RoleContext struct {
	Role *Role `json:"role"`
}

// AuthState is what the session/auth provider knows about the current account.
type AuthState struct {
	AccountID string `json:"accountId"`
	Loading   bool   `json:"loading"`

	RoleContext *RoleContext `json:"roleContext,omitempty"`

	// Raw role claims from account metadata, primary then secondary.
	MetadataRole          string `json:"metadataRole,omitempty"`
	SecondaryMetadataRole string `json:"secondaryMetadataRole,omitempty"`
}

// SameAccount reports whether two auth states refer to the same account.
func (a AuthState) SameAccount(other AuthState) bool {
	return a.AccountID == other.AccountID
}
