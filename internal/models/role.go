package models

import (
	"strings"
	"time"
)

// Role is the account's authorization role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleUnresolved Role = "unresolved"
)

// RoleSource records where a resolved role came from.
type RoleSource string

const (
	RoleSourceContext  RoleSource = "context"
	RoleSourceMetadata RoleSource = "metadata"
	RoleSourceCache    RoleSource = "cache"
	RoleSourceLookup   RoleSource = "lookup"
	RoleSourceNone     RoleSource = "none"
)

// RoleResolution is the outcome of one role resolution pass.
// Pending means the auth provider has not settled yet and no guess was made.
type RoleResolution struct {
	Role       Role       `json:"role"`
	Pending    bool       `json:"pending"`
	Source     RoleSource `json:"source"`
	ResolvedAt time.Time  `json:"resolvedAt"`
}

// IsSettled reports whether the resolution carries a usable role.
func (r RoleResolution) IsSettled() bool {
	return !r.Pending && (r.Role == RoleAdmin || r.Role == RoleUser)
}

// ParseRole normalises a raw role claim. Empty input yields ok=false so the
// caller can fall through to the next source. Anything other than "admin"
// is treated as a plain user.
func ParseRole(raw string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "":
		return "", false
	case string(RoleAdmin):
		return RoleAdmin, true
	default:
		return RoleUser, true
	}
}
