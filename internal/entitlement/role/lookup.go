package role

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"settlement-engine/internal/common/auth"
	"settlement-engine/internal/common/database"
	"settlement-engine/internal/models"

	"github.com/lib/pq"
)

// ErrCredentialExpired marks lookup failures caused by an expired or
// rejected credential. Such failures resolve to unresolved, never to user.
var ErrCredentialExpired = auth.ErrCredentialExpired

// Lookup is the backing role source consulted after metadata and cache.
type Lookup interface {
	LookupRole(ctx context.Context, accountID string) (models.Role, error)
}

// PostgresLookup reads the role column of the profiles table.
type PostgresLookup struct {
	db database.Queryer
}

func NewPostgresLookup(db database.Queryer) *PostgresLookup {
	return &PostgresLookup{db: db}
}

const selectProfileRole = `SELECT role FROM profiles WHERE id = $1`

func (l *PostgresLookup) LookupRole(ctx context.Context, accountID string) (models.Role, error) {
	var raw sql.NullString
	err := l.db.QueryRowContext(ctx, selectProfileRole, accountID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoleUser, nil
	}
	if err != nil {
		var pqErr *pq.Error
		// class 28: invalid authorization specification
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "28" {
			return "", fmt.Errorf("%w: %v", ErrCredentialExpired, err)
		}
		return "", fmt.Errorf("profile role lookup: %w", err)
	}

	role, ok := models.ParseRole(raw.String)
	if !ok {
		return models.RoleUser, nil
	}
	return role, nil
}

// RealmRoleReader is the part of the Keycloak client the lookup needs.
type RealmRoleReader interface {
	GetRealmRoles(ctx context.Context, userID string) ([]string, error)
}

// KeycloakLookup derives the role from the user's realm role mappings.
type KeycloakLookup struct {
	client    RealmRoleReader
	adminRole string
}

func NewKeycloakLookup(client RealmRoleReader, adminRole string) *KeycloakLookup {
	if adminRole == "" {
		adminRole = string(models.RoleAdmin)
	}
	return &KeycloakLookup{client: client, adminRole: adminRole}
}

func (l *KeycloakLookup) LookupRole(ctx context.Context, accountID string) (models.Role, error) {
	roles, err := l.client.GetRealmRoles(ctx, accountID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", err
	}

	for _, name := range roles {
		if strings.EqualFold(name, l.adminRole) {
			return models.RoleAdmin, nil
		}
	}
	return models.RoleUser, nil
}
