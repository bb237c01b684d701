package role

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"settlement-engine/internal/common/auth"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLookup(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m sqlmock.Sqlmock)
		want    models.Role
		wantErr error
	}{
		{
			name: "admin row",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT role FROM profiles WHERE id = \$1`).
					WithArgs("acct-1").
					WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
			},
			want: models.RoleAdmin,
		},
		{
			name: "null role is user",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT role FROM profiles`).
					WithArgs("acct-1").
					WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(nil))
			},
			want: models.RoleUser,
		},
		{
			name: "missing profile is user",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT role FROM profiles`).
					WithArgs("acct-1").
					WillReturnRows(sqlmock.NewRows([]string{"role"}))
			},
			want: models.RoleUser,
		},
		{
			name: "auth failure is a credential error",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT role FROM profiles`).
					WithArgs("acct-1").
					WillReturnError(&pq.Error{Code: "28P01", Message: "password authentication failed"})
			},
			wantErr: ErrCredentialExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, m, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(m)

			role, err := NewPostgresLookup(db).LookupRole(context.Background(), "acct-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, role)
			}
			assert.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestPostgresLookup_OtherErrorIsWrapped(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	m.ExpectQuery(`SELECT role FROM profiles`).WillReturnError(errors.New("conn reset"))

	_, err = NewPostgresLookup(db).LookupRole(context.Background(), "acct-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialExpired)
}

type stubRealmRoles struct {
	roles []string
	err   error
}

func (s stubRealmRoles) GetRealmRoles(context.Context, string) ([]string, error) {
	return s.roles, s.err
}

func TestKeycloakLookup(t *testing.T) {
	ctx := context.Background()

	role, err := NewKeycloakLookup(stubRealmRoles{roles: []string{"offline_access", "ADMIN"}}, "").LookupRole(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	role, err = NewKeycloakLookup(stubRealmRoles{roles: []string{"offline_access"}}, "").LookupRole(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	role, err = NewKeycloakLookup(stubRealmRoles{err: auth.ErrUserNotFound}, "").LookupRole(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	role, err = NewKeycloakLookup(stubRealmRoles{roles: []string{"platform-admin"}}, "platform-admin").LookupRole(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
}

// An expired service credential must leave the account unresolved, never a plain user.
func TestExpiredKeycloakCredentialLeavesRoleUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
	}))
	defer srv.Close()

	kc := auth.NewKeycloakClient(srv.URL, "app", "engine", "stale-secret", time.Second)
	r := NewResolver(NewMemoryCache(0), NewKeycloakLookup(kc, ""), logger.NewTestLogger(t))

	res := r.Resolve(context.Background(), Input{AccountID: "acct-1"})

	assert.Equal(t, models.RoleUnresolved, res.Role)
	assert.Equal(t, models.RoleSourceLookup, res.Source)
	assert.False(t, res.IsSettled())
}
