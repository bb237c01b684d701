package config

import (
	"os"
	"path/filepath"
	"testing"

	"settlement-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: settlement
    user: ${SETTLEMENT_TEST_DB_USER}
workers:
  request-payout:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("SETTLEMENT_TEST_DB_USER", "ledger")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "ledger", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, RoleLookupPostgres, cfg.Entitlement.RoleLookup)
	assert.Equal(t, RoleCacheMemory, cfg.Entitlement.RoleCache)
	assert.Len(t, cfg.Entitlement.Prices, 4)
	assert.Equal(t, "payout-audit", cfg.Payout.AuditIndex)
	assert.Equal(t, models.Cents(2000), cfg.Payout.MinimumPayout())
	assert.Equal(t, models.Cents(25), cfg.Payout.Fee())

	wc := GetWorkerConfig(cfg, "request-payout")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 30000, wc.Timeout)
	assert.True(t, GetWorkerConfig(cfg, "unknown-worker").Enabled)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{
			name: "missing broker",
			body: "database:\n  postgres:\n    host: h\n    database: d\n    user: u\n",
			msg:  "camunda.broker_address",
		},
		{
			name: "redis cache without address",
			body: minimalYAML + "entitlement:\n  role_cache: redis\n",
			msg:  "database.redis.address",
		},
		{
			name: "keycloak lookup without realm",
			body: minimalYAML + "entitlement:\n  role_lookup: keycloak\n",
			msg:  "auth.keycloak",
		},
		{
			name: "fee above minimum",
			body: minimalYAML + "payout:\n  minimum_amount: \"1.00\"\n  transfer_fee: \"2.00\"\n",
			msg:  "transfer_fee",
		},
		{
			name: "unknown plan",
			body: minimalYAML + "entitlement:\n  prices:\n    - id: p1\n      plan: gold\n",
			msg:  "unknown plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SETTLEMENT_TEST_DB_USER", "ledger")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
