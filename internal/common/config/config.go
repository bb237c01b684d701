// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Entitlement   EntitlementConfig       `mapstructure:"entitlement"`
	Payout        PayoutConfig            `mapstructure:"payout"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether an Elasticsearch cluster is configured at all.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Domain Configuration Sections ---

// AuthConfig holds the Keycloak client used for role lookups.
type AuthConfig struct {
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

// Role lookup and cache backends.
const (
	RoleLookupPostgres = "postgres"
	RoleLookupKeycloak = "keycloak"

	RoleCacheMemory = "memory"
	RoleCacheRedis  = "redis"
)

// EntitlementConfig configures role resolution and the price table.
type EntitlementConfig struct {
	RoleLookup          string        `mapstructure:"role_lookup"`
	RoleCache           string        `mapstructure:"role_cache"`
	RoleCacheTTL        int           `mapstructure:"role_cache_ttl"`       // seconds
	LookupTimeout       int           `mapstructure:"lookup_timeout"`       // milliseconds
	SubscriptionTimeout int           `mapstructure:"subscription_timeout"` // milliseconds
	Prices              []PriceConfig `mapstructure:"prices"`
}

// PriceConfig maps one billing price id to a plan.
type PriceConfig struct {
	ID     string `mapstructure:"id"`
	Plan   string `mapstructure:"plan"`
	Period string `mapstructure:"period"`
	Label  string `mapstructure:"label"`
}

// PayoutConfig holds the payout program constants. Amounts are decimal strings.
type PayoutConfig struct {
	MinimumAmount string `mapstructure:"minimum_amount"`
	TransferFee   string `mapstructure:"transfer_fee"`
	Currency      string `mapstructure:"currency"`
	AuditIndex    string `mapstructure:"audit_index"`
}

// NotificationConfig holds the payout status notifier settings.
type NotificationConfig struct {
	AWS struct {
		Region     string `mapstructure:"region"`
		TopicARN   string `mapstructure:"topic_arn"`
		FromEmail  string `mapstructure:"from_email"`
		OpsEmail   string `mapstructure:"ops_email"`
		SESEnabled bool   `mapstructure:"ses_enabled"`
		SNSEnabled bool   `mapstructure:"sns_enabled"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
