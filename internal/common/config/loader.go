// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"settlement-engine/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPrices is the price table used when entitlement.prices is not configured.
var DefaultPrices = []PriceConfig{
	{ID: "price_pro_monthly", Plan: "pro", Period: "monthly", Label: "Pro (monthly)"},
	{ID: "price_pro_yearly", Plan: "pro", Period: "yearly", Label: "Pro (yearly)"},
	{ID: "price_excellence_monthly", Plan: "excellence", Period: "monthly", Label: "Excellence (monthly)"},
	{ID: "price_excellence_yearly", Plan: "excellence", Period: "yearly", Label: "Excellence (yearly)"},
}

// Load reads configs/config.yaml, merges the APP_ENVIRONMENT overlay and
// expands ${VAR} placeholders from the environment and any .env file found.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if secrets are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Auth.Keycloak.ClientSecret == "" {
		cfg.Auth.Keycloak.ClientSecret = os.Getenv("KEYCLOAK_CLIENT_SECRET")
	}
	if cfg.Notifications.AWS.TopicARN == "" {
		cfg.Notifications.AWS.TopicARN = os.Getenv("PAYOUT_TOPIC_ARN")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "settlement-engine"
	}
	if cfg.App.HTTPPort == 0 {
		cfg.App.HTTPPort = 8080
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Auth.Keycloak.Timeout == 0 {
		cfg.Auth.Keycloak.Timeout = 5000
	}

	if cfg.Entitlement.RoleLookup == "" {
		cfg.Entitlement.RoleLookup = RoleLookupPostgres
	}
	if cfg.Entitlement.RoleCache == "" {
		cfg.Entitlement.RoleCache = RoleCacheMemory
	}
	if cfg.Entitlement.RoleCacheTTL == 0 {
		cfg.Entitlement.RoleCacheTTL = 1800
	}
	if cfg.Entitlement.LookupTimeout == 0 {
		cfg.Entitlement.LookupTimeout = 3000
	}
	if cfg.Entitlement.SubscriptionTimeout == 0 {
		cfg.Entitlement.SubscriptionTimeout = 3000
	}
	if len(cfg.Entitlement.Prices) == 0 {
		cfg.Entitlement.Prices = append([]PriceConfig(nil), DefaultPrices...)
	}

	if cfg.Payout.MinimumAmount == "" {
		cfg.Payout.MinimumAmount = "20.00"
	}
	if cfg.Payout.TransferFee == "" {
		cfg.Payout.TransferFee = "0.25"
	}
	if cfg.Payout.Currency == "" {
		cfg.Payout.Currency = "EUR"
	}
	if cfg.Payout.AuditIndex == "" {
		cfg.Payout.AuditIndex = "payout-audit"
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "eu-west-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	switch cfg.Entitlement.RoleLookup {
	case RoleLookupPostgres:
	case RoleLookupKeycloak:
		if cfg.Auth.Keycloak.URL == "" || cfg.Auth.Keycloak.Realm == "" {
			return fmt.Errorf("auth.keycloak.url and realm are required for keycloak role lookup")
		}
	default:
		return fmt.Errorf("entitlement.role_lookup %q is not supported", cfg.Entitlement.RoleLookup)
	}

	switch cfg.Entitlement.RoleCache {
	case RoleCacheMemory:
	case RoleCacheRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis role cache")
		}
	default:
		return fmt.Errorf("entitlement.role_cache %q is not supported", cfg.Entitlement.RoleCache)
	}

	for _, p := range cfg.Entitlement.Prices {
		if p.ID == "" {
			return fmt.Errorf("entitlement.prices: id is required")
		}
		if p.Plan != string(models.PlanPro) && p.Plan != string(models.PlanExcellence) {
			return fmt.Errorf("entitlement.prices: price %s maps to unknown plan %q", p.ID, p.Plan)
		}
	}

	minimum, err := models.ParseAmount(cfg.Payout.MinimumAmount)
	if err != nil {
		return fmt.Errorf("payout.minimum_amount: %w", err)
	}
	fee, err := models.ParseAmount(cfg.Payout.TransferFee)
	if err != nil {
		return fmt.Errorf("payout.transfer_fee: %w", err)
	}
	if fee >= minimum {
		return fmt.Errorf("payout.transfer_fee must be below payout.minimum_amount")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// MinimumPayout returns the parsed payout minimum. Load has already validated it.
func (p PayoutConfig) MinimumPayout() models.Cents {
	c, _ := models.ParseAmount(p.MinimumAmount)
	return c
}

// Fee returns the parsed flat transfer fee.
func (p PayoutConfig) Fee() models.Cents {
	c, _ := models.ParseAmount(p.TransferFee)
	return c
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
