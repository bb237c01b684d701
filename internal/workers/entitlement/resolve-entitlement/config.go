// internal/workers/entitlement/resolve-entitlement/config.go
package resolveentitlement

import (
	"fmt"
	"time"

	"settlement-engine/internal/common/config"
)

// ConfigKey is the worker's entry under workers: in config.yaml.
const ConfigKey = "resolve-entitlement"

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 10 * time.Second}
}

// ConfigFromApp reads the worker section of the application config.
func ConfigFromApp(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if wcfg := config.GetWorkerConfig(cfg, ConfigKey); wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
