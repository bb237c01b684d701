// internal/workers/entitlement/check-feature-access/config.go
package checkfeatureaccess

import (
	"time"

	"settlement-engine/internal/common/config"
)

const ConfigKey = "check-feature-access"

type Config struct {
	Timeout time.Duration
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := &Config{Timeout: 10 * time.Second}
	if cfg == nil {
		return c
	}
	if wcfg := config.GetWorkerConfig(cfg, ConfigKey); wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}
