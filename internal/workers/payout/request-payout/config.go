// internal/workers/payout/request-payout/config.go
package requestpayout

import (
	"time"

	"settlement-engine/internal/common/config"
)

const ConfigKey = "request-payout"

type Config struct {
	Timeout time.Duration
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := &Config{Timeout: 15 * time.Second}
	if cfg == nil {
		return c
	}
	if wcfg := config.GetWorkerConfig(cfg, ConfigKey); wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}
