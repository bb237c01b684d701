// internal/workers/entitlement/session-refresh/config.go
package sessionrefresh

import (
	"time"

	"settlement-engine/internal/common/config"
)

const ConfigKey = "session-refresh"

type Config struct {
	Timeout time.Duration
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := &Config{Timeout: 5 * time.Second}
	if cfg == nil {
		return c
	}
	if wcfg := config.GetWorkerConfig(cfg, ConfigKey); wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}
