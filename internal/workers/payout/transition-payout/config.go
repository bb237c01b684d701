// internal/workers/payout/transition-payout/config.go
package transitionpayout

import (
	"time"

	"settlement-engine/internal/common/config"
)

const ConfigKey = "transition-payout"

type Config struct {
	Timeout time.Duration
	// DefaultActor is recorded on audit events when the job names none.
	DefaultActor string
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := &Config{Timeout: 15 * time.Second, DefaultActor: "workflow"}
	if cfg == nil {
		return c
	}
	if wcfg := config.GetWorkerConfig(cfg, ConfigKey); wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}
