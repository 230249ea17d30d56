// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Holder of the effective configuration, exposed to debug probes.

package control

import (
	"sync/atomic"

	"github.com/momentics/hioload-httpd/config"
)

// ConfigStore publishes the configuration the reactor was started with.
type ConfigStore struct {
	current atomic.Pointer[config.Config]
}

// NewConfigStore stores cfg.
func NewConfigStore(cfg *config.Config) *ConfigStore {
	cs := &ConfigStore{}
	cs.Set(cfg)
	return cs
}

// Set replaces the stored configuration.
func (cs *ConfigStore) Set(cfg *config.Config) {
	cs.current.Store(cfg)
}

// Get returns the stored configuration, nil if none.
func (cs *ConfigStore) Get() *config.Config {
	return cs.current.Load()
}

// Register exposes the configuration as the "config" probe.
func (cs *ConfigStore) Register(dp *DebugProbes) {
	dp.RegisterProbe("config", func() any {
		return cs.Get()
	})
}
