// hot-reload.go: dynamic configuration with Argus integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// runtimeTunable is implemented by caches whose TTL and refresh
// parameters can change while running.
type runtimeTunable interface {
	setDefaultTTL(ttl time.Duration)
	setRefreshThreshold(threshold float64)
	setNegativeTTL(ttl time.Duration)
}

// HotConfig provides dynamic configuration reload capabilities using
// Argus. It watches a configuration file and applies the runtime-tunable
// settings to a running cache when changes are detected.
type HotConfig struct {
	cache   Cache
	logger  Logger
	watcher *argus.Watcher
	mu      sync.RWMutex
	config  Config

	// OnReload is called after configuration is successfully reloaded.
	// This callback is optional and must be fast and non-blocking.
	OnReload func(oldConfig, newConfig Config)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the configuration file to watch.
	// Supports JSON, YAML, TOML, HCL, INI, Properties formats.
	ConfigPath string

	// PollInterval is how often to check for configuration changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after configuration is successfully reloaded.
	OnReload func(oldConfig, newConfig Config)

	// Logger for hot reload operations.
	Logger Logger
}

// NewHotConfig creates a new hot-reloadable configuration for a cache.
//
// Example configuration file (YAML):
//
//	cache:
//	  default_ttl: "5m"
//	  negative_ttl: "30s"
//	  refresh_threshold: 0.2
//
// Supported configuration keys:
//   - cache.default_ttl (duration string): TTL applied by Set
//   - cache.negative_ttl (duration string): negative cache mark lifetime
//   - cache.refresh_threshold (float): stale-while-revalidate fraction (0.0-1.0)
//
// Note: Changes to MaxSize, MaxMemoryMB, the eviction policy or the
// segment layout require cache reconstruction and are not applied
// dynamically. Only the TTL and refresh parameters above can be
// hot-reloaded without disruption.
func NewHotConfig(cache Cache, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	if opts.Logger == nil {
		opts.Logger = NoOpLogger{}
	}

	hc := &HotConfig{
		cache:    cache,
		logger:   opts.Logger,
		OnReload: opts.OnReload,
		config:   DefaultConfig(),
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the current configuration (thread-safe).
func (hc *HotConfig) GetConfig() Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.config
}

// handleConfigChange is called by Argus when configuration changes.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldConfig := hc.config
	newConfig := hc.parseConfig(configData)
	hc.config = newConfig
	hc.mu.Unlock()

	hc.applyChanges(oldConfig, newConfig)

	if hc.OnReload != nil {
		hc.OnReload(oldConfig, newConfig)
	}
}

// parseDuration extracts a time.Duration from a string value.
func parseDuration(value interface{}) (time.Duration, bool) {
	if str, ok := value.(string); ok {
		if d, err := time.ParseDuration(str); err == nil {
			return d, true
		}
	}
	return 0, false
}

// parseFloatInRange extracts a float64 within the range (min, max).
func parseFloatInRange(value interface{}, min, max float64) (float64, bool) {
	if v, ok := value.(float64); ok {
		if v > min && v < max {
			return v, true
		}
	}
	return 0, false
}

// parseConfig extracts cache configuration from Argus config data.
func (hc *HotConfig) parseConfig(data map[string]interface{}) Config {
	config := DefaultConfig()

	// Argus might nest the cache section or provide it directly.
	cacheSection, ok := data["cache"].(map[string]interface{})
	if !ok {
		if _, hasTTL := data["default_ttl"]; hasTTL {
			cacheSection = data
		} else {
			return config
		}
	}

	if ttl, ok := parseDuration(cacheSection["default_ttl"]); ok {
		config.DefaultTTL = ttl
	}

	if ttl, ok := parseDuration(cacheSection["negative_ttl"]); ok {
		config.NegativeTTL = ttl
	}

	// Threshold must stay inside (0, 1) exclusive.
	if threshold, ok := parseFloatInRange(cacheSection["refresh_threshold"], 0, 1); ok {
		config.RefreshThreshold = threshold
	}

	return config
}

// applyChanges pushes the runtime-tunable settings into the cache.
// Structural settings (MaxSize, policy, segments) are intentionally not
// applied; they require reconstruction.
func (hc *HotConfig) applyChanges(old, updated Config) {
	tunable, ok := hc.cache.(runtimeTunable)
	if !ok {
		return
	}

	if old.DefaultTTL != updated.DefaultTTL {
		tunable.setDefaultTTL(updated.DefaultTTL)
		hc.logger.Info("default TTL reloaded", "ttl", updated.DefaultTTL.String())
	}
	if old.NegativeTTL != updated.NegativeTTL {
		tunable.setNegativeTTL(updated.NegativeTTL)
		hc.logger.Info("negative TTL reloaded", "ttl", updated.NegativeTTL.String())
	}
	if old.RefreshThreshold != updated.RefreshThreshold {
		tunable.setRefreshThreshold(updated.RefreshThreshold)
		hc.logger.Info("refresh threshold reloaded", "threshold", updated.RefreshThreshold)
	}
}
