// hot-reload_test.go: dynamic configuration tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"testing"
	"time"
)

func TestNewHotConfigRequiresPath(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10})
	if _, err := NewHotConfig(c, HotConfigOptions{}); err == nil {
		t.Error("expected error for missing config path")
	}
}

func TestParseDurationValues(t *testing.T) {
	if d, ok := parseDuration("5m"); !ok || d != 5*time.Minute {
		t.Errorf("parseDuration(5m) = (%v, %v)", d, ok)
	}
	if _, ok := parseDuration("not a duration"); ok {
		t.Error("parseDuration accepted garbage")
	}
	if _, ok := parseDuration(42); ok {
		t.Error("parseDuration accepted a non-string")
	}
}

func TestParseFloatInRange(t *testing.T) {
	if v, ok := parseFloatInRange(0.5, 0, 1); !ok || v != 0.5 {
		t.Errorf("parseFloatInRange(0.5) = (%v, %v)", v, ok)
	}
	if _, ok := parseFloatInRange(1.0, 0, 1); ok {
		t.Error("range is exclusive at both ends")
	}
	if _, ok := parseFloatInRange("0.5", 0, 1); ok {
		t.Error("parseFloatInRange accepted a string")
	}
}

func TestParseConfigNestedSection(t *testing.T) {
	hc := &HotConfig{logger: NoOpLogger{}, config: DefaultConfig()}

	cfg := hc.parseConfig(map[string]interface{}{
		"cache": map[string]interface{}{
			"default_ttl":       "10m",
			"negative_ttl":      "45s",
			"refresh_threshold": 0.35,
		},
	})

	if cfg.DefaultTTL != 10*time.Minute {
		t.Errorf("DefaultTTL = %v, want 10m", cfg.DefaultTTL)
	}
	if cfg.NegativeTTL != 45*time.Second {
		t.Errorf("NegativeTTL = %v, want 45s", cfg.NegativeTTL)
	}
	if cfg.RefreshThreshold != 0.35 {
		t.Errorf("RefreshThreshold = %f, want 0.35", cfg.RefreshThreshold)
	}
}

func TestParseConfigFlatSection(t *testing.T) {
	hc := &HotConfig{logger: NoOpLogger{}, config: DefaultConfig()}

	cfg := hc.parseConfig(map[string]interface{}{
		"default_ttl": "1h",
	})
	if cfg.DefaultTTL != time.Hour {
		t.Errorf("DefaultTTL = %v, want 1h", cfg.DefaultTTL)
	}
}

func TestParseConfigIgnoresInvalidValues(t *testing.T) {
	hc := &HotConfig{logger: NoOpLogger{}, config: DefaultConfig()}

	cfg := hc.parseConfig(map[string]interface{}{
		"cache": map[string]interface{}{
			"default_ttl":       12345,
			"refresh_threshold": 2.0,
		},
	})

	if cfg.DefaultTTL != 0 {
		t.Errorf("invalid default_ttl applied: %v", cfg.DefaultTTL)
	}
	if cfg.RefreshThreshold != DefaultRefreshThreshold {
		t.Errorf("out-of-range refresh_threshold applied: %f", cfg.RefreshThreshold)
	}
}

func TestHandleConfigChangeAppliesRuntimeSettings(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{MaxSize: 10, TimeProvider: clock})
	sc := c.(*smartCache)

	var reloads int
	hc := &HotConfig{
		cache:    c,
		logger:   NoOpLogger{},
		config:   DefaultConfig(),
		OnReload: func(oldConfig, newConfig Config) { reloads++ },
	}

	hc.handleConfigChange(map[string]interface{}{
		"cache": map[string]interface{}{
			"default_ttl":       "2m",
			"negative_ttl":      "20s",
			"refresh_threshold": 0.4,
		},
	})

	if sc.defaultTTL() != 2*time.Minute {
		t.Errorf("default TTL = %v after reload, want 2m", sc.defaultTTL())
	}
	if sc.refreshThreshold() != 0.4 {
		t.Errorf("refresh threshold = %f after reload, want 0.4", sc.refreshThreshold())
	}
	if !sc.negative.enabled() {
		t.Error("negative cache not enabled by reloaded TTL")
	}
	if reloads != 1 {
		t.Errorf("OnReload fired %d times, want 1", reloads)
	}
	if got := hc.GetConfig(); got.DefaultTTL != 2*time.Minute {
		t.Errorf("GetConfig().DefaultTTL = %v, want 2m", got.DefaultTTL)
	}

	// The new default TTL governs subsequent Sets.
	if err := c.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.advance(3 * time.Minute)
	if _, found := c.Get("k"); found {
		t.Error("entry outlived the reloaded default TTL")
	}
}
