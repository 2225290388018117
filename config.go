// config.go: configuration for Xanthos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"time"

	"github.com/agilira/go-timecache"
)

// EvictionPolicy selects the strategy used when inserting an entry would
// exceed the entry-count or memory budget.
type EvictionPolicy string

const (
	// PolicyLRU evicts the entry with the oldest most-recent access.
	PolicyLRU EvictionPolicy = "lru"

	// PolicyLFU evicts the entry with the lowest access count.
	PolicyLFU EvictionPolicy = "lfu"

	// PolicyFIFO evicts the entry with the oldest creation time,
	// irrespective of access.
	PolicyFIFO EvictionPolicy = "fifo"

	// PolicyLRUK evicts the entry whose K-th-most-recent access is oldest.
	// Entries accessed fewer than K times are preferred eviction targets,
	// protecting entries with sustained repeat access from one-off scans.
	PolicyLRUK EvictionPolicy = "lru-k"
)

// Config holds configuration parameters for the cache.
type Config struct {
	// MaxSize is the maximum number of entries the cache can hold.
	// Must be > 0. Default: DefaultMaxSize.
	MaxSize int

	// MaxMemoryMB caps the estimated memory usage of stored entries.
	// If 0, memory is unbounded (only MaxSize applies).
	MaxMemoryMB int

	// DefaultTTL is the requested time-to-live for entries stored without
	// an explicit TTL. If 0, entries never expire.
	DefaultTTL time.Duration

	// NegativeTTL is the time-to-live for "known absent" marks created by
	// failed fetches. If 0, the negative cache is disabled.
	// Recommended: 1-30 seconds for most upstreams.
	NegativeTTL time.Duration

	// EvictionPolicy selects the eviction strategy.
	// Default: PolicyLRU. An unrecognized value fails validation.
	EvictionPolicy EvictionPolicy

	// LRUKValue is the K used by PolicyLRUK. Must be >= 2 when set and,
	// under PolicyLRUK, must not exceed AccessHistoryLimit.
	// Default: DefaultLRUKValue. Ignored by other policies.
	LRUKValue int

	// RefreshThreshold is the remaining-TTL fraction below which a hit in
	// GetWithRefresh schedules a background refresh. Must be in (0, 1)
	// when set. Default: DefaultRefreshThreshold.
	RefreshThreshold float64

	// CompressionThreshold is the serialized size in bytes above which an
	// entry's payload is stored compressed. If 0, values are never
	// compressed.
	CompressionThreshold int

	// AccessHistoryLimit bounds the per-entry access history used by the
	// adaptive-TTL policy. Default: DefaultAccessHistoryLimit.
	AccessHistoryLimit int

	// SegmentSize shards the entry table into segments of roughly this
	// many entries to bound per-segment eviction scans. If 0, a single
	// table is used.
	SegmentSize int

	// SweepInterval is how often the background sweep evicts expired
	// entries. Default: DefaultTTL/10, at least one second.
	SweepInterval time.Duration

	// PersistencePath is the snapshot file path. If empty, persistence
	// is disabled.
	PersistencePath string

	// PersistInterval is how often to save a snapshot while running.
	// If 0, a snapshot is saved only on Stop.
	PersistInterval time.Duration

	// Breaker guards the upstream fetch path.
	// If nil, a default breaker is created with DefaultBreakerConfig.
	Breaker CircuitBreaker

	// Persistence loads and saves snapshots.
	// If nil and PersistencePath is set, a FileBackend is used.
	Persistence PersistenceBackend

	// Logger is used for persistence failures, sweep activity and
	// hot-reload events. If nil, NoOpLogger is used.
	Logger Logger

	// TimeProvider provides current time for TTL calculations.
	// If nil, a default implementation is used. Default: system time.
	TimeProvider TimeProvider

	// MetricsCollector is used for collecting operation metrics.
	// If nil, NoOpMetricsCollector is used (zero overhead).
	MetricsCollector MetricsCollector

	// OnEvict is called when an entry is evicted under a budget.
	// This callback must be fast and non-blocking.
	OnEvict func(key string, value interface{})

	// OnExpire is called when an entry is removed by TTL expiry.
	// This callback must be fast and non-blocking.
	OnExpire func(key string, value interface{})
}

// Validate checks configuration parameters and applies defaults.
//
// Unlike purely normalizing validators, Validate fails fast on values
// that signal caller bugs: an explicitly negative MaxSize, an
// unrecognized EvictionPolicy, an out-of-range RefreshThreshold or an
// LRUKValue below 2 or, under PolicyLRUK, above the access history
// limit. Zero values mean "use the default".
func (c *Config) Validate() error {
	if c.MaxSize < 0 {
		return NewErrInvalidMaxSize(c.MaxSize)
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}

	switch c.EvictionPolicy {
	case "":
		c.EvictionPolicy = PolicyLRU
	case PolicyLRU, PolicyLFU, PolicyFIFO, PolicyLRUK:
	default:
		return NewErrInvalidPolicy(string(c.EvictionPolicy))
	}

	if c.LRUKValue == 0 {
		c.LRUKValue = DefaultLRUKValue
	} else if c.LRUKValue < 2 {
		return NewErrInvalidLRUKValue(c.LRUKValue)
	}

	if c.RefreshThreshold == 0 {
		c.RefreshThreshold = DefaultRefreshThreshold
	} else if c.RefreshThreshold <= 0 || c.RefreshThreshold >= 1 {
		return NewErrInvalidRefreshThreshold(c.RefreshThreshold)
	}

	if c.AccessHistoryLimit <= 0 {
		c.AccessHistoryLimit = DefaultAccessHistoryLimit
	}
	if c.EvictionPolicy == PolicyLRUK && c.LRUKValue > c.AccessHistoryLimit {
		return NewErrLRUKValueTooLarge(c.LRUKValue, c.AccessHistoryLimit)
	}

	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
		if c.DefaultTTL > 0 {
			c.SweepInterval = c.DefaultTTL / 10
			if c.SweepInterval < time.Second {
				c.SweepInterval = time.Second
			}
		}
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}

	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	if c.Breaker == nil {
		c.Breaker = NewBreaker(DefaultBreakerConfig())
	}

	if c.Persistence == nil && c.PersistencePath != "" {
		c.Persistence = NewFileBackend(c.Logger)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:            DefaultMaxSize,
		EvictionPolicy:     PolicyLRU,
		LRUKValue:          DefaultLRUKValue,
		RefreshThreshold:   DefaultRefreshThreshold,
		AccessHistoryLimit: DefaultAccessHistoryLimit,
		SweepInterval:      DefaultSweepInterval,
		Logger:             NoOpLogger{},
		TimeProvider:       &systemTimeProvider{},
		MetricsCollector:   NoOpMetricsCollector{},
	}
}

// systemTimeProvider is the default time provider using go-timecache.
// This provides much faster time access compared to time.Now() with zero
// allocations.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}
