// interfaces.go: public interfaces for Xanthos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"context"
	"time"
)

// FetchFunc loads a value from the upstream on a cache miss or refresh.
// It is supplied per call site by the caller; the cache never constructs
// upstream requests itself.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Cache represents the adaptive caching engine.
// All methods must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns the value and true if found, nil and false otherwise.
	// A miss for a key marked "known absent" is counted as a negative hit.
	Get(key string) (value interface{}, found bool)

	// Set stores a key-value pair with the cache's default TTL.
	// Returns a XANTHOS_CAPACITY_EXCEEDED error if the entry alone cannot
	// fit within the memory budget even after maximal eviction.
	Set(key string, value interface{}) error

	// SetWithTTL stores a key-value pair with an explicit requested TTL.
	// The effective TTL may be stretched or shrunk by the adaptive-TTL
	// policy based on the key's recorded access history.
	SetWithTTL(key string, value interface{}, ttl time.Duration) error

	// Delete removes one or more entries and returns the count actually
	// removed. Absent keys are not an error.
	Delete(keys ...string) int

	// GetWithRefresh returns the cached value, refreshing it in the
	// background when its remaining TTL fraction falls below the refresh
	// threshold (stale-while-revalidate). On a hard miss the caller is
	// suspended until the coalesced fetch resolves, the circuit breaker
	// refuses the call, or ctx is done. Abandoning the wait never cancels
	// the underlying fetch for other waiters.
	GetWithRefresh(ctx context.Context, key string, fetch FetchFunc) (interface{}, error)

	// ScanAndDelete enumerates keys matching the pattern through the key
	// store and deletes each, returning the count removed. The scan is a
	// best-effort snapshot; individual deletes are atomic.
	ScanAndDelete(pattern string) int

	// Has checks if a key exists in the cache without retrieving the value.
	Has(key string) bool

	// Len returns the current number of entries.
	Len() int

	// Clear removes all entries and negative-cache marks.
	Clear()

	// Stats returns a snapshot of cache metrics.
	Stats() CacheStats

	// Start loads the persistence snapshot (if configured) and begins the
	// periodic expiry sweep and snapshot timers. Idempotent.
	Start() error

	// Stop cancels background timers and optionally saves a snapshot.
	// The cache must not leak timers or goroutines after Stop.
	Stop() error
}

// CacheStats provides a snapshot of cache metrics.
type CacheStats struct {
	// Hits is the number of cache hits
	Hits uint64

	// Misses is the number of cache misses
	Misses uint64

	// Sets is the number of successful set operations
	Sets uint64

	// Deletes is the number of entries removed by Delete/ScanAndDelete
	Deletes uint64

	// Evictions is the number of entries evicted under the size or
	// memory budget
	Evictions uint64

	// Expirations is the number of entries removed by TTL expiry
	Expirations uint64

	// NegativeHits is the number of misses answered by the negative cache
	NegativeHits uint64

	// CoalescedCalls is the number of fetches avoided by single-flight
	CoalescedCalls uint64

	// MemoryBytes is the current estimated memory usage
	MemoryBytes int64

	// Size is the current number of entries
	Size int

	// Capacity is the maximum number of entries the cache can hold
	Capacity int
}

// HitRatio returns the cache hit ratio as a percentage (0-100).
// Returns 0.0 if no Get operations have been performed yet.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// BreakerState is the observable state of a circuit breaker.
type BreakerState int32

const (
	// BreakerClosed - requests pass through
	BreakerClosed BreakerState = iota
	// BreakerOpen - requests are refused
	BreakerOpen
	// BreakerHalfOpen - limited probe requests are allowed
	BreakerHalfOpen
)

// String returns the canonical name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards the upstream fetch path. The cache consumes this
// interface; a default implementation is provided by NewBreaker.
type CircuitBreaker interface {
	// Allow reports whether a call may proceed right now.
	// In the half-open state it admits a bounded number of probes.
	Allow() bool

	// RecordSuccess records a successful upstream call.
	RecordSuccess()

	// RecordFailure records a failed upstream call.
	RecordFailure()

	// State returns the current breaker state.
	State() BreakerState
}

// SnapshotEntry is the serialized form of a cache entry in a persistence
// snapshot. Value is the JSON encoding of the stored value; AccessHistory
// carries the timestamps needed to reproduce adaptive-TTL decisions.
type SnapshotEntry struct {
	Key           string  `json:"key"`
	Value         []byte  `json:"value"`
	CreatedAt     int64   `json:"created_at"`
	ExpiresAt     int64   `json:"expires_at"`
	AccessHistory []int64 `json:"access_history,omitempty"`
	AccessCount   int64   `json:"access_count,omitempty"`
	UpdateCount   int64   `json:"update_count"`
}

// PersistenceBackend loads and saves cache snapshots. Both operations are
// fallible; failures degrade the cache to memory-only operation and are
// never fatal.
type PersistenceBackend interface {
	Load(path string) (map[string]SnapshotEntry, error)
	Save(path string, entries map[string]SnapshotEntry) error
}

// Logger defines a minimal logging interface with zero overhead.
// Implementations should use structured logging and be allocation-free.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})

	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
}

// NoOpLogger is a logger that does nothing. Used as default to avoid nil checks.
type NoOpLogger struct{}

// Debug does nothing (no-op implementation).
func (NoOpLogger) Debug(msg string, keyvals ...interface{}) {}

// Info does nothing (no-op implementation).
func (NoOpLogger) Info(msg string, keyvals ...interface{}) {}

// Warn does nothing (no-op implementation).
func (NoOpLogger) Warn(msg string, keyvals ...interface{}) {}

// Error does nothing (no-op implementation).
func (NoOpLogger) Error(msg string, keyvals ...interface{}) {}

// TimeProvider provides current time with caching for performance.
// This interface allows injecting optimized time implementations.
type TimeProvider interface {
	// Now returns the current time in nanoseconds since epoch.
	// This method must be very fast and allocation-free.
	Now() int64
}

// MetricsCollector defines an interface for collecting cache operation
// metrics. Implementations can send metrics to Prometheus, StatsD, or
// other monitoring systems. All methods must be safe for concurrent use
// and cheap enough for the hot path.
type MetricsCollector interface {
	// RecordGet records a Get operation with its latency and hit/miss result.
	RecordGet(latencyNs int64, hit bool)

	// RecordSet records a Set operation with its latency.
	RecordSet(latencyNs int64)

	// RecordDelete records a Delete operation with its latency.
	RecordDelete(latencyNs int64)

	// RecordEviction records a budget-driven eviction.
	RecordEviction()

	// RecordNegativeHit records a miss answered by the negative cache.
	RecordNegativeHit()

	// RecordCoalesced records a fetch avoided by request coalescing.
	RecordCoalesced()

	// RecordMemoryUsage records the current estimated memory usage.
	RecordMemoryUsage(bytes int64)
}

// NoOpMetricsCollector is a metrics collector that does nothing.
// Used as default to avoid nil checks and ensure zero overhead.
type NoOpMetricsCollector struct{}

// RecordGet does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordGet(latencyNs int64, hit bool) {}

// RecordSet does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordSet(latencyNs int64) {}

// RecordDelete does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordDelete(latencyNs int64) {}

// RecordEviction does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordEviction() {}

// RecordNegativeHit does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordNegativeHit() {}

// RecordCoalesced does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordCoalesced() {}

// RecordMemoryUsage does nothing. Inlined by compiler.
func (NoOpMetricsCollector) RecordMemoryUsage(bytes int64) {}
