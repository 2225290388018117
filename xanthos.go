// Package xanthos provides an adaptive in-memory caching engine for
// slow, rate-limited upstreams.
//
// Xanthos combines pluggable eviction policies, adaptive TTL tuning,
// request coalescing (singleflight), a Bloom-filtered negative cache
// and circuit-breaker-guarded refresh in one component.
//
// Example usage:
//
//	cache, err := xanthos.New(xanthos.Config{
//		MaxSize:        10_000,
//		DefaultTTL:     5 * time.Minute,
//		EvictionPolicy: xanthos.PolicyLRUK,
//	})
//
//	cache.Set("property:123", listing)
//	value, found := cache.Get("property:123")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import "time"

const (
	// Version of Xanthos cache library
	Version = "v0.1.0-dev"

	// DefaultMaxSize is the default maximum number of entries
	DefaultMaxSize = 10_000

	// DefaultRefreshThreshold is the remaining-TTL fraction below which
	// a hit schedules a background refresh
	DefaultRefreshThreshold = 0.2

	// DefaultAccessHistoryLimit is the default number of access
	// timestamps retained per entry for adaptive TTL
	DefaultAccessHistoryLimit = 16

	// DefaultLRUKValue is the default K for the LRU-K eviction policy
	DefaultLRUKValue = 2

	// DefaultSweepInterval is the default period of the expired-entry sweep
	DefaultSweepInterval = time.Minute

	// DefaultNegativeCapacity is the expected cardinality used to size
	// the negative cache's Bloom filter
	DefaultNegativeCapacity = 4096

	// DefaultBloomFalsePositiveRate is the target false-positive rate
	// for the negative cache's Bloom filter
	DefaultBloomFalsePositiveRate = 0.01
)
