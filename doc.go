// Package xanthos provides an adaptive in-process cache for Go with
// stale-while-revalidate fetching, request coalescing and a circuit
// breaker on the upstream path.
//
// Core features:
//
//   - Pluggable eviction: LRU, LFU, FIFO and LRU-K over per-entry access
//     history, with ties broken by insertion age
//   - Adaptive TTL: frequently accessed entries live longer, cold
//     entries expire sooner, bounded to [0.5x, 2x) of the requested TTL
//   - Read-through fetching via GetWithRefresh: concurrent misses for a
//     key coalesce into one upstream call, entries near expiry are
//     served stale while one goroutine revalidates in the background
//   - Negative caching: failed fetches are remembered behind a Bloom
//     filter and the original error is replayed until the mark expires
//   - Circuit breaker guarding the upstream with half-open probing
//   - Optional gzip snapshot persistence across restarts, preserving
//     access history so eviction decisions resume warm
//   - Pattern invalidation (ScanAndDelete) over an interning key store
//   - Hot-reloadable TTL and refresh settings via Argus
//   - Prometheus metrics through a pluggable MetricsCollector
//
// Basic usage:
//
//	cache, err := xanthos.New(xanthos.Config{
//	    MaxSize:        100_000,
//	    DefaultTTL:     5 * time.Minute,
//	    NegativeTTL:    30 * time.Second,
//	    EvictionPolicy: xanthos.PolicyLRUK,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cache.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Stop()
//
//	cache.Set("user:123", user)
//	if value, found := cache.Get("user:123"); found {
//	    // ...
//	}
//
//	profile, err := cache.GetWithRefresh(ctx, "profile:123",
//	    func(ctx context.Context) (interface{}, error) {
//	        return loadProfile(ctx, "123")
//	    })
//
// For compile-time type safety use the generic facade:
//
//	users, err := xanthos.NewGenericCache[string, User](cfg)
//	users.Set("user:123", user)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package xanthos
