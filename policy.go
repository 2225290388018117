// policy.go: eviction strategies and adaptive TTL calculation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"math"
	"time"
)

// Adaptive TTL multiplier shape: effective = requested * multiplier,
// multiplier = floor + range*(1 - e^(-hotness/saturation)) where hotness
// is the expected number of accesses within one requested-TTL window.
// Bounded to [0.5x, 2.0x); monotone in observed access frequency.
const (
	adaptiveFloor      = 0.5
	adaptiveRange      = 1.5
	adaptiveSaturation = 4.0
)

// policyEngine decides which entry to evict when a budget is exceeded and
// how far to stretch or shrink an entry's effective TTL. All methods are
// pure given the entry state passed in; they never mutate access history.
type policyEngine struct {
	policy EvictionPolicy
	k      int
}

func newPolicyEngine(policy EvictionPolicy, k int) *policyEngine {
	if k < 2 {
		k = DefaultLRUKValue
	}
	return &policyEngine{policy: policy, k: k}
}

// selectVictim returns the key of the entry the active policy would evict
// from the given table, or "" when the table is empty (or contains only
// the excluded key). Ties on the primary rank break by oldest createdAt.
func (p *policyEngine) selectVictim(entries map[string]*cacheEntry, exclude string) string {
	var victim *cacheEntry
	victimKey := ""

	for key, entry := range entries {
		if key == exclude {
			continue
		}
		if victim == nil || p.ranksBefore(entry, victim) {
			victim = entry
			victimKey = key
		}
	}
	return victimKey
}

// ranksBefore reports whether a is a better eviction candidate than b
// under the active policy.
func (p *policyEngine) ranksBefore(a, b *cacheEntry) bool {
	ra, rb := p.rank(a), p.rank(b)
	if ra != rb {
		return ra < rb
	}
	return a.createdAt < b.createdAt
}

// rank computes the policy's primary eviction key; lower evicts first.
func (p *policyEngine) rank(e *cacheEntry) int64 {
	switch p.policy {
	case PolicyLFU:
		return e.accessCount
	case PolicyFIFO:
		return e.createdAt
	case PolicyLRUK:
		// Fewer than K recorded accesses ranks as "infinitely old",
		// making under-accessed entries preferred victims.
		return e.kthAccess(p.k)
	default: // PolicyLRU
		return e.lastAccess()
	}
}

// adaptiveTTL computes the effective TTL for a key given its recorded
// access history. Frequently accessed keys get a TTL stretched above the
// requested value; rarely accessed keys get one at or below it. With
// fewer than two recorded accesses there is no frequency signal and the
// requested TTL is returned unchanged.
func (p *policyEngine) adaptiveTTL(history []int64, now int64, requested time.Duration) time.Duration {
	if requested <= 0 {
		return 0
	}
	if len(history) < 2 {
		return requested
	}

	window := now - history[0]
	if window <= 0 {
		return requested
	}

	rate := float64(len(history)) / float64(window)
	hotness := rate * float64(requested)
	multiplier := adaptiveFloor + adaptiveRange*(1-math.Exp(-hotness/adaptiveSaturation))

	return time.Duration(float64(requested) * multiplier)
}

// refreshDue reports whether a hit entry's remaining TTL fraction has
// fallen below the refresh threshold, i.e. it should be served stale and
// revalidated in the background.
func refreshDue(e *cacheEntry, now int64, threshold float64) bool {
	if e.expiresAt <= 0 {
		return false
	}
	ttl := e.expiresAt - e.createdAt
	if ttl <= 0 {
		return false
	}
	remaining := e.expiresAt - now
	if remaining < 0 {
		return false
	}
	return float64(remaining) < threshold*float64(ttl)
}
