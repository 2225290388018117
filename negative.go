// negative.go: probabilistic negative cache for known-absent keys
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"sync"
	"sync/atomic"
)

// negativeEntry remembers a failed fetch so the upstream error can be
// replayed without another call until the mark expires.
type negativeEntry struct {
	err      error
	expireAt int64
}

// negativeCache is an exact set of keys known to be absent upstream,
// fronted by a Bloom filter: a definite-negative filter answer skips the
// exact check entirely. Marks expire independently of the main table.
//
// The filter cannot unlearn keys, so it is rebuilt from the exact set
// and hot-swapped once the recorded cardinality exceeds its sizing.
type negativeCache struct {
	mu       sync.RWMutex
	entries  map[string]negativeEntry
	filter   *bloomFilter
	capacity int
	added    int
	ttlNanos int64 // atomic; hot-reloadable
}

func newNegativeCache(ttlNanos int64, capacity int) *negativeCache {
	if capacity <= 0 {
		capacity = DefaultNegativeCapacity
	}
	return &negativeCache{
		entries:  make(map[string]negativeEntry),
		filter:   newBloomFilter(capacity, DefaultBloomFalsePositiveRate),
		capacity: capacity,
		ttlNanos: ttlNanos,
	}
}

func (n *negativeCache) enabled() bool {
	return n != nil && atomic.LoadInt64(&n.ttlNanos) > 0
}

// setTTL updates the mark lifetime. A value of 0 disables new marks;
// existing marks keep their recorded expiry.
func (n *negativeCache) setTTL(ttlNanos int64) {
	if n == nil || ttlNanos < 0 {
		return
	}
	atomic.StoreInt64(&n.ttlNanos, ttlNanos)
}

// mark records a failed fetch for the key, replacing any prior mark.
func (n *negativeCache) mark(key string, err error, now int64) {
	if !n.enabled() {
		return
	}
	n.mu.Lock()
	n.entries[key] = negativeEntry{err: err, expireAt: now + atomic.LoadInt64(&n.ttlNanos)}
	n.added++
	if n.added > n.capacity {
		n.rebuildLocked()
	} else {
		n.filter.add(key)
	}
	n.mu.Unlock()
}

// check returns the recorded fetch error for a known-absent key.
// The Bloom filter answers most "never marked" lookups without touching
// the exact set. Expired marks are removed lazily.
func (n *negativeCache) check(key string, now int64) (error, bool) {
	if !n.enabled() {
		return nil, false
	}
	if !n.filter.mightContain(key) {
		return nil, false
	}

	n.mu.RLock()
	entry, ok := n.entries[key]
	n.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now > entry.expireAt {
		n.mu.Lock()
		if cur, still := n.entries[key]; still && cur.expireAt == entry.expireAt {
			delete(n.entries, key)
		}
		n.mu.Unlock()
		return nil, false
	}
	return entry.err, true
}

// clear removes the mark for a key, typically after a successful set or
// fetch. The filter keeps the bits; the exact set is authoritative.
func (n *negativeCache) clear(key string) {
	if !n.enabled() {
		return
	}
	n.mu.Lock()
	delete(n.entries, key)
	n.mu.Unlock()
}

// reset drops all marks and swaps in a fresh filter.
func (n *negativeCache) reset() {
	if n == nil {
		return
	}
	n.mu.Lock()
	n.entries = make(map[string]negativeEntry)
	n.filter = newBloomFilter(n.capacity, DefaultBloomFalsePositiveRate)
	n.added = 0
	n.mu.Unlock()
}

// rebuildLocked replaces the filter with one rebuilt from the live exact
// set. Caller must hold the write lock.
func (n *negativeCache) rebuildLocked() {
	expected := len(n.entries)
	if expected < n.capacity {
		expected = n.capacity
	}
	fresh := newBloomFilter(expected*2, DefaultBloomFalsePositiveRate)
	for key := range n.entries {
		fresh.add(key)
	}
	n.filter = fresh
	n.added = len(n.entries)
	n.capacity = expected * 2
}
