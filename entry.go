// entry.go: cache entry representation and access bookkeeping
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

// cacheEntry holds one cached value together with the access bookkeeping
// consumed by the eviction and adaptive-TTL policies.
//
// An entry is owned exclusively by its segment's table; segments hold the
// only reference and all mutation happens under the segment lock.
// Exactly one of value/compressed carries the payload: values above the
// compression threshold are stored as gzip-compressed JSON and sizeBytes
// reflects the compressed size.
type cacheEntry struct {
	key        string
	value      interface{}
	compressed []byte

	createdAt int64 // nanoseconds since epoch
	expiresAt int64 // 0 = no expiration

	// accessHistory is a bounded, time-ordered sequence of access
	// timestamps; the oldest is dropped once the limit is exceeded.
	// It is the sole input to adaptive TTL.
	accessHistory []int64

	// accessCount is the total number of accesses since creation.
	// Unlike accessHistory it is not bounded, so LFU ranking keeps
	// discriminating beyond the history window.
	accessCount int64

	// updateCount is incremented on every Set that overwrites this key
	// (first set = 1).
	updateCount int64

	// sizeBytes is the estimated memory footprint counted against the
	// memory budget.
	sizeBytes int64

	// serializable is false when the value could not be JSON-encoded;
	// such entries are skipped by snapshots and never compressed.
	serializable bool
}

// expired reports whether the entry's TTL window has passed.
func (e *cacheEntry) expired(now int64) bool {
	return e.expiresAt > 0 && now > e.expiresAt
}

// recordAccess appends an access timestamp, dropping the oldest once the
// history limit is exceeded.
func (e *cacheEntry) recordAccess(now int64, limit int) {
	e.accessCount++
	if limit <= 0 {
		return
	}
	if len(e.accessHistory) >= limit {
		copy(e.accessHistory, e.accessHistory[1:])
		e.accessHistory = e.accessHistory[:limit-1]
	}
	e.accessHistory = append(e.accessHistory, now)
}

// lastAccess returns the most recent access timestamp, or createdAt when
// the entry was never accessed.
func (e *cacheEntry) lastAccess() int64 {
	if n := len(e.accessHistory); n > 0 {
		return e.accessHistory[n-1]
	}
	return e.createdAt
}

// kthAccess returns the K-th-most-recent access timestamp, or 0
// ("infinitely old") when fewer than k accesses are recorded.
func (e *cacheEntry) kthAccess(k int) int64 {
	n := len(e.accessHistory)
	if n < k {
		return 0
	}
	return e.accessHistory[n-k]
}
