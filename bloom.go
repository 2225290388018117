// bloom.go: lock-free Bloom filter for the negative cache fast path
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// bloomFilter is a fixed-size probabilistic membership filter with no
// false negatives and a bounded false-positive rate.
//
// Bits are packed into uint64 words set via CAS, so adds never race
// destructively with reads. A read racing a concurrent add may
// transiently under-report "possibly present"; acceptable because the
// exact negative-cache set is always the source of truth and the filter
// is only a skip-the-exact-check optimization.
//
// Resizing is not supported: when cardinality is exceeded a new filter
// is built and hot-swapped by the owner.
type bloomFilter struct {
	words []uint64
	bits  uint64
	k     int
}

// Golden-ratio derivative used to decorrelate the second hash.
const bloomSeed = 0x9e3779b97f4a7c15

// newBloomFilter sizes the filter for the expected number of keys and
// target false-positive rate using the standard optimum:
//
//	m = -n*ln(p)/(ln 2)^2,  k = (m/n)*ln 2
func newBloomFilter(expected int, fpRate float64) *bloomFilter {
	if expected < 1 {
		expected = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultBloomFalsePositiveRate
	}

	ln2 := math.Ln2
	m := math.Ceil(-float64(expected) * math.Log(fpRate) / (ln2 * ln2))
	k := int(math.Round(m / float64(expected) * ln2))
	if k < 1 {
		k = 1
	}

	bits := uint64(m)
	if bits < 64 {
		bits = 64
	}

	return &bloomFilter{
		words: make([]uint64, (bits+63)/64),
		bits:  bits,
		k:     k,
	}
}

// add sets the k bit positions derived from the key. No error conditions.
func (f *bloomFilter) add(key string) {
	h1, h2 := bloomHashes(key)
	for i := 0; i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.bits
		word := pos / 64
		mask := uint64(1) << (pos % 64)
		for {
			old := atomic.LoadUint64(&f.words[word])
			if old&mask != 0 {
				break
			}
			if atomic.CompareAndSwapUint64(&f.words[word], old, old|mask) {
				break
			}
		}
	}
}

// mightContain returns false only if the key was never added; it may
// return true for a key never added (bounded false-positive rate).
func (f *bloomFilter) mightContain(key string) bool {
	h1, h2 := bloomHashes(key)
	for i := 0; i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.bits
		if atomic.LoadUint64(&f.words[pos/64])&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// bloomHashes derives two independent hash values for double hashing.
// The second hash is forced odd so the probe sequence covers the filter.
func bloomHashes(key string) (uint64, uint64) {
	h1 := stringHash(key)
	h2 := (h1*bloomSeed)>>17 | 1
	return h1, h2
}

// stringHash computes a 64-bit hash of a string using FNV-1a.
// Optimized for performance and zero allocations.
func stringHash(s string) uint64 {
	const (
		fnv64Offset = 14695981039346656037
		fnv64Prime  = 1099511628211
	)

	hash := uint64(fnv64Offset)

	// Use unsafe to avoid allocations when converting string to []byte
	// #nosec G103 - Safe usage: we only read the string data
	data := unsafe.Slice(unsafe.StringData(s), len(s))

	for _, b := range data {
		hash ^= uint64(b)
		hash *= fnv64Prime
	}

	return hash
}
