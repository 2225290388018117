// keystore.go: prefix-interning key registry with pattern enumeration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"path"
	"strings"
	"sync"
)

// keyHandle identifies an interned key by its pooled prefix and suffix.
// The prefix string is shared by every key interned under it.
type keyHandle struct {
	prefix string
	suffix string
}

func (h keyHandle) String() string { return h.prefix + h.suffix }

// keyStore is a memory-efficient registry of cache keys built from a
// shared prefix and a variable suffix. Keys like "property:123" share one
// pooled "property:" prefix string, and pattern enumeration walks suffix
// sets instead of reconstructing every full key.
//
// The byKey back-reference is a pure lookup relation: it is never
// consulted for prefix lifetime, which follows the suffix sets alone.
type keyStore struct {
	mu       sync.RWMutex
	prefixes map[string]map[string]struct{} // prefix -> suffix set
	byKey    map[string]string              // key -> prefix
}

func newKeyStore() *keyStore {
	return &keyStore{
		prefixes: make(map[string]map[string]struct{}),
		byKey:    make(map[string]string),
	}
}

// splitPoints yields the candidate prefix boundaries of a key, longest
// first: one past each ':' separator.
func splitPoints(key string) []int {
	var points []int
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			points = append(points, i+1)
		}
	}
	return points
}

// intern registers a key, reusing the longest prefix already present in
// the pool; a key with no pooled prefix registers its canonical prefix
// (through the last ':', or the empty prefix for separator-free keys).
// Idempotent: interning a known key returns the existing handle.
func (ks *keyStore) intern(key string) keyHandle {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if prefix, ok := ks.byKey[key]; ok {
		return keyHandle{prefix: prefix, suffix: key[len(prefix):]}
	}

	points := splitPoints(key)
	prefix := ""
	for _, p := range points {
		if _, ok := ks.prefixes[key[:p]]; ok {
			prefix = key[:p]
			break
		}
	}
	if prefix == "" && len(points) > 0 {
		prefix = key[:points[0]]
	}

	suffixes, ok := ks.prefixes[prefix]
	if !ok {
		suffixes = make(map[string]struct{})
		ks.prefixes[prefix] = suffixes
	}
	suffix := key[len(prefix):]
	suffixes[suffix] = struct{}{}
	ks.byKey[key] = prefix
	return keyHandle{prefix: prefix, suffix: suffix}
}

// has reports whether the key is registered. Unknown keys are simply
// "not found", never a panic.
func (ks *keyStore) has(key string) bool {
	ks.mu.RLock()
	_, ok := ks.byKey[key]
	ks.mu.RUnlock()
	return ok
}

// remove drops the key's suffix from its prefix set; a prefix left with
// no suffixes is released from the pool.
func (ks *keyStore) remove(key string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	prefix, ok := ks.byKey[key]
	if !ok {
		return
	}
	delete(ks.byKey, key)
	suffixes := ks.prefixes[prefix]
	delete(suffixes, key[len(prefix):])
	if len(suffixes) == 0 {
		delete(ks.prefixes, prefix)
	}
}

// lookupByPattern enumerates currently-stored keys matching the pattern.
// Patterns of the form "lit*" take a prefix-pool fast path that never
// reconstructs non-matching keys; other patterns use path.Match glob
// semantics over the registry. Each matching key appears exactly once;
// no ordering is guaranteed. The result is a best-effort snapshot.
func (ks *keyStore) lookupByPattern(pattern string) []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	var out []string
	if lit, ok := literalPrefix(pattern); ok {
		for prefix, suffixes := range ks.prefixes {
			switch {
			case strings.HasPrefix(prefix, lit):
				for suffix := range suffixes {
					out = append(out, prefix+suffix)
				}
			case strings.HasPrefix(lit, prefix):
				rest := lit[len(prefix):]
				for suffix := range suffixes {
					if strings.HasPrefix(suffix, rest) {
						out = append(out, prefix+suffix)
					}
				}
			}
		}
		return out
	}

	for key := range ks.byKey {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			out = append(out, key)
		}
	}
	return out
}

// count returns the number of registered keys.
func (ks *keyStore) count() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.byKey)
}

// clear removes every key and prefix.
func (ks *keyStore) clear() {
	ks.mu.Lock()
	ks.prefixes = make(map[string]map[string]struct{})
	ks.byKey = make(map[string]string)
	ks.mu.Unlock()
}

// literalPrefix reports whether the pattern is a literal followed by a
// single trailing '*', returning the literal part.
func literalPrefix(pattern string) (string, bool) {
	if !strings.HasSuffix(pattern, "*") {
		return "", false
	}
	lit := pattern[:len(pattern)-1]
	if strings.ContainsAny(lit, "*?[\\") {
		return "", false
	}
	return lit, true
}
