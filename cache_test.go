// cache_test.go: orchestrator behavior tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// manualClock is a TimeProvider advanced explicitly by tests.
type manualClock struct {
	now int64
}

func newManualClock() *manualClock {
	return &manualClock{now: int64(time.Hour)}
}

func (m *manualClock) Now() int64 {
	return atomic.LoadInt64(&m.now)
}

func (m *manualClock) advance(d time.Duration) {
	atomic.AddInt64(&m.now, int64(d))
}

func mustNew(t *testing.T, cfg Config) Cache {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative max size", Config{MaxSize: -1}},
		{"unknown policy", Config{EvictionPolicy: "random"}},
		{"threshold too high", Config{RefreshThreshold: 1.5}},
		{"lruk below 2", Config{LRUKValue: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !IsConfigError(err) {
				t.Errorf("IsConfigError = false for %v", err)
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := mustNew(t, Config{})
	stats := c.Stats()
	if stats.Capacity != DefaultMaxSize {
		t.Errorf("Capacity = %d, want %d", stats.Capacity, DefaultMaxSize)
	}
}

func TestCacheSetGet(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 100})

	if err := c.Set("user:1", "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, found := c.Get("user:1")
	if !found {
		t.Fatal("Get missed a freshly set key")
	}
	if value != "alice" {
		t.Errorf("Get = %v, want alice", value)
	}

	if _, found := c.Get("user:2"); found {
		t.Error("Get hit a never-set key")
	}
	if !c.Has("user:1") || c.Has("user:2") {
		t.Error("Has disagrees with Get")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheEmptyKey(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10})

	err := c.Set("", "value")
	if !IsEmptyKey(err) {
		t.Errorf("Set(\"\") error = %v, want empty-key error", err)
	}
	if _, found := c.Get(""); found {
		t.Error("Get(\"\") reported a hit")
	}
	if c.Has("") {
		t.Error("Has(\"\") reported true")
	}
}

func TestCacheExpiration(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{MaxSize: 10, TimeProvider: clock})

	if err := c.SetWithTTL("session:1", "data", time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if _, found := c.Get("session:1"); !found {
		t.Fatal("entry missing before expiry")
	}

	clock.advance(2 * time.Minute)
	if _, found := c.Get("session:1"); found {
		t.Error("entry served after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after lazy expiry, want 0", c.Len())
	}
	if stats := c.Stats(); stats.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", stats.Expirations)
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{MaxSize: 10, TimeProvider: clock})

	if err := c.Set("pinned", 42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.advance(1000 * time.Hour)
	if _, found := c.Get("pinned"); !found {
		t.Error("entry with no TTL expired")
	}
}

func TestCacheFIFOEvictionAtCapacity(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{
		MaxSize:        2,
		EvictionPolicy: PolicyFIFO,
		TimeProvider:   clock,
	})

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Set(key, key); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
		clock.advance(time.Second)
	}

	if c.Has("a") {
		t.Error("oldest insertion survived FIFO eviction")
	}
	if !c.Has("b") || !c.Has("c") {
		t.Error("younger insertions evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if stats := c.Stats(); stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCacheLRUEvictionSparesRecentlyUsed(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{MaxSize: 2, TimeProvider: clock})

	_ = c.Set("a", 1)
	clock.advance(time.Second)
	_ = c.Set("b", 2)
	clock.advance(time.Second)
	c.Get("a")
	clock.advance(time.Second)
	_ = c.Set("c", 3)

	if !c.Has("a") {
		t.Error("recently accessed entry evicted under LRU")
	}
	if c.Has("b") {
		t.Error("least recently used entry survived")
	}
}

func TestCacheMemoryBudgetEviction(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{
		MaxSize:      1000,
		MaxMemoryMB:  1,
		TimeProvider: clock,
	})

	payload := strings.Repeat("x", 400_000)
	for _, key := range []string{"blob:a", "blob:b", "blob:c"} {
		if err := c.Set(key, payload); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
		clock.advance(time.Second)
	}

	// Three ~400KB payloads exceed the 1MB budget by one entry.
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2 after memory eviction", c.Len())
	}
	if stats := c.Stats(); stats.MemoryBytes > 1<<20 {
		t.Errorf("MemoryBytes = %d, want <= 1MB", stats.MemoryBytes)
	}
}

func TestCacheRejectsOversizedEntry(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10, MaxMemoryMB: 1})

	err := c.Set("huge", strings.Repeat("x", 2<<20))
	if !IsCapacityExceeded(err) {
		t.Errorf("oversized Set error = %v, want capacity-exceeded", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after rejected Set, want 0", c.Len())
	}
}

func TestCacheOverwritePreservesHistory(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{MaxSize: 10, TimeProvider: clock})

	_ = c.Set("k", "v1")
	clock.advance(time.Second)
	c.Get("k")
	clock.advance(time.Second)
	c.Get("k")
	clock.advance(time.Second)
	_ = c.Set("k", "v2")

	sc := c.(*smartCache)
	seg := sc.segmentFor("k")
	seg.mu.Lock()
	entry := seg.entries["k"]
	seg.mu.Unlock()

	if entry.updateCount != 2 {
		t.Errorf("updateCount = %d, want 2", entry.updateCount)
	}
	if len(entry.accessHistory) != 2 {
		t.Errorf("accessHistory length = %d, want 2 (preserved across overwrite)", len(entry.accessHistory))
	}
	if value, _ := c.Get("k"); value != "v2" {
		t.Errorf("Get after overwrite = %v, want v2", value)
	}
}

func TestCacheAdaptiveTTLStretchesHotKey(t *testing.T) {
	clock := newManualClock()
	c := mustNew(t, Config{MaxSize: 10, TimeProvider: clock})

	requested := time.Minute
	if err := c.SetWithTTL("hot", "v", requested); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		c.Get("hot")
	}
	if err := c.SetWithTTL("hot", "v2", requested); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	sc := c.(*smartCache)
	seg := sc.segmentFor("hot")
	seg.mu.Lock()
	entry := seg.entries["hot"]
	seg.mu.Unlock()

	effective := time.Duration(entry.expiresAt - clock.Now())
	if effective <= requested {
		t.Errorf("effective TTL = %v, want > requested %v for a hot key", effective, requested)
	}
	if effective >= 2*requested {
		t.Errorf("effective TTL = %v, must stay below 2x requested", effective)
	}
}

func TestCacheDeleteVariadic(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10})
	_ = c.Set("a", 1)
	_ = c.Set("b", 2)
	_ = c.Set("c", 3)

	if removed := c.Delete("a", "b", "missing"); removed != 2 {
		t.Errorf("Delete removed %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	// Deleting again is a no-op, not an error.
	if removed := c.Delete("a"); removed != 0 {
		t.Errorf("repeat Delete removed %d, want 0", removed)
	}
}

func TestCacheScanAndDelete(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 100})
	for _, key := range []string{"property:1", "property:2", "property:3", "user:1"} {
		_ = c.Set(key, key)
	}

	if removed := c.ScanAndDelete("property:*"); removed != 3 {
		t.Errorf("ScanAndDelete removed %d, want 3", removed)
	}
	if !c.Has("user:1") {
		t.Error("non-matching key deleted")
	}
	if removed := c.ScanAndDelete("absent:*"); removed != 0 {
		t.Errorf("ScanAndDelete on no matches removed %d, want 0", removed)
	}
}

func TestCacheClear(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 100})
	for _, key := range []string{"a", "b", "c"} {
		_ = c.Set(key, key)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}
	if stats := c.Stats(); stats.MemoryBytes != 0 {
		t.Errorf("MemoryBytes = %d after Clear, want 0", stats.MemoryBytes)
	}
	if _, found := c.Get("a"); found {
		t.Error("cleared key still readable")
	}
}

func TestCacheStats(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10})

	_ = c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("nope")
	c.Delete("a")

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 2 || stats.Misses != 1 || stats.Deletes != 1 {
		t.Errorf("stats = %+v, want sets=1 hits=2 misses=1 deletes=1", stats)
	}
	if ratio := stats.HitRatio(); ratio < 66.0 || ratio > 67.0 {
		t.Errorf("HitRatio = %f, want ~66.7", ratio)
	}
}

func TestCacheStatsHitRatioEmpty(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10})
	if ratio := c.Stats().HitRatio(); ratio != 0 {
		t.Errorf("HitRatio with no traffic = %f, want 0", ratio)
	}
}

func TestCacheCompressionRoundTrip(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10, CompressionThreshold: 128})

	large := strings.Repeat("compressible payload ", 100)
	if err := c.Set("doc", large); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sc := c.(*smartCache)
	seg := sc.segmentFor("doc")
	seg.mu.Lock()
	compressed := seg.entries["doc"].compressed != nil
	seg.mu.Unlock()
	if !compressed {
		t.Error("large payload stored uncompressed above threshold")
	}

	value, found := c.Get("doc")
	if !found || value != large {
		t.Error("compressed payload did not round-trip")
	}

	// Small values stay uncompressed.
	_ = c.Set("tiny", "v")
	seg = sc.segmentFor("tiny")
	seg.mu.Lock()
	compressed = seg.entries["tiny"].compressed != nil
	seg.mu.Unlock()
	if compressed {
		t.Error("small payload compressed below threshold")
	}
}

func TestCacheNonSerializableValue(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10, CompressionThreshold: 1})

	ch := make(chan int)
	if err := c.Set("chan", ch); err != nil {
		t.Fatalf("Set of non-serializable value: %v", err)
	}

	value, found := c.Get("chan")
	if !found {
		t.Fatal("non-serializable value not retrievable")
	}
	if value != interface{}(ch) {
		t.Error("non-serializable value not returned by reference")
	}
}

func TestCacheSegmentedKeepsAllKeys(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 1000, SegmentSize: 64})

	for i := 0; i < 500; i++ {
		key := "seg:" + strings.Repeat("k", i%7+1) + ":" + string(rune('a'+i%26))
		_ = c.Set(key+":"+itoa(i), i)
	}
	if c.Len() != 500 {
		t.Errorf("Len = %d, want 500", c.Len())
	}
}

func itoa(i int) string {
	return string(rune('0'+i/100%10)) + string(rune('0'+i/10%10)) + string(rune('0'+i%10))
}

func TestCacheStartStopIdempotent(t *testing.T) {
	c := mustNew(t, Config{MaxSize: 10, SweepInterval: 10 * time.Millisecond})

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Errorf("second Start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	clock := newManualClock()
	var expiredKeys []string
	done := make(chan struct{}, 1)
	c := mustNew(t, Config{
		MaxSize:       10,
		SweepInterval: 5 * time.Millisecond,
		TimeProvider:  clock,
		OnExpire: func(key string, value interface{}) {
			expiredKeys = append(expiredKeys, key)
			select {
			case done <- struct{}{}:
			default:
			}
		},
	})

	_ = c.SetWithTTL("ephemeral", 1, time.Minute)
	_ = c.Set("durable", 2)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = c.Stop() }()

	clock.advance(2 * time.Minute)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep never fired OnExpire")
	}

	if c.Has("ephemeral") {
		t.Error("expired entry survived sweep")
	}
	if !c.Has("durable") {
		t.Error("unexpired entry removed by sweep")
	}
	if len(expiredKeys) != 1 || expiredKeys[0] != "ephemeral" {
		t.Errorf("OnExpire keys = %v, want [ephemeral]", expiredKeys)
	}
}

func TestCacheOnEvictCallback(t *testing.T) {
	var evicted []string
	c := mustNew(t, Config{
		MaxSize:        1,
		EvictionPolicy: PolicyFIFO,
		OnEvict: func(key string, value interface{}) {
			evicted = append(evicted, key)
		},
	})

	_ = c.Set("first", 1)
	_ = c.Set("second", 2)

	if len(evicted) != 1 || evicted[0] != "first" {
		t.Errorf("OnEvict keys = %v, want [first]", evicted)
	}
}
