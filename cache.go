// cache.go: smart cache orchestrator
//
// Owns the (optionally segmented) entry table, the negative cache, the
// pattern index and the background sweep, and coordinates the policy
// engine, coalescer and circuit breaker.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
)

// fallbackPayloadBytes is charged for values that cannot be serialized
// for exact sizing.
const fallbackPayloadBytes = 64

// segment holds a disjoint subset of entries. Sharding exists purely to
// bound the cost of per-segment eviction scans; an entry belongs to
// exactly one segment, determined by the hash of its key.
type segment struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// smartCache implements Cache. The entry table is the single owner of
// cacheEntry values; the key store and negative cache hold only keys,
// eliminating reference cycles by construction.
type smartCache struct {
	config    Config
	policy    *policyEngine
	keys      *keyStore
	negative  *negativeCache
	flight    *coalescer
	breaker   CircuitBreaker
	backend   PersistenceBackend
	logger    Logger
	clock     TimeProvider
	collector MetricsCollector

	segments []*segment

	// Runtime-tunable options, hot-reloadable; accessed atomically.
	defaultTTLNanos      int64
	refreshThresholdBits uint64

	// Atomic statistics counters
	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	evictions   int64
	expirations int64
	negHits     int64
	entryCount  int64
	memoryBytes int64

	// Background refresh dedup (key -> in flight)
	refreshing sync.Map

	// Background refresh lifecycle. stopMu orders scheduleRefresh against
	// Stop: once stopped is set no new refresh goroutine starts, and
	// refreshWG lets Stop wait for the ones already running.
	stopMu    sync.RWMutex
	stopped   bool
	refreshWG sync.WaitGroup

	running int32
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a cache from the given configuration.
// Returns a configuration error (fail fast) for an invalid eviction
// policy, negative MaxSize, out-of-range refresh threshold or LRUKValue.
func New(config Config) (Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numSegments := 1
	if config.SegmentSize > 0 {
		numSegments = (config.MaxSize + config.SegmentSize - 1) / config.SegmentSize
		if numSegments < 1 {
			numSegments = 1
		}
	}
	segments := make([]*segment, numSegments)
	for i := range segments {
		segments[i] = &segment{entries: make(map[string]*cacheEntry)}
	}

	c := &smartCache{
		config:               config,
		policy:               newPolicyEngine(config.EvictionPolicy, config.LRUKValue),
		keys:                 newKeyStore(),
		negative:             newNegativeCache(int64(config.NegativeTTL), DefaultNegativeCapacity),
		flight:               newCoalescer(),
		breaker:              config.Breaker,
		backend:              config.Persistence,
		logger:               config.Logger,
		clock:                config.TimeProvider,
		collector:            config.MetricsCollector,
		segments:             segments,
		defaultTTLNanos:      int64(config.DefaultTTL),
		refreshThresholdBits: math.Float64bits(config.RefreshThreshold),
	}
	c.flight.onCoalesced = config.MetricsCollector.RecordCoalesced
	return c, nil
}

func (c *smartCache) segmentFor(key string) *segment {
	if len(c.segments) == 1 {
		return c.segments[0]
	}
	return c.segments[stringHash(key)%uint64(len(c.segments))]
}

func (c *smartCache) defaultTTL() time.Duration {
	return time.Duration(atomic.LoadInt64(&c.defaultTTLNanos))
}

func (c *smartCache) refreshThreshold() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.refreshThresholdBits))
}

func (c *smartCache) memoryBudget() int64 {
	return int64(c.config.MaxMemoryMB) * 1024 * 1024
}

func expiry(now int64, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now + int64(ttl)
}

// Get retrieves a value from the cache. On a hit the entry's access
// history is extended; on a miss the negative cache is consulted so
// "known absent" lookups are counted separately.
func (c *smartCache) Get(key string) (interface{}, bool) {
	start := c.clock.Now()
	value, found, _ := c.lookup(key, start)
	if found {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
		if _, marked := c.negative.check(key, start); marked {
			atomic.AddInt64(&c.negHits, 1)
			c.collector.RecordNegativeHit()
		}
	}
	c.collector.RecordGet(c.clock.Now()-start, found)
	return value, found
}

// lookup performs the table access shared by Get and GetWithRefresh.
// It records the access on hit and reports whether the entry's remaining
// TTL fraction has fallen below the refresh threshold.
func (c *smartCache) lookup(key string, now int64) (value interface{}, found, stale bool) {
	if key == "" {
		return nil, false, false
	}

	seg := c.segmentFor(key)
	seg.mu.Lock()

	entry, ok := seg.entries[key]
	if !ok {
		seg.mu.Unlock()
		return nil, false, false
	}

	if entry.expired(now) {
		c.removeLocked(seg, key, entry)
		seg.mu.Unlock()
		atomic.AddInt64(&c.expirations, 1)
		c.notifyExpire(entry)
		return nil, false, false
	}

	entry.recordAccess(now, c.config.AccessHistoryLimit)
	stale = refreshDue(entry, now, c.refreshThreshold())
	value, err := c.entryValue(entry)
	seg.mu.Unlock()

	if err != nil {
		c.logger.Error("failed to decode cached payload", "key", key, "error", err)
		c.Delete(key)
		return nil, false, false
	}
	return value, true, stale
}

// entryValue materializes an entry's payload, decompressing if needed.
func (c *smartCache) entryValue(e *cacheEntry) (interface{}, error) {
	if e.compressed == nil {
		return e.value, nil
	}
	raw, err := decompressPayload(e.compressed)
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

// Set stores a key-value pair with the cache's default TTL.
func (c *smartCache) Set(key string, value interface{}) error {
	return c.SetWithTTL(key, value, c.defaultTTL())
}

// SetWithTTL stores a key-value pair with an explicit requested TTL.
// The effective TTL is computed by the adaptive-TTL policy from the
// key's existing access history. Overwrites preserve creation time and
// history and increment updateCount.
func (c *smartCache) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	start := c.clock.Now()
	if key == "" {
		return NewErrEmptyKey("Set")
	}

	raw, err := encodeValue(value)
	serializable := err == nil
	payloadLen := fallbackPayloadBytes
	var compressed []byte
	if serializable {
		payloadLen = len(raw)
		if th := c.config.CompressionThreshold; th > 0 && len(raw) >= th {
			comp, cerr := compressPayload(raw)
			if cerr != nil {
				return NewErrSerializeFailed(key, cerr)
			}
			compressed = comp
			payloadLen = len(comp)
		}
	}

	size := estimateSize(key, payloadLen)
	if budget := c.memoryBudget(); budget > 0 && size > budget {
		return NewErrCapacityExceeded(key, size, budget)
	}

	now := c.clock.Now()
	seg := c.segmentFor(key)
	seg.mu.Lock()
	if existing, ok := seg.entries[key]; ok {
		effective := c.policy.adaptiveTTL(existing.accessHistory, now, ttl)
		atomic.AddInt64(&c.memoryBytes, size-existing.sizeBytes)
		existing.value = value
		existing.compressed = compressed
		if compressed != nil {
			existing.value = nil
		}
		existing.expiresAt = expiry(now, effective)
		existing.updateCount++
		existing.sizeBytes = size
		existing.serializable = serializable
	} else {
		entry := &cacheEntry{
			key:          key,
			value:        value,
			compressed:   compressed,
			createdAt:    now,
			expiresAt:    expiry(now, ttl),
			updateCount:  1,
			sizeBytes:    size,
			serializable: serializable,
		}
		if compressed != nil {
			entry.value = nil
		}
		seg.entries[key] = entry
		atomic.AddInt64(&c.entryCount, 1)
		atomic.AddInt64(&c.memoryBytes, size)
	}
	seg.mu.Unlock()

	c.keys.intern(key)
	c.negative.clear(key)
	c.enforceBudgets(seg, key)

	atomic.AddInt64(&c.sets, 1)
	c.collector.RecordSet(c.clock.Now() - start)
	c.collector.RecordMemoryUsage(atomic.LoadInt64(&c.memoryBytes))
	return nil
}

// overBudget reports whether either the entry-count or the memory budget
// is currently exceeded.
func (c *smartCache) overBudget() bool {
	if atomic.LoadInt64(&c.entryCount) > int64(c.config.MaxSize) {
		return true
	}
	budget := c.memoryBudget()
	return budget > 0 && atomic.LoadInt64(&c.memoryBytes) > budget
}

// enforceBudgets evicts entries until both budgets hold. The segment the
// insert landed in is scanned first; only when it has no candidate does
// the scan fall back to the other segments (linear scan path — no strict
// cross-segment ordering guarantee). Locks are taken one segment at a
// time, never nested.
func (c *smartCache) enforceBudgets(preferred *segment, protect string) {
	for c.overBudget() {
		if c.evictFrom(preferred, protect) {
			continue
		}
		evicted := false
		for _, seg := range c.segments {
			if seg == preferred {
				continue
			}
			if c.evictFrom(seg, protect) {
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// evictFrom removes one victim from the segment per the active policy.
func (c *smartCache) evictFrom(seg *segment, protect string) bool {
	seg.mu.Lock()
	victimKey := c.policy.selectVictim(seg.entries, protect)
	if victimKey == "" {
		seg.mu.Unlock()
		return false
	}
	victim := seg.entries[victimKey]
	c.removeLocked(seg, victimKey, victim)
	seg.mu.Unlock()

	atomic.AddInt64(&c.evictions, 1)
	c.collector.RecordEviction()
	if c.config.OnEvict != nil {
		value, _ := c.entryValue(victim)
		c.config.OnEvict(victimKey, value)
	}
	return true
}

// removeLocked removes an entry and updates counters and the pattern
// index. Caller must hold seg.mu.
func (c *smartCache) removeLocked(seg *segment, key string, e *cacheEntry) {
	delete(seg.entries, key)
	atomic.AddInt64(&c.entryCount, -1)
	atomic.AddInt64(&c.memoryBytes, -e.sizeBytes)
	c.keys.remove(key)
}

func (c *smartCache) notifyExpire(e *cacheEntry) {
	if c.config.OnExpire == nil {
		return
	}
	value, _ := c.entryValue(e)
	c.config.OnExpire(e.key, value)
}

// Delete removes one or more entries and returns the count actually
// removed. Absent keys are not an error.
func (c *smartCache) Delete(keys ...string) int {
	start := c.clock.Now()
	removed := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		seg := c.segmentFor(key)
		seg.mu.Lock()
		if entry, ok := seg.entries[key]; ok {
			c.removeLocked(seg, key, entry)
			removed++
		}
		seg.mu.Unlock()
	}
	if removed > 0 {
		atomic.AddInt64(&c.deletes, int64(removed))
		c.collector.RecordMemoryUsage(atomic.LoadInt64(&c.memoryBytes))
	}
	c.collector.RecordDelete(c.clock.Now() - start)
	return removed
}

// ScanAndDelete enumerates keys matching the pattern through the key
// store and deletes each. The enumeration is a best-effort snapshot;
// individual deletes are atomic and safe against concurrent traffic.
func (c *smartCache) ScanAndDelete(pattern string) int {
	matches := c.keys.lookupByPattern(pattern)
	if len(matches) == 0 {
		return 0
	}
	return c.Delete(matches...)
}

// Has checks if a key exists without retrieving the value or touching
// its access history.
func (c *smartCache) Has(key string) bool {
	if key == "" {
		return false
	}
	now := c.clock.Now()
	seg := c.segmentFor(key)
	seg.mu.Lock()
	entry, ok := seg.entries[key]
	alive := ok && !entry.expired(now)
	seg.mu.Unlock()
	return alive
}

// Len returns the current number of entries.
func (c *smartCache) Len() int {
	return int(atomic.LoadInt64(&c.entryCount))
}

// Clear removes all entries and negative-cache marks.
// Not atomic across segments: concurrent readers may observe a partially
// cleared cache, which is acceptable for flush/shutdown/testing.
func (c *smartCache) Clear() {
	for _, seg := range c.segments {
		seg.mu.Lock()
		for _, e := range seg.entries {
			atomic.AddInt64(&c.entryCount, -1)
			atomic.AddInt64(&c.memoryBytes, -e.sizeBytes)
		}
		seg.entries = make(map[string]*cacheEntry)
		seg.mu.Unlock()
	}
	c.keys.clear()
	c.negative.reset()
	c.collector.RecordMemoryUsage(atomic.LoadInt64(&c.memoryBytes))
}

// Stats returns a snapshot of cache metrics.
func (c *smartCache) Stats() CacheStats {
	return CacheStats{
		Hits:           uint64(atomic.LoadInt64(&c.hits)),        // #nosec G115 - counters are non-negative
		Misses:         uint64(atomic.LoadInt64(&c.misses)),      // #nosec G115 - counters are non-negative
		Sets:           uint64(atomic.LoadInt64(&c.sets)),        // #nosec G115 - counters are non-negative
		Deletes:        uint64(atomic.LoadInt64(&c.deletes)),     // #nosec G115 - counters are non-negative
		Evictions:      uint64(atomic.LoadInt64(&c.evictions)),   // #nosec G115 - counters are non-negative
		Expirations:    uint64(atomic.LoadInt64(&c.expirations)), // #nosec G115 - counters are non-negative
		NegativeHits:   uint64(atomic.LoadInt64(&c.negHits)),     // #nosec G115 - counters are non-negative
		CoalescedCalls: uint64(c.flight.coalescedCalls()),        // #nosec G115 - counters are non-negative
		MemoryBytes:    atomic.LoadInt64(&c.memoryBytes),
		Size:           int(atomic.LoadInt64(&c.entryCount)),
		Capacity:       c.config.MaxSize,
	}
}

// Start loads the persistence snapshot (if configured) and begins the
// periodic expiry sweep and snapshot timers. Idempotent.
func (c *smartCache) Start() error {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return nil
	}
	c.stopCh = make(chan struct{})
	c.stopMu.Lock()
	c.stopped = false
	c.stopMu.Unlock()

	if c.backend != nil && c.config.PersistencePath != "" {
		if err := c.loadSnapshot(); err != nil {
			// Losing a warm cache is a performance degradation, not a
			// correctness failure: start cold.
			c.logger.Warn("snapshot load failed, starting cold",
				"path", c.config.PersistencePath, "error", err)
		}
	}

	c.wg.Add(1)
	go c.sweepLoop()

	if c.backend != nil && c.config.PersistencePath != "" && c.config.PersistInterval > 0 {
		c.wg.Add(1)
		go c.persistLoop()
	}
	return nil
}

// Stop cancels the background timers, waits for them and for in-flight
// background refreshes to exit, then saves a final snapshot when
// persistence is configured. Idempotent.
func (c *smartCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return nil
	}
	c.stopMu.Lock()
	c.stopped = true
	c.stopMu.Unlock()
	close(c.stopCh)
	c.wg.Wait()
	c.refreshWG.Wait()

	var errs *multierror.Error
	if c.backend != nil && c.config.PersistencePath != "" {
		if err := c.saveSnapshot(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// sweepLoop evicts expired entries on a fixed interval independent of
// access traffic, bounding memory held by entries never looked up again.
func (c *smartCache) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

// sweepExpired removes every expired entry, one segment at a time.
func (c *smartCache) sweepExpired() {
	now := c.clock.Now()
	var expired []*cacheEntry
	for _, seg := range c.segments {
		seg.mu.Lock()
		for key, entry := range seg.entries {
			if entry.expired(now) {
				c.removeLocked(seg, key, entry)
				expired = append(expired, entry)
			}
		}
		seg.mu.Unlock()
	}
	if len(expired) == 0 {
		return
	}
	atomic.AddInt64(&c.expirations, int64(len(expired)))
	c.collector.RecordMemoryUsage(atomic.LoadInt64(&c.memoryBytes))
	for _, entry := range expired {
		c.notifyExpire(entry)
	}
	c.logger.Debug("sweep removed expired entries", "count", len(expired))
}

// persistLoop saves periodic snapshots while the cache is running.
func (c *smartCache) persistLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.PersistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.saveSnapshot(); err != nil {
				c.logger.Warn("periodic snapshot failed", "error", err)
			}
		}
	}
}

// Runtime-tunable setters used by the hot-reload watcher.

func (c *smartCache) setDefaultTTL(ttl time.Duration) {
	atomic.StoreInt64(&c.defaultTTLNanos, int64(ttl))
}

func (c *smartCache) setRefreshThreshold(threshold float64) {
	if threshold > 0 && threshold < 1 {
		atomic.StoreUint64(&c.refreshThresholdBits, math.Float64bits(threshold))
	}
}

func (c *smartCache) setNegativeTTL(ttl time.Duration) {
	c.negative.setTTL(int64(ttl))
}

// Ensure smartCache implements Cache
var _ Cache = (*smartCache)(nil)
