// getwithrefresh.go: read-through fetch with stale-while-revalidate
//
// Ties the coalescer, circuit breaker and negative cache together behind
// a single read-through entry point. A hit inside the refresh window is
// served immediately while one background goroutine revalidates; a miss
// fetches through the coalescer under breaker admission.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"context"
	"sync/atomic"
	"time"
)

// GetWithRefresh returns the cached value for key, fetching it through
// the supplied FetchFunc on a miss. Concurrent misses for the same key
// coalesce into a single upstream call. A hit whose remaining TTL has
// fallen below the refresh threshold is returned immediately and
// refreshed in the background; the caller never waits on revalidation.
//
// A key marked in the negative cache replays the recorded fetch error
// without contacting the upstream until the mark expires.
func (c *smartCache) GetWithRefresh(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	if key == "" {
		return nil, NewErrEmptyKey("GetWithRefresh")
	}

	now := c.clock.Now()
	if value, found, stale := c.lookup(key, now); found {
		atomic.AddInt64(&c.hits, 1)
		c.collector.RecordGet(c.clock.Now()-now, true)
		if stale && fetch != nil {
			c.scheduleRefresh(key, fetch)
		}
		return value, nil
	}

	atomic.AddInt64(&c.misses, 1)
	c.collector.RecordGet(c.clock.Now()-now, false)

	if err, marked := c.negative.check(key, now); marked {
		atomic.AddInt64(&c.negHits, 1)
		c.collector.RecordNegativeHit()
		return nil, err
	}

	if fetch == nil {
		return nil, NewErrInvalidFetcher(key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fetchThrough(ctx, key, fetch)
}

// fetchThrough runs the upstream fetch under coalescing and breaker
// admission. The fetch itself runs on a context detached from the
// initiating caller's cancellation so coalesced waiters are not starved
// when the initiator gives up; the breaker's call timeout still bounds it.
func (c *smartCache) fetchThrough(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	return c.flight.do(ctx, key, func() (interface{}, error) {
		if !c.breaker.Allow() {
			return nil, NewErrCircuitOpen(key, c.breaker.State().String())
		}

		fctx := context.WithoutCancel(ctx)
		if tb, ok := c.breaker.(interface{ CallTimeout() time.Duration }); ok {
			if timeout := tb.CallTimeout(); timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(fctx, timeout)
				defer cancel()
			}
		}

		// A panicking fetch is an upstream failure: record it before the
		// coalescer converts the panic into an error for the waiters.
		// Without this a panicking half-open probe would strand the
		// breaker's probe slot and never reopen the circuit.
		defer func() {
			if r := recover(); r != nil {
				c.breaker.RecordFailure()
				panic(r)
			}
		}()

		value, err := fetch(fctx)
		if err != nil {
			c.breaker.RecordFailure()
			wrapped := NewErrFetchFailed(key, err)
			c.negative.mark(key, wrapped, c.clock.Now())
			return nil, wrapped
		}

		c.breaker.RecordSuccess()
		if serr := c.Set(key, value); serr != nil {
			// Serve the fetched value even if it cannot be cached.
			c.logger.Warn("fetched value not cached", "key", key, "error", serr)
		}
		return value, nil
	})
}

// scheduleRefresh starts at most one background revalidation per key.
// A failed refresh is fail-soft: the stale value keeps being served
// until its TTL actually expires. Refreshes are registered with the
// cache lifecycle so Stop waits for any still in flight and no new one
// starts once shutdown has begun.
func (c *smartCache) scheduleRefresh(key string, fetch FetchFunc) {
	c.stopMu.RLock()
	defer c.stopMu.RUnlock()
	if c.stopped {
		return
	}
	if _, inFlight := c.refreshing.LoadOrStore(key, struct{}{}); inFlight {
		return
	}
	c.refreshWG.Add(1)
	go func() {
		defer c.refreshWG.Done()
		defer c.refreshing.Delete(key)
		if _, err := c.fetchThrough(context.Background(), key, fetch); err != nil {
			c.logger.Debug("background refresh failed", "key", key, "error", err)
		}
	}()
}
