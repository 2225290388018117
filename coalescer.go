// coalescer.go: single-flight deduplication of concurrent fetches
//
// Deduplicates concurrent fetch operations for an identical key so only
// one upstream call is in flight at a time; every waiter receives the
// same eventual result or error. Built on golang.org/x/sync/singleflight
// with per-key waiter accounting for the coalesced-call metric.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package xanthos

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// coalescer is the per-cache request coalescer. Ticket creation and
// waiter registration are atomic with respect to each other (singleflight
// guarantees no two callers both believe they created the ticket), and
// completed tickets are removed so the next miss starts a fresh fetch.
type coalescer struct {
	group singleflight.Group

	mu      sync.Mutex
	waiters map[string]int

	coalesced int64 // fetches avoided by joining an in-flight ticket

	// onCoalesced, when set, is invoked once per joined waiter.
	onCoalesced func()
}

func newCoalescer() *coalescer {
	return &coalescer{waiters: make(map[string]int)}
}

// do executes fn for the key, coalescing with any in-flight call.
// If ctx is done before the result arrives, the waiter abandons its
// interest but the underlying fn keeps running for the other waiters.
// A panicking fn is delivered to every waiter as a recovered error.
func (co *coalescer) do(ctx context.Context, key string, fn func() (interface{}, error)) (interface{}, error) {
	co.mu.Lock()
	co.waiters[key]++
	joined := co.waiters[key] > 1
	co.mu.Unlock()

	if joined {
		atomic.AddInt64(&co.coalesced, 1)
		if co.onCoalesced != nil {
			co.onCoalesced()
		}
	}

	defer func() {
		co.mu.Lock()
		co.waiters[key]--
		if co.waiters[key] <= 0 {
			delete(co.waiters, key)
		}
		co.mu.Unlock()
	}()

	ch := co.group.DoChan(key, func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = NewErrPanicRecovered("fetch:"+key, r)
			}
		}()
		return fn()
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		// Abandon the wait only; the fetch completes for the others.
		return nil, ctx.Err()
	}
}

// coalescedCalls returns the number of fetches avoided by coalescing.
func (co *coalescer) coalescedCalls() int64 {
	return atomic.LoadInt64(&co.coalesced)
}

// inFlight reports whether a ticket currently exists for the key.
func (co *coalescer) inFlight(key string) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.waiters[key] > 0
}
