// coalescer_test.go: single-flight fetch deduplication tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescerSingleExecution(t *testing.T) {
	co := newCoalescer()

	var calls int32
	gate := make(chan struct{})
	started := make(chan struct{})

	fn := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-gate
		return "result", nil
	}
	joiner := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "joiner", nil
	}

	const waiters = 8
	results := make(chan interface{}, waiters)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _ := co.do(context.Background(), "key", fn)
		results <- v
	}()
	<-started

	for i := 1; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := co.do(context.Background(), "key", joiner)
			results <- v
		}()
	}

	// Let the joiners reach the in-flight ticket before releasing it.
	deadline := time.After(time.Second)
	for co.coalescedCalls() < waiters-1 {
		select {
		case <-deadline:
			t.Fatalf("only %d joiners registered", co.coalescedCalls())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if !co.inFlight("key") {
		t.Error("ticket not reported in flight while fetch is blocked")
	}
	close(gate)
	wg.Wait()
	close(results)

	if co.inFlight("key") {
		t.Error("ticket still in flight after all waiters returned")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch executed %d times, want 1", got)
	}
	for v := range results {
		if v != "result" {
			t.Errorf("waiter got %v, want the initiator's result", v)
		}
	}
	if co.coalescedCalls() != waiters-1 {
		t.Errorf("coalescedCalls = %d, want %d", co.coalescedCalls(), waiters-1)
	}
}

func TestCoalescerSequentialCallsNotCoalesced(t *testing.T) {
	co := newCoalescer()

	var calls int32
	fn := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := co.do(context.Background(), "key", fn); err != nil {
			t.Fatalf("do: %v", err)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("sequential calls executed %d fetches, want 3", got)
	}
	if co.coalescedCalls() != 0 {
		t.Errorf("coalescedCalls = %d for sequential calls, want 0", co.coalescedCalls())
	}
}

func TestCoalescerDistinctKeysIndependent(t *testing.T) {
	co := newCoalescer()

	var calls int32
	gate := make(chan struct{})
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _ = co.do(context.Background(), key, func() (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				<-gate
				return key, nil
			})
		}(key)
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&calls) < 2 {
		select {
		case <-deadline:
			t.Fatal("distinct keys did not run concurrently")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(gate)
	wg.Wait()
}

func TestCoalescerErrorSharedByWaiters(t *testing.T) {
	co := newCoalescer()

	wantErr := errors.New("upstream down")
	gate := make(chan struct{})
	started := make(chan struct{})

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := co.do(context.Background(), "key", func() (interface{}, error) {
			close(started)
			<-gate
			return nil, wantErr
		})
		errs <- err
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := co.do(context.Background(), "key", func() (interface{}, error) {
			t.Error("joiner fn executed")
			return nil, nil
		})
		errs <- err
	}()

	deadline := time.After(time.Second)
	for co.coalescedCalls() < 1 {
		select {
		case <-deadline:
			t.Fatal("joiner never registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("waiter error = %v, want %v", err, wantErr)
		}
	}
}

func TestCoalescerContextAbandon(t *testing.T) {
	co := newCoalescer()

	gate := make(chan struct{})
	started := make(chan struct{})
	var completed int32

	go func() {
		_, _ = co.do(context.Background(), "key", func() (interface{}, error) {
			close(started)
			<-gate
			atomic.AddInt32(&completed, 1)
			return "late", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := co.do(ctx, "key", func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("abandoned waiter error = %v, want context.Canceled", err)
	}

	// The in-flight fetch still completes for the initiator.
	close(gate)
	deadline := time.After(time.Second)
	for atomic.LoadInt32(&completed) == 0 {
		select {
		case <-deadline:
			t.Fatal("fetch did not complete after waiter abandoned")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestCoalescerPanicDeliveredAsError(t *testing.T) {
	co := newCoalescer()

	_, err := co.do(context.Background(), "key", func() (interface{}, error) {
		panic("fetch exploded")
	})
	if err == nil {
		t.Fatal("panicking fetch returned nil error")
	}
	if GetErrorCode(err) != ErrCodePanicRecovered {
		t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrCodePanicRecovered)
	}

	// The coalescer stays usable after a panic.
	v, err := co.do(context.Background(), "key", func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Errorf("do after panic = (%v, %v), want (ok, nil)", v, err)
	}
}
