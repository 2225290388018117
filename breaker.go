// breaker.go: default circuit breaker guarding the upstream fetch path
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"sync"
	"time"
)

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	// MaxProbes is the number of requests allowed through while half-open.
	MaxProbes uint32

	// Interval is the closed-state window after which counts are cleared.
	Interval time.Duration

	// OpenTimeout is the open-state period after which the breaker
	// half-opens to probe the upstream.
	OpenTimeout time.Duration

	// CallTimeout bounds each upstream call; a slow upstream becomes a
	// counted failure. If 0, calls are bounded only by the caller.
	CallTimeout time.Duration

	// ReadyToTrip decides when accumulated counts open the breaker.
	// If nil, the breaker trips after 5 consecutive failures.
	ReadyToTrip func(counts BreakerCounts) bool

	// OnStateChange is called when the state changes.
	OnStateChange func(from, to BreakerState)
}

// BreakerCounts holds the numbers of requests and their outcomes within
// the current window.
type BreakerCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *BreakerCounts) onRequest() {
	c.Requests++
}

func (c *BreakerCounts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *BreakerCounts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

func (c *BreakerCounts) clear() {
	*c = BreakerCounts{}
}

// DefaultBreakerConfig returns the breaker configuration used when none
// is supplied: trip after 5 consecutive failures, half-open after 30s,
// one probe at a time, 10s call timeout.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxProbes:   1,
		Interval:    60 * time.Second,
		OpenTimeout: 30 * time.Second,
		CallTimeout: 10 * time.Second,
	}
}

// Breaker is the default CircuitBreaker implementation.
// State transitions are driven by recorded outcomes and wall-clock
// expiry: CLOSED trips OPEN via ReadyToTrip, OPEN half-opens after
// OpenTimeout, HALF_OPEN closes on a successful probe and reopens on a
// failed one.
type Breaker struct {
	config BreakerConfig

	mu      sync.Mutex
	state   BreakerState
	counts  BreakerCounts
	expiry  time.Time
	inProbe uint32
}

// NewBreaker creates a circuit breaker with the given configuration.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxProbes == 0 {
		config.MaxProbes = 1
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = func(counts BreakerCounts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}

	return &Breaker{
		config: config,
		state:  BreakerClosed,
		expiry: time.Now().Add(config.Interval),
	}
}

// Allow reports whether a call may proceed. In the half-open state it
// admits up to MaxProbes concurrent probes.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)

	switch state {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if b.inProbe >= b.config.MaxProbes {
			return false
		}
		b.inProbe++
	}

	b.counts.onRequest()
	return true
}

// RecordSuccess records a successful upstream call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)
	b.counts.onSuccess()

	if state == BreakerHalfOpen {
		b.inProbe = 0
		b.setState(BreakerClosed, now)
	}
}

// RecordFailure records a failed upstream call, tripping the breaker
// when ReadyToTrip fires or a half-open probe fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)
	b.counts.onFailure()

	switch state {
	case BreakerClosed:
		if b.config.ReadyToTrip(b.counts) {
			b.setState(BreakerOpen, now)
		}
	case BreakerHalfOpen:
		b.inProbe = 0
		b.setState(BreakerOpen, now)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

// Counts returns a copy of the current window's counts.
func (b *Breaker) Counts() BreakerCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// CallTimeout returns the per-call timeout the breaker enforces on the
// upstream (0 = none).
func (b *Breaker) CallTimeout() time.Duration {
	return b.config.CallTimeout
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.clear()
	b.inProbe = 0
	b.setState(BreakerClosed, time.Now())
}

// currentState applies expiry-driven transitions. Caller must hold mu.
func (b *Breaker) currentState(now time.Time) BreakerState {
	switch b.state {
	case BreakerClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts.clear()
			b.expiry = now.Add(b.config.Interval)
		}
	case BreakerOpen:
		if b.expiry.Before(now) {
			b.setState(BreakerHalfOpen, now)
		}
	}
	return b.state
}

// setState changes state and arms the next expiry. Caller must hold mu.
func (b *Breaker) setState(state BreakerState, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.counts.clear()

	switch state {
	case BreakerClosed:
		b.expiry = now.Add(b.config.Interval)
	case BreakerOpen:
		b.expiry = now.Add(b.config.OpenTimeout)
	case BreakerHalfOpen:
		b.expiry = time.Time{}
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(prev, state)
	}
}

// Ensure Breaker implements CircuitBreaker
var _ CircuitBreaker = (*Breaker)(nil)
