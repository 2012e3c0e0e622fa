// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package backoff computes crash-recovery delays for stream restarts.
//
// The policy is a pure calculation over an attempt number: no timers, no
// retry loops. Callers own the attempt counter and the waiting.
//
// Schedule with InitialBackoff=2s, MaxBackoff=60s:
//   - Attempt 1: 2s
//   - Attempt 2: 4s
//   - Attempt 3: 8s
//   - Attempt 6: 60s (capped)
package backoff

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts matches the retry policy applied when a stream omits one.
	DefaultMaxAttempts = 10

	// DefaultInitialBackoff is the first retry delay.
	DefaultInitialBackoff = 2 * time.Second

	// DefaultMaxBackoff caps the exponential growth.
	DefaultMaxBackoff = 60 * time.Second
)

// Policy describes how a stream retries failed starts.
type Policy struct {
	// MaxAttempts is the number of consecutive failures after which the
	// stream is disabled. Values below 1 are treated as 1.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter is a symmetric fraction in [0, 1] applied to each delay:
	// a delay d becomes a uniform value in [d*(1-Jitter), d*(1+Jitter)].
	// The jittered value never exceeds MaxBackoff.
	Jitter float64
}

// DefaultPolicy returns the retry policy used for streams without one.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// NextDelay returns the delay to wait before retry number attempt.
// Attempts below 1 yield InitialBackoff. The result is non-decreasing in
// attempt when Jitter is zero.
func (p Policy) NextDelay(attempt int) time.Duration {
	return p.nextDelay(attempt, rand.Float64)
}

// nextDelay is NextDelay with an injectable random source returning [0, 1).
func (p Policy) nextDelay(attempt int, random func() float64) time.Duration {
	d := p.baseDelay(attempt)
	if p.Jitter <= 0 || d <= 0 {
		return d
	}

	jitter := p.Jitter
	if jitter > 1 {
		jitter = 1
	}
	spread := float64(d) * jitter
	d = time.Duration(float64(d) - spread + 2*spread*random())
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if d < 0 {
		d = 0
	}
	return d
}

// baseDelay computes InitialBackoff * 2^(attempt-1) capped at MaxBackoff
// without overflowing for large attempt numbers.
func (p Policy) baseDelay(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	ceiling := p.MaxBackoff
	if ceiling <= 0 {
		ceiling = time.Duration(1<<63 - 1)
	}

	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		if d > ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// IsExhausted reports whether attempt has used up the retry budget.
func (p Policy) IsExhausted(attempt int) bool {
	return attempt >= p.maxAttempts()
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
