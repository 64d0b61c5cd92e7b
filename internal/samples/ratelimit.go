// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samples

import (
	"time"

	"github.com/relabs-tech/magnetometer_calibration/internal/timeutil"
)

// DefaultMaxDataRate is the default maximum number of accepted samples per second.
const DefaultMaxDataRate = 10.0

// IntervalForRate returns the minimum spacing between accepted samples
// for a maximum rate in samples per second. A non-positive rate means no limit.
func IntervalForRate(maxRate float64) time.Duration {
	if maxRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / maxRate)
}

// RateLimiter accepts an event only if the minimum interval has elapsed
// since the last accepted event. The first event is always accepted.
type RateLimiter struct {
	clock    timeutil.Clock
	interval time.Duration
	last     time.Time
	primed   bool
}

// NewRateLimiter returns a limiter for maxRate samples per second.
// A nil clock uses the wall clock.
func NewRateLimiter(maxRate float64, clock timeutil.Clock) *RateLimiter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RateLimiter{
		clock:    clock,
		interval: IntervalForRate(maxRate),
	}
}

// Interval returns the configured minimum spacing.
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}

// Allow reports whether an event arriving now is accepted, and if so
// restarts the interval from now.
func (r *RateLimiter) Allow() bool {
	now := r.clock.Now()
	if r.primed && now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	r.primed = true
	return true
}

// Reset forgets the last accepted event so the next one is accepted.
func (r *RateLimiter) Reset() {
	r.primed = false
	r.last = time.Time{}
}
