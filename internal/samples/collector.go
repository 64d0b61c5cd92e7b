// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samples

import "github.com/relabs-tech/magnetometer_calibration/internal/timeutil"

// Collector feeds a Buffer from a stream of readings.
// Readings are only kept while collection is enabled and the rate limit allows.
type Collector struct {
	buf     *Buffer
	limiter *RateLimiter
	enabled bool
}

// NewCollector returns a disabled collector limited to maxRate samples per second.
func NewCollector(maxRate float64, clock timeutil.Clock) *Collector {
	return &Collector{
		buf:     NewBuffer(),
		limiter: NewRateLimiter(maxRate, clock),
	}
}

// Start enables collection. The first reading after Start is always accepted.
func (c *Collector) Start() {
	c.limiter.Reset()
	c.enabled = true
}

// Stop disables collection. Already collected samples are kept.
func (c *Collector) Stop() {
	c.enabled = false
}

// Enabled reports whether readings are currently accepted.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Offer hands a reading to the collector and reports whether it was kept.
// Rejected readings are dropped silently.
func (c *Collector) Offer(s Sample) bool {
	if !c.enabled || !c.limiter.Allow() {
		return false
	}
	c.buf.Append(s)
	return true
}

// Clear drops every collected sample.
func (c *Collector) Clear() {
	c.buf.Clear()
}

// Len returns the number of collected samples.
func (c *Collector) Len() int {
	return c.buf.Len()
}

// Last returns the most recent collected sample.
func (c *Collector) Last() (Sample, bool) {
	return c.buf.Last()
}

// Snapshot returns a stable copy of the collected samples.
func (c *Collector) Snapshot() []Sample {
	return c.buf.Snapshot()
}
